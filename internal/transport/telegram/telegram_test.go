package telegram

import (
	"errors"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	kit "funnelbot/internal/transport"
)

func TestSplitText(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		in    string
		limit int
		want  []string
	}{
		{
			name:  "short passes through",
			in:    "hello",
			limit: 10,
			want:  []string{"hello"},
		},
		{
			name:  "empty passes through",
			in:    "",
			limit: 10,
			want:  []string{""},
		},
		{
			name:  "hard split without newlines",
			in:    strings.Repeat("a", 25),
			limit: 10,
			want:  []string{strings.Repeat("a", 10), strings.Repeat("a", 10), strings.Repeat("a", 5)},
		},
		{
			name:  "prefers newline boundary",
			in:    "first line\nsecond line that goes on",
			limit: 20,
			want:  []string{"first line", "second line that goe", "s on"},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := splitText(tc.in, tc.limit)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d chunks %q, want %d %q", len(got), got, len(tc.want), tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("chunk %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
			for i, c := range got {
				if n := len([]rune(c)); n > tc.limit {
					t.Fatalf("chunk %d has %d runes, limit %d", i, n, tc.limit)
				}
			}
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		err  error
		want kit.Delivery
	}{
		{"nil is delivered", nil, kit.Delivered},
		{"blocked by user", tele.ErrBlockedByUser, kit.Unreachable},
		{"deactivated account", tele.ErrUserIsDeactivated, kit.Unreachable},
		{"chat not found", tele.ErrChatNotFound, kit.Unreachable},
		{"generic 403", &tele.Error{Code: 403, Description: "Forbidden: something"}, kit.Unreachable},
		{"flood limit", tele.FloodError{RetryAfter: 5}, kit.Transient},
		{"plain network error", errors.New("dial tcp: timeout"), kit.Transient},
		{"server error", &tele.Error{Code: 500, Description: "Internal Server Error"}, kit.Transient},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := classify(tc.err); got != tc.want {
				t.Fatalf("classify(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
