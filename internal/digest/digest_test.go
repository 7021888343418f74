package digest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"funnelbot/internal/copydeck"
	"funnelbot/internal/store"
	"funnelbot/internal/transport/transporttest"
	logx "funnelbot/pkg/logx"
)

const adminID = int64(1000)

func TestStartEmptySpecDisables(t *testing.T) {
	t.Parallel()
	deck, err := copydeck.NewService("", logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s := New("", store.NewMemory(), transporttest.New(), deck, adminID, logx.Nop())
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	s.Stop()
}

func TestStartRejectsBadSpec(t *testing.T) {
	t.Parallel()
	deck, err := copydeck.NewService("", logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	s := New("not a cron spec", store.NewMemory(), transporttest.New(), deck, adminID, logx.Nop())
	if err := s.Start(); err == nil {
		t.Fatal("invalid schedule must fail at startup")
	}
}

func TestRunSendsDeckFormattedSummary(t *testing.T) {
	t.Parallel()
	deck, err := copydeck.NewService("", logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	fake := transporttest.New()
	st := store.NewMemory()
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		if err := st.Enroll(ctx, store.Profile{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := st.SetEligible(ctx, 2, false); err != nil {
		t.Fatal(err)
	}

	s := New("@daily", st, fake, deck, adminID, logx.Nop())
	s.run()

	texts := fake.TextsTo(adminID)
	if len(texts) != 1 {
		t.Fatalf("sent %d digests, want 1", len(texts))
	}
	d := copydeck.Default()
	if !strings.HasPrefix(texts[0].Text, d.DigestHeader) {
		t.Fatalf("digest = %q, want the deck header", texts[0].Text)
	}
	if !strings.Contains(texts[0].Text, fmt.Sprintf(d.Stats, 3, 1)) {
		t.Fatalf("digest = %q, want the deck stats body", texts[0].Text)
	}
}
