package journal

import (
	"context"
	"path/filepath"
	"testing"

	logx "funnelbot/pkg/logx"
)

func TestOpenEmptyPathDisables(t *testing.T) {
	t.Parallel()
	j, err := Open("", logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if j != nil {
		t.Fatal("empty path must return a nil store")
	}
}

func TestAppendAndRecent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = j.Close() })
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := j.AppendBroadcast(ctx, BroadcastEntry{
			AuthorID:          1000,
			Snapshot:          10 + i,
			Delivered:         9 + i,
			FailedEligibility: 1,
			TookMS:            int64(100 * i),
		}); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := j.RecentBroadcasts(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	// Newest first.
	if runs[0].Snapshot != 14 || runs[2].Snapshot != 12 {
		t.Fatalf("order wrong: %+v", runs)
	}
	if runs[0].At.IsZero() {
		t.Fatal("timestamp not persisted")
	}
}

func TestAppendGrant(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = j.Close() })

	if err := j.AppendGrant(context.Background(), GrantEntry{ByID: 1000, TargetID: 55}); err != nil {
		t.Fatal(err)
	}
}
