package broadcast

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"funnelbot/internal/copydeck"
	"funnelbot/internal/store"
	kit "funnelbot/internal/transport"
	"funnelbot/internal/transport/transporttest"
	logx "funnelbot/pkg/logx"
)

const authorID = int64(777)

var srcMsg = kit.MessageRef{ChatID: authorID, MessageID: 12}

func newEngine(t *testing.T) (*Engine, *transporttest.Fake, *store.Memory) {
	t.Helper()
	deck, err := copydeck.NewService("", logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	fake := transporttest.New()
	st := store.NewMemory()
	return NewEngine(st, fake, deck, time.Millisecond, nil, logx.Nop()), fake, st
}

func enroll(t *testing.T, st *store.Memory, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		if err := st.Enroll(context.Background(), store.Profile{ID: id}); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRunDeliversToAllEligible(t *testing.T) {
	t.Parallel()
	e, fake, st := newEngine(t)
	enroll(t, st, 1, 2, 3)
	deck := copydeck.Default()

	res, err := e.Run(context.Background(), kit.ChatTarget{ChatID: authorID}, srcMsg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Snapshot != 3 || res.Delivered != 3 || res.FailedEligibility != 0 || res.Skipped != 0 {
		t.Fatalf("result = %+v", res)
	}

	copies := fake.Copies()
	if len(copies) != 3 {
		t.Fatalf("copied %d messages, want 3", len(copies))
	}
	for i, c := range copies {
		if c.Src != srcMsg {
			t.Fatalf("copy %d forwarded %+v, want the authored message", i, c.Src)
		}
	}

	reports := fake.TextsTo(authorID)
	if len(reports) != 2 {
		t.Fatalf("author got %d reports, want started + done", len(reports))
	}
	if want := fmt.Sprintf(deck.BroadcastStarted, 3); reports[0].Text != want {
		t.Fatalf("started report = %q, want %q", reports[0].Text, want)
	}
	if want := fmt.Sprintf(deck.BroadcastDone, 3, 0); reports[1].Text != want {
		t.Fatalf("done report = %q, want %q", reports[1].Text, want)
	}
}

func TestRunFlipsEligibilityOnBlocked(t *testing.T) {
	t.Parallel()
	e, fake, st := newEngine(t)
	enroll(t, st, 1, 2, 3)
	fake.CopyErr = func(to kit.ChatTarget) error {
		if to.ChatID == 2 {
			return transporttest.ErrBlocked
		}
		return nil
	}

	res, err := e.Run(context.Background(), kit.ChatTarget{ChatID: authorID}, srcMsg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Delivered != 2 || res.FailedEligibility != 1 || res.Skipped != 0 {
		t.Fatalf("result = %+v, want delivered=2 failed=1", res)
	}

	r, _, _ := st.Get(context.Background(), 2)
	if r.Eligible {
		t.Fatal("blocked recipient still eligible")
	}
	for _, id := range []int64{1, 3} {
		if r, _, _ := st.Get(context.Background(), id); !r.Eligible {
			t.Fatalf("recipient %d lost eligibility without a definitive failure", id)
		}
	}

	reports := fake.TextsTo(authorID)
	if want := fmt.Sprintf(copydeck.Default().BroadcastDone, 2, 1); reports[len(reports)-1].Text != want {
		t.Fatalf("done report = %q, want %q", reports[len(reports)-1].Text, want)
	}
}

func TestRunSkipsOnTransientFailure(t *testing.T) {
	t.Parallel()
	e, fake, st := newEngine(t)
	enroll(t, st, 1, 2)
	fake.CopyErr = func(to kit.ChatTarget) error {
		if to.ChatID == 1 {
			return transporttest.ErrFlaky
		}
		return nil
	}

	res, err := e.Run(context.Background(), kit.ChatTarget{ChatID: authorID}, srcMsg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Delivered != 1 || res.Skipped != 1 || res.FailedEligibility != 0 {
		t.Fatalf("result = %+v, want one delivered and one skipped", res)
	}
	if r, _, _ := st.Get(context.Background(), 1); !r.Eligible {
		t.Fatal("a transient failure must not flip eligibility")
	}
}

func TestRunUsesSnapshotNotLiveSet(t *testing.T) {
	t.Parallel()
	e, fake, st := newEngine(t)
	enroll(t, st, 1, 2, 3)

	// A recipient enrolled mid-run must not receive this broadcast.
	var once bool
	fake.OnCopy = func(kit.ChatTarget) {
		if !once {
			once = true
			enroll(t, st, 99)
		}
	}

	res, err := e.Run(context.Background(), kit.ChatTarget{ChatID: authorID}, srcMsg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Snapshot != 3 || res.Delivered != 3 {
		t.Fatalf("result = %+v, want the pre-run snapshot of 3", res)
	}
	for _, c := range fake.Copies() {
		if c.To.ChatID == 99 {
			t.Fatal("mid-run enrollee received the broadcast")
		}
	}
}

func TestRunPacesEveryAttempt(t *testing.T) {
	t.Parallel()
	const pace = 40 * time.Millisecond
	deck, err := copydeck.NewService("", logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	fake := transporttest.New()
	st := store.NewMemory()
	// Pacing tokens regenerate from engine construction, so measure from
	// before it.
	start := time.Now()
	e := NewEngine(st, fake, deck, pace, nil, logx.Nop())
	enroll(t, st, 1, 2, 3)

	var attempts []time.Time
	fake.OnCopy = func(kit.ChatTarget) { attempts = append(attempts, time.Now()) }

	res, err := e.Run(context.Background(), kit.ChatTarget{ChatID: authorID}, srcMsg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Delivered != 3 {
		t.Fatalf("result = %+v", res)
	}

	// N recipients cost at least N pacing intervals of wall clock.
	if took := time.Since(start); took < 3*pace {
		t.Fatalf("run over 3 recipients took %v, want at least %v", took, 3*pace)
	}
	// The pause applies between the first and second attempt too. Allow for
	// the setup time already counted against the first token.
	if gap := attempts[1].Sub(attempts[0]); gap < pace/2 {
		t.Fatalf("gap between first two attempts = %v, want a real pause (pace %v)", gap, pace)
	}
}

type snapshotFailStore struct {
	store.Store
}

func (snapshotFailStore) FindEligible(context.Context) ([]store.Recipient, error) {
	return nil, errors.New("store down")
}

func TestRunAbortsWhenSnapshotFails(t *testing.T) {
	t.Parallel()
	deck, err := copydeck.NewService("", logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	fake := transporttest.New()
	e := NewEngine(snapshotFailStore{store.NewMemory()}, fake, deck, time.Millisecond, nil, logx.Nop())

	_, err = e.Run(context.Background(), kit.ChatTarget{ChatID: authorID}, srcMsg)
	if err == nil {
		t.Fatal("snapshot failure must abort the run")
	}
	if len(fake.Copies()) != 0 {
		t.Fatal("no delivery may happen without a snapshot")
	}
	reports := fake.TextsTo(authorID)
	if len(reports) != 1 || reports[0].Text != copydeck.Default().BroadcastFailed {
		t.Fatalf("author reports = %+v, want a single failure notice", reports)
	}
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	t.Parallel()
	e, fake, st := newEngine(t)
	enroll(t, st, 1, 2, 3)

	ctx, cancel := context.WithCancel(context.Background())
	fake.OnCopy = func(kit.ChatTarget) { cancel() }

	res, err := e.Run(ctx, kit.ChatTarget{ChatID: authorID}, srcMsg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Delivered >= 3 {
		t.Fatalf("delivered %d, want the loop to stop after cancel", res.Delivered)
	}
}
