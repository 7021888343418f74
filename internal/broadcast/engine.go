// Package broadcast fans one authored message out to every eligible
// recipient, with rate-limited delivery and per-recipient failure tracking.
package broadcast

import (
	"context"
	"fmt"
	"time"

	"funnelbot/internal/copydeck"
	"funnelbot/internal/journal"
	"funnelbot/internal/store"
	kit "funnelbot/internal/transport"
	logx "funnelbot/pkg/logx"
)

// Result is the final accounting of one run.
type Result struct {
	Snapshot          int
	Delivered         int
	FailedEligibility int
	Skipped           int
}

type Engine struct {
	st      store.Store
	adapter kit.Adapter
	deck    *copydeck.Service
	pacer   *Pacer
	jrnl    journal.Store // may be nil
	log     logx.Logger
}

func NewEngine(st store.Store, adapter kit.Adapter, deck *copydeck.Service, pace time.Duration, jrnl journal.Store, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		st:      st,
		adapter: adapter,
		deck:    deck,
		pacer:   NewPacer(pace),
		jrnl:    jrnl,
		log:     log,
	}
}

// Run executes one fan-out of the source message over a snapshot of eligible
// recipients.
//
// Each snapshot member gets at most one attempt. An Unreachable outcome flips
// the recipient's eligibility (persisted, with bounded retries of the flip
// write); a Transient one skips the recipient for this run only. No
// per-recipient error ever aborts the run — only failing to take the snapshot
// does. The author sees the snapshot size before the long-running loop and
// the delivered/failed totals after it.
func (e *Engine) Run(ctx context.Context, author kit.ChatTarget, src kit.MessageRef) (Result, error) {
	start := time.Now()
	deck := e.deck.Get()

	recips, err := e.st.FindEligible(ctx)
	if err != nil {
		e.log.Error("broadcast snapshot failed", logx.Err(err))
		_, _ = e.adapter.SendText(ctx, author, deck.BroadcastFailed, nil)
		return Result{}, err
	}

	res := Result{Snapshot: len(recips)}
	e.log.Info("broadcast started", logx.Int64("author", author.ChatID), logx.Int("snapshot", res.Snapshot))
	_, _ = e.adapter.SendText(ctx, author, fmt.Sprintf(deck.BroadcastStarted, res.Snapshot), nil)

	for _, r := range recips {
		if ctx.Err() != nil {
			break
		}

		err := e.adapter.CopyMessage(ctx, kit.ChatTarget{ChatID: r.ID}, src)
		switch e.adapter.Classify(err) {
		case kit.Delivered:
			res.Delivered++
		case kit.Unreachable:
			res.FailedEligibility++
			e.flipEligibility(ctx, r.ID)
			e.log.Debug("recipient unreachable", logx.Int64("id", r.ID), logx.Err(err))
		case kit.Transient:
			res.Skipped++
			e.log.Warn("broadcast send failed, skipping recipient", logx.Int64("id", r.ID), logx.Err(err))
		}

		// Mandatory inter-send delay, regardless of outcome.
		if err := e.pacer.Wait(ctx); err != nil {
			break
		}
	}

	took := time.Since(start)
	e.log.Info("broadcast finished",
		logx.Int("snapshot", res.Snapshot),
		logx.Int("delivered", res.Delivered),
		logx.Int("failed_eligibility", res.FailedEligibility),
		logx.Int("skipped", res.Skipped),
		logx.Duration("took", took),
	)

	_, _ = e.adapter.SendText(ctx, author, fmt.Sprintf(deck.BroadcastDone, res.Delivered, res.FailedEligibility), nil)

	if e.jrnl != nil {
		jctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := e.jrnl.AppendBroadcast(jctx, journal.BroadcastEntry{
			AuthorID:          author.ChatID,
			Snapshot:          res.Snapshot,
			Delivered:         res.Delivered,
			FailedEligibility: res.FailedEligibility,
			Skipped:           res.Skipped,
			TookMS:            took.Milliseconds(),
		})
		cancel()
		if err != nil {
			e.log.Warn("broadcast journal write failed", logx.Err(err))
		}
	}

	return res, nil
}

// flipEligibility persists eligible=false. Losing this write means the next
// run would hit a known-blocked recipient again, so it retries a few times
// before surfacing the loss in the log.
func (e *Engine) flipEligibility(ctx context.Context, id int64) {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if err = e.st.SetEligible(ctx, id, false); err == nil {
			return
		}
		t := time.NewTimer(time.Duration(100*(attempt+1)) * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			e.log.Error("eligibility flip lost (context done)", logx.Int64("id", id), logx.Err(err))
			return
		case <-t.C:
		}
	}
	e.log.Error("eligibility flip lost", logx.Int64("id", id), logx.Err(err))
}
