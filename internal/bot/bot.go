// Package bot dispatches inbound updates: every event first passes through
// the operator session layer, then the funnel, and finally the casual
// recipient save.
package bot

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"funnelbot/internal/broadcast"
	"funnelbot/internal/copydeck"
	"funnelbot/internal/funnel"
	"funnelbot/internal/journal"
	"funnelbot/internal/operator"
	"funnelbot/internal/store"
	kit "funnelbot/internal/transport"
	logx "funnelbot/pkg/logx"
)

const commandTimeout = 10 * time.Second

type Bot struct {
	adapter  kit.Adapter
	st       store.Store
	sessions *operator.Sessions
	fun      *funnel.Machine
	engine   *broadcast.Engine
	deck     *copydeck.Service
	jrnl     journal.Store // may be nil
	log      logx.Logger
	adminID  int64

	jobs chan func()
}

func New(adapter kit.Adapter, st store.Store, sessions *operator.Sessions, fun *funnel.Machine, engine *broadcast.Engine, deck *copydeck.Service, jrnl journal.Store, adminID int64, log logx.Logger) *Bot {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Bot{
		adapter:  adapter,
		st:       st,
		sessions: sessions,
		fun:      fun,
		engine:   engine,
		deck:     deck,
		jrnl:     jrnl,
		log:      log,
		adminID:  adminID,
		jobs:     make(chan func(), 256),
	}
}

// Run consumes the adapter's update channel until ctx is done. Handlers run
// on a small worker pool so a slow broadcast never blocks funnel traffic.
func (b *Bot) Run(ctx context.Context, updates <-chan kit.Update) {
	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	b.log.Info("dispatcher started", logx.Int("workers", workers))

	b.registerMenus(ctx)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-b.jobs:
					if !ok {
						return
					}
					job()
				}
			}
		}()
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case up, ok := <-updates:
			if !ok {
				break loop
			}
			b.route(ctx, up)
		}
	}

	close(b.jobs)
	wg.Wait()
	b.log.Info("dispatcher stopped")
}

func (b *Bot) enqueue(ctx context.Context, req *request, timeout time.Duration, h handlerFunc) {
	final := chain(h,
		mwPanicRecover(b.log),
		mwRequestLog(b.log),
		mwTimeout(timeout),
	)
	select {
	case b.jobs <- func() { _ = final(ctx, req) }:
	default:
		// Queue full: drop. The user can retry the action.
		b.log.Warn("job queue full, dropping update", logx.String("kind", req.kind), logx.Int64("from_id", req.fromID))
	}
}

// enqueueMust blocks until a worker slot frees up. Used for work that cannot
// be dropped once committed, like a consumed broadcast hand-off.
func (b *Bot) enqueueMust(ctx context.Context, req *request, timeout time.Duration, h handlerFunc) {
	final := chain(h,
		mwPanicRecover(b.log),
		mwRequestLog(b.log),
		mwTimeout(timeout),
	)
	select {
	case b.jobs <- func() { _ = final(ctx, req) }:
	case <-ctx.Done():
		b.log.Warn("shutdown while enqueueing", logx.String("kind", req.kind), logx.Int64("from_id", req.fromID))
	}
}

func (b *Bot) route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			b.routeMessage(ctx, up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			b.routeCallback(ctx, up.Callback)
		}
	}
}

func (b *Bot) routeMessage(ctx context.Context, msg *kit.Message) {
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, "/") {
		b.routeCommand(ctx, msg, text)
		return
	}
	b.routeContent(ctx, msg)
}

func (b *Bot) routeCommand(ctx context.Context, msg *kit.Message, text string) {
	parts := strings.Fields(text)
	name := strings.TrimPrefix(parts[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	args := parts[1:]

	req := &request{kind: "cmd:" + name, chat: kit.ChatTarget{ChatID: msg.ChatID}, fromID: msg.FromID}

	switch name {
	case "start":
		b.enqueue(ctx, req, commandTimeout, func(ctx context.Context, _ *request) error {
			return b.fun.Start(ctx, msg)
		})
	case "bonus":
		b.enqueue(ctx, req, commandTimeout, func(ctx context.Context, r *request) error {
			return b.fun.SendOffer(ctx, r.chat)
		})
	case "about":
		b.enqueue(ctx, req, commandTimeout, func(ctx context.Context, r *request) error {
			_, err := b.adapter.SendText(ctx, r.chat, b.deck.Get().About, nil)
			return err
		})
	case "send":
		// Privilege checks run on the worker, not the routing goroutine: the
		// store lookup may be slow and must not head-of-line-block other
		// updates. They fail closed and stay silent, so an unauthorized
		// sender learns nothing about the command.
		b.enqueue(ctx, req, commandTimeout, func(ctx context.Context, r *request) error {
			if !b.sessions.IsPrivileged(ctx, r.fromID) {
				return nil
			}
			b.sessions.BeginAuthoring(r.fromID)
			_, err := b.adapter.SendText(ctx, r.chat, b.deck.Get().BroadcastPrompt, &kit.SendOptions{ParseMode: "HTML"})
			return err
		})
	case "cancel":
		b.enqueue(ctx, req, commandTimeout, func(ctx context.Context, r *request) error {
			if !b.sessions.IsPrivileged(ctx, r.fromID) {
				return nil
			}
			deck := b.deck.Get()
			ack := deck.BroadcastCancelled
			if !b.sessions.CancelAuthoring(r.fromID) {
				ack = deck.BroadcastIdle
			}
			_, err := b.adapter.SendText(ctx, r.chat, ack, nil)
			return err
		})
	case "stats":
		b.enqueue(ctx, req, commandTimeout, func(ctx context.Context, r *request) error {
			if !b.sessions.IsPrivileged(ctx, r.fromID) {
				return nil
			}
			return b.handleStats(ctx, r)
		})
	case "grant":
		if !b.sessions.IsSuper(msg.FromID) {
			return
		}
		if len(args) == 0 {
			return
		}
		target, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || target == 0 {
			return
		}
		b.enqueue(ctx, req, commandTimeout, func(ctx context.Context, r *request) error {
			return b.handleGrant(ctx, r, target)
		})
	default:
		// Unknown command: ignore silently (forward compatibility, and no
		// probing of privileged command names).
	}
}

func (b *Bot) routeContent(ctx context.Context, msg *kit.Message) {
	req := &request{kind: "content", chat: kit.ChatTarget{ChatID: msg.ChatID}, fromID: msg.FromID}

	// Authoring hand-off comes first. ConsumeIfAwaiting fires at most once
	// per /send; the next content event falls through to the casual save.
	if b.sessions.ConsumeIfAwaiting(msg.FromID) {
		src := kit.MessageRef{ChatID: msg.ChatID, MessageID: msg.ID}
		req.kind = "broadcast"
		// The session is already consumed, so this job must not be lost to
		// backpressure. No timeout: a large fan-out legitimately runs for
		// minutes.
		b.enqueueMust(ctx, req, 0, func(ctx context.Context, r *request) error {
			_, err := b.engine.Run(ctx, r.chat, src)
			return err
		})
		return
	}

	b.enqueue(ctx, req, commandTimeout, func(ctx context.Context, _ *request) error {
		// Save anyone who writes so later broadcasts can reach them. A failed
		// casual save is swallowed: the next message retries it anyway.
		if err := b.st.Touch(ctx, store.Profile{
			ID:        msg.FromID,
			FirstName: msg.FromFirstName,
			Username:  msg.FromUsername,
		}); err != nil {
			b.log.Debug("casual save failed", logx.Int64("id", msg.FromID), logx.Err(err))
		}
		return nil
	})
}

func (b *Bot) routeCallback(ctx context.Context, cb *kit.Callback) {
	req := &request{kind: "cb:" + cb.Data, chat: kit.ChatTarget{ChatID: cb.ChatID}, fromID: cb.FromID}
	b.enqueue(ctx, req, commandTimeout, func(ctx context.Context, _ *request) error {
		err := b.fun.HandleCallback(ctx, cb)
		// Best-effort: stop the "loading" spinner either way.
		_ = b.adapter.AnswerCallback(ctx, cb.ID, "")
		return err
	})
}

func (b *Bot) handleStats(ctx context.Context, r *request) error {
	total, err := b.st.CountAll(ctx)
	if err != nil {
		return err
	}
	blocked, err := b.st.CountBlocked(ctx)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(b.deck.Get().Stats, total, blocked))

	if b.jrnl != nil {
		if runs, err := b.jrnl.RecentBroadcasts(ctx, 3); err == nil && len(runs) > 0 {
			sb.WriteString("\n\n<b>Recent broadcasts</b>")
			for _, e := range runs {
				sb.WriteString("\n• ")
				sb.WriteString(e.At.Format("2006-01-02 15:04"))
				sb.WriteString(" — ")
				sb.WriteString(strconv.Itoa(e.Delivered))
				sb.WriteString(" delivered, ")
				sb.WriteString(strconv.Itoa(e.FailedEligibility))
				sb.WriteString(" blocked")
			}
		}
	}

	_, err = b.adapter.SendText(ctx, r.chat, sb.String(), &kit.SendOptions{ParseMode: "HTML"})
	return err
}

func (b *Bot) handleGrant(ctx context.Context, r *request, target int64) error {
	if err := b.sessions.GrantPrivilege(ctx, r.fromID, target); err != nil {
		return err
	}
	if b.jrnl != nil {
		if err := b.jrnl.AppendGrant(ctx, journal.GrantEntry{ByID: r.fromID, TargetID: target}); err != nil {
			b.log.Warn("grant journal write failed", logx.Err(err))
		}
	}
	_, err := b.adapter.SendText(ctx, r.chat, fmt.Sprintf(b.deck.Get().GrantAck, target), nil)
	return err
}

// registerMenus pushes the public command menu globally and the operator menu
// scoped to the super-operator's chat. Best-effort.
func (b *Bot) registerMenus(ctx context.Context) {
	up, ok := b.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	go func() {
		mctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		public := []kit.BotCommand{
			{Command: "start", Description: "🏠 Home"},
			{Command: "bonus", Description: "🎁 Bonus"},
			{Command: "about", Description: "ℹ️ About"},
		}
		if err := up.UpdateMenuCommands(mctx, public, 0); err != nil {
			b.log.Warn("public menu update failed", logx.Err(err))
		}

		admin := []kit.BotCommand{
			{Command: "start", Description: "🏠 Home"},
			{Command: "send", Description: "📢 Broadcast"},
			{Command: "stats", Description: "📊 Stats"},
			{Command: "cancel", Description: "❌ Cancel"},
		}
		if err := up.UpdateMenuCommands(mctx, admin, b.adminID); err != nil {
			b.log.Warn("admin menu update failed", logx.Err(err))
		}
	}()
}
