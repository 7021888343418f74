package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"funnelbot/internal/bot"
	"funnelbot/internal/broadcast"
	"funnelbot/internal/config"
	"funnelbot/internal/copydeck"
	"funnelbot/internal/digest"
	"funnelbot/internal/funnel"
	"funnelbot/internal/health"
	"funnelbot/internal/journal"
	"funnelbot/internal/operator"
	"funnelbot/internal/store"
	kit "funnelbot/internal/transport"
	"funnelbot/internal/transport/telegram"
	logx "funnelbot/pkg/logx"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logx.NewConsole(cfg.LogLevel)
	log.Info("starting funnelbot")

	st, err := store.OpenMongo(ctx, store.MongoConfig{URI: cfg.MongoURI, Timeout: cfg.MongoTimeout}, log.With(logx.String("comp", "store")))
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = st.Close(cctx)
		ccancel()
	}()

	jrnl, err := journal.Open(cfg.JournalPath, log.With(logx.String("comp", "journal")))
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if jrnl != nil {
		defer func() { _ = jrnl.Close() }()
	}

	deck, err := copydeck.NewService(cfg.CopyPath, log.With(logx.String("comp", "copydeck")))
	if err != nil {
		return fmt.Errorf("copy deck: %w", err)
	}
	go func() {
		if err := deck.Watch(ctx); err != nil {
			log.Warn("copy deck watch stopped", logx.Err(err))
		}
	}()

	adapter, err := telegram.New(telegram.Config{Token: cfg.BotToken}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}

	hs := health.New(cfg.Port, log.With(logx.String("comp", "health")))
	if err := hs.Start(ctx); err != nil {
		return fmt.Errorf("health: %w", err)
	}

	sessions := operator.NewSessions(cfg.AdminID, st, log.With(logx.String("comp", "operator")))
	fun := funnel.New(funnel.Variant(cfg.FunnelVariant), deck, st, adapter, cfg.PartnerLink, log.With(logx.String("comp", "funnel")))
	engine := broadcast.NewEngine(st, adapter, deck, cfg.BroadcastPace, jrnl, log.With(logx.String("comp", "broadcast")))

	dg := digest.New(cfg.DigestCron, st, adapter, deck, cfg.AdminID, log.With(logx.String("comp", "digest")))
	if err := dg.Start(); err != nil {
		return err
	}
	defer dg.Stop()

	updates := make(chan kit.Update, 256)
	if err := adapter.Start(ctx, updates); err != nil {
		return fmt.Errorf("telegram start: %w", err)
	}

	b := bot.New(adapter, st, sessions, fun, engine, deck, jrnl, cfg.AdminID, log.With(logx.String("comp", "bot")))
	b.Run(ctx, updates)

	sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer scancel()
	_ = adapter.Stop(sctx)
	_ = hs.Stop(sctx)
	log.Info("funnelbot stopped")
	return nil
}
