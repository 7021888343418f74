// Package digest sends a scheduled stats summary to the super-operator so
// funnel growth is visible without asking /stats by hand.
package digest

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"funnelbot/internal/copydeck"
	"funnelbot/internal/store"
	kit "funnelbot/internal/transport"
	logx "funnelbot/pkg/logx"
)

type Service struct {
	spec    string
	st      store.Store
	adapter kit.Adapter
	deck    *copydeck.Service
	adminID int64
	log     logx.Logger

	cron *cron.Cron
}

func New(spec string, st store.Store, adapter kit.Adapter, deck *copydeck.Service, adminID int64, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		spec:    spec,
		st:      st,
		adapter: adapter,
		deck:    deck,
		adminID: adminID,
		log:     log,
	}
}

// Start schedules the digest. An empty spec disables the service.
func (s *Service) Start() error {
	if s.spec == "" {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(s.spec, s.run); err != nil {
		return fmt.Errorf("digest cron spec %q: %w", s.spec, err)
	}
	c.Start()
	s.cron = c
	s.log.Info("digest scheduled", logx.String("spec", s.spec))
	return nil
}

func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Service) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	total, err := s.st.CountAll(ctx)
	if err != nil {
		s.log.Warn("digest count failed", logx.Err(err))
		return
	}
	blocked, err := s.st.CountBlocked(ctx)
	if err != nil {
		s.log.Warn("digest count failed", logx.Err(err))
		return
	}

	deck := s.deck.Get()
	text := deck.DigestHeader + "\n" + fmt.Sprintf(deck.Stats, total, blocked)
	if _, err := s.adapter.SendText(ctx, kit.ChatTarget{ChatID: s.adminID}, text, &kit.SendOptions{ParseMode: "HTML"}); err != nil {
		s.log.Warn("digest send failed", logx.Err(err))
	}
}
