package copydeck

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	logx "funnelbot/pkg/logx"
)

// Service serves the current deck and hot-reloads it when the override file
// changes. Get() is safe from any goroutine.
type Service struct {
	path string
	log  logx.Logger

	cur atomic.Value // stores Deck
}

func NewService(path string, log logx.Logger) (*Service, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{path: path, log: log}
	d, err := Load(path)
	if err != nil {
		return nil, err
	}
	s.cur.Store(d)
	return s, nil
}

func (s *Service) Get() Deck {
	return s.cur.Load().(Deck)
}

// Watch blocks until ctx is done, reloading the deck on file changes.
// No-op when no override path is configured. Editors often emit several
// write events per save, so reloads are debounced.
func (s *Service) Watch(ctx context.Context) error {
	if s.path == "" {
		<-ctx.Done()
		return nil
	}

	dir := filepath.Dir(s.path)
	file := filepath.Base(s.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			d, err := Load(s.path)
			if err != nil {
				// Keep serving the last good deck.
				s.log.Warn("copy deck reload failed", logx.String("path", s.path), logx.Err(err))
				return
			}
			s.cur.Store(d)
			s.log.Info("copy deck reloaded", logx.String("path", s.path))
		})
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != file {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("copy deck watch error", logx.Err(err))
		}
	}
}
