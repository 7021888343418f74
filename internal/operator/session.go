// Package operator tracks which privileged identities are mid-broadcast
// authoring and gates privileged commands.
//
// Sessions are process-local by design: losing them on restart is acceptable,
// and a horizontally-scaled deployment would need to swap Sessions for a
// shared implementation.
package operator

import (
	"context"
	"sync"

	"funnelbot/internal/store"
	logx "funnelbot/pkg/logx"
)

type Mode int

const (
	ModeIdle Mode = iota
	ModeAwaitingBroadcastContent
)

type Sessions struct {
	superID int64
	st      store.Store
	log     logx.Logger

	mu    sync.Mutex
	modes map[int64]Mode
}

func NewSessions(superID int64, st store.Store, log logx.Logger) *Sessions {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sessions{
		superID: superID,
		st:      st,
		log:     log,
		modes:   map[int64]Mode{},
	}
}

// IsPrivileged reports whether the identity may author broadcasts. It fails
// closed: any store error or unknown identity means not privileged.
func (s *Sessions) IsPrivileged(ctx context.Context, id int64) bool {
	if id == s.superID {
		return true
	}
	rec, ok, err := s.st.Get(ctx, id)
	if err != nil {
		s.log.Warn("privilege lookup failed, treating as unprivileged", logx.Int64("id", id), logx.Err(err))
		return false
	}
	return ok && rec.Privileged
}

// IsSuper reports whether the identity is the statically-configured
// super-operator. Privilege granting never goes through the store.
func (s *Sessions) IsSuper(id int64) bool { return id == s.superID }

// BeginAuthoring moves the operator into broadcast-authoring mode.
// Idempotent: calling again keeps the mode and the caller simply re-prompts.
func (s *Sessions) BeginAuthoring(id int64) {
	s.mu.Lock()
	s.modes[id] = ModeAwaitingBroadcastContent
	s.mu.Unlock()
}

// CancelAuthoring returns the operator to idle. It reports whether a pending
// authoring session was actually dropped, so the caller can still acknowledge
// a no-op cancel.
func (s *Sessions) CancelAuthoring(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.modes[id] == ModeAwaitingBroadcastContent
	s.modes[id] = ModeIdle
	return was
}

// ConsumeIfAwaiting atomically clears authoring mode and reports whether the
// inbound content should be handed to the broadcast engine. Each
// BeginAuthoring arms exactly one consume; the next content event falls
// through to default handling.
func (s *Sessions) ConsumeIfAwaiting(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modes[id] != ModeAwaitingBroadcastContent {
		return false
	}
	s.modes[id] = ModeIdle
	return true
}

// GrantPrivilege upserts the target recipient with authoring privilege.
// Only the super-operator may call this; privilege cannot self-escalate.
func (s *Sessions) GrantPrivilege(ctx context.Context, callerID, targetID int64) error {
	if !s.IsSuper(callerID) {
		// Fail closed and silently; the dispatcher never reveals the command.
		return nil
	}
	return s.st.SetPrivileged(ctx, targetID)
}
