package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used by tests and by environments without a
// document store. It applies the same upsert semantics as the mongo backend.
type Memory struct {
	mu   sync.Mutex
	recs map[int64]Recipient
}

func NewMemory() *Memory {
	return &Memory{recs: map[int64]Recipient{}}
}

func (m *Memory) Enroll(_ context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[p.ID]
	if !ok {
		r = Recipient{ID: p.ID, JoinedAt: time.Now().UTC(), FirstName: p.FirstName, Username: p.Username}
	}
	r.Eligible = true
	m.recs[p.ID] = r
	return nil
}

func (m *Memory) Touch(_ context.Context, p Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[p.ID]; ok {
		return nil
	}
	m.recs[p.ID] = Recipient{
		ID:        p.ID,
		JoinedAt:  time.Now().UTC(),
		FirstName: p.FirstName,
		Username:  p.Username,
		Eligible:  true,
	}
	return nil
}

func (m *Memory) SetEligible(_ context.Context, id int64, eligible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recs[id]; ok {
		r.Eligible = eligible
		m.recs[id] = r
	}
	return nil
}

func (m *Memory) SetGoal(_ context.Context, id int64, goal string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recs[id]; ok {
		r.Goal = goal
		m.recs[id] = r
	}
	return nil
}

func (m *Memory) SetPrivileged(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	if !ok {
		r = Recipient{ID: id, JoinedAt: time.Now().UTC(), Eligible: true}
	}
	r.Privileged = true
	m.recs[id] = r
	return nil
}

func (m *Memory) Get(_ context.Context, id int64) (Recipient, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recs[id]
	return r, ok, nil
}

func (m *Memory) FindEligible(_ context.Context) ([]Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Recipient, 0, len(m.recs))
	for _, r := range m.recs {
		if r.Eligible {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CountAll(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.recs)), nil
}

func (m *Memory) CountBlocked(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.recs {
		if !r.Eligible {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Close(context.Context) error { return nil }
