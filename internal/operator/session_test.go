package operator

import (
	"context"
	"errors"
	"testing"

	"funnelbot/internal/store"
	logx "funnelbot/pkg/logx"
)

const superID = int64(1000)

func newSessions(t *testing.T) (*Sessions, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	return NewSessions(superID, st, logx.Nop()), st
}

func TestConsumeExactlyOncePerBegin(t *testing.T) {
	t.Parallel()
	s, _ := newSessions(t)

	if s.ConsumeIfAwaiting(superID) {
		t.Fatal("consumed without BeginAuthoring")
	}

	s.BeginAuthoring(superID)
	if !s.ConsumeIfAwaiting(superID) {
		t.Fatal("first consume should fire")
	}
	if s.ConsumeIfAwaiting(superID) {
		t.Fatal("second consume should fall through to default handling")
	}
}

func TestBeginAuthoringIdempotent(t *testing.T) {
	t.Parallel()
	s, _ := newSessions(t)

	s.BeginAuthoring(superID)
	s.BeginAuthoring(superID)
	if !s.ConsumeIfAwaiting(superID) {
		t.Fatal("authoring mode lost after repeated begin")
	}
	if s.ConsumeIfAwaiting(superID) {
		t.Fatal("double begin armed two consumes")
	}
}

func TestCancelAuthoring(t *testing.T) {
	t.Parallel()
	s, _ := newSessions(t)

	if s.CancelAuthoring(superID) {
		t.Fatal("cancel with no session should report idle")
	}
	s.BeginAuthoring(superID)
	if !s.CancelAuthoring(superID) {
		t.Fatal("cancel should drop pending session")
	}
	if s.ConsumeIfAwaiting(superID) {
		t.Fatal("consume fired after cancel")
	}
}

func TestIsPrivileged(t *testing.T) {
	t.Parallel()
	s, st := newSessions(t)
	ctx := context.Background()

	if !s.IsPrivileged(ctx, superID) {
		t.Fatal("super-operator must be privileged")
	}
	if s.IsPrivileged(ctx, 5) {
		t.Fatal("unknown identity must not be privileged")
	}

	if err := st.SetPrivileged(ctx, 5); err != nil {
		t.Fatal(err)
	}
	if !s.IsPrivileged(ctx, 5) {
		t.Fatal("granted identity must be privileged")
	}
}

type failingStore struct {
	store.Store
}

func (failingStore) Get(context.Context, int64) (store.Recipient, bool, error) {
	return store.Recipient{}, false, errors.New("store down")
}

func TestPrivilegeFailsClosedOnStoreError(t *testing.T) {
	t.Parallel()
	s := NewSessions(superID, failingStore{store.NewMemory()}, logx.Nop())

	if s.IsPrivileged(context.Background(), 5) {
		t.Fatal("store error must mean not privileged")
	}
	if !s.IsPrivileged(context.Background(), superID) {
		t.Fatal("super-operator check must not touch the store")
	}
}

func TestGrantPrivilegeSuperOnly(t *testing.T) {
	t.Parallel()
	s, st := newSessions(t)
	ctx := context.Background()

	// A privileged-but-not-super operator cannot grant.
	if err := st.SetPrivileged(ctx, 5); err != nil {
		t.Fatal(err)
	}
	if err := s.GrantPrivilege(ctx, 5, 6); err != nil {
		t.Fatal(err)
	}
	if r, ok, _ := st.Get(ctx, 6); ok && r.Privileged {
		t.Fatal("non-super grant must be a silent no-op")
	}

	if err := s.GrantPrivilege(ctx, superID, 6); err != nil {
		t.Fatal(err)
	}
	r, ok, _ := st.Get(ctx, 6)
	if !ok || !r.Privileged {
		t.Fatalf("super grant did not persist: %+v ok=%v", r, ok)
	}
}
