// Package store persists recipients: every chat identity the bot has seen,
// with its delivery eligibility and funnel profile.
package store

import (
	"context"
	"time"
)

// Recipient is one record per distinct chat identity.
//
// Invariants:
//   - ID is unique and immutable once created.
//   - Eligible only transitions true -> false, except through Enroll: a
//     recipient who sends the entry command is by definition reachable.
//   - Creation is idempotent; profile fields are first-write-wins.
type Recipient struct {
	ID         int64     `bson:"_id"`
	FirstName  string    `bson:"first_name,omitempty"`
	Username   string    `bson:"username,omitempty"`
	JoinedAt   time.Time `bson:"joined_at"`
	Eligible   bool      `bson:"eligible"`
	Privileged bool      `bson:"privileged,omitempty"`
	Goal       string    `bson:"goal,omitempty"`
}

// Profile carries the identity fields seen on an inbound event.
type Profile struct {
	ID        int64
	FirstName string
	Username  string
}

type Store interface {
	// Enroll upserts a recipient on the entry command. It always sets
	// Eligible=true: this is the only write allowed to re-enable delivery.
	Enroll(ctx context.Context, p Profile) error

	// Touch upserts a recipient on any casual inbound message so later
	// broadcasts can reach them. On an existing record it never changes
	// Eligible (funnel progress must not re-enable a blocked recipient).
	Touch(ctx context.Context, p Profile) error

	// SetEligible updates the single eligibility flag.
	SetEligible(ctx context.Context, id int64, eligible bool) error

	// SetGoal persists the funnel's selected financial goal.
	SetGoal(ctx context.Context, id int64, goal string) error

	// SetPrivileged upserts the target with broadcast-authoring privilege.
	SetPrivileged(ctx context.Context, id int64) error

	Get(ctx context.Context, id int64) (Recipient, bool, error)

	// FindEligible returns a snapshot of all recipients with Eligible=true,
	// in stable id order.
	FindEligible(ctx context.Context) ([]Recipient, error)

	CountAll(ctx context.Context) (int64, error)
	CountBlocked(ctx context.Context) (int64, error)

	Close(ctx context.Context) error
}
