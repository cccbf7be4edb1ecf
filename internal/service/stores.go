// Package service implements the scheduling and delivery engine: claiming
// due events, delivering them, applying the retry policy, and scheduling the
// next occurrence. It talks to its collaborators through the capability
// contracts below; the concrete transport and store live in other packages.
package service

import (
	"context"
	"time"

	"github.com/mlorenc/birthday-notify/internal/model"
)

// EventStore is the persistence capability for scheduled events.
type EventStore interface {
	GetByID(ctx context.Context, id string) (*model.Event, error)
	ListBySubject(ctx context.Context, subjectID string) ([]*model.Event, error)
	// Create inserts a Pending event, returning model.ErrDuplicateEvent when
	// the occurrence is already scheduled.
	Create(ctx context.Context, e *model.Event) error
	// Save applies a mutation only if the stored version equals
	// expectedVersion, else returns model.ErrOptimisticLockConflict.
	Save(ctx context.Context, e *model.Event, expectedVersion int64) error
	// SelectAndLockDue atomically claims up to limit due Pending events and
	// returns them already InFlight. Rows being claimed by a concurrent
	// caller are skipped, never handed out twice and never waited on.
	SelectAndLockDue(ctx context.Context, limit int, now time.Time) ([]*model.Event, error)
}

// SubjectStore is the persistence capability for subjects.
type SubjectStore interface {
	Create(ctx context.Context, s *model.Subject) error
	GetByID(ctx context.Context, id string) (*model.Subject, error)
	List(ctx context.Context) ([]model.Subject, error)
	Delete(ctx context.Context, id string) error
}

// Sender delivers a payload to the external receiver. A nil return means the
// receiver accepted the notification; failures come back as
// *model.DeliveryError so the coordinator can classify them. The same
// idempotency key accompanies every attempt for a given occurrence so the
// receiver can drop duplicates.
type Sender interface {
	Send(ctx context.Context, idempotencyKey string, payload []byte) error
}
