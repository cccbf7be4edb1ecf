// Package model defines the core domain types for the birthday notification
// engine: subjects, scheduled events, and the event lifecycle state machine.
package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventStatus is the lifecycle state of a scheduled event.
type EventStatus string

const (
	StatusPending   EventStatus = "pending"
	StatusInFlight  EventStatus = "in_flight"
	StatusCompleted EventStatus = "completed"
	StatusFailed    EventStatus = "failed"
)

// EventKind discriminates event types. Only birthdays exist today; the field
// is persisted so new kinds can be added without a migration.
type EventKind string

// KindBirthday is the yearly birthday notification.
const KindBirthday EventKind = "birthday"

// completeSkewTolerance bounds how far before the target instant a completion
// timestamp may fall. Worker clocks drift; a completion a few seconds "early"
// is legitimate, one hours early is a defect.
const completeSkewTolerance = 5 * time.Minute

// Event is one scheduled occurrence of a recurring notification.
//
// All mutation goes through the transition methods below, which enforce the
// legal lifecycle Pending -> InFlight -> {Completed, Failed} (with the
// soft-fail loop back to Pending while retry budget remains) and bump Version
// on every change. Persisted writes must check the version last read by the
// writer; see repository.EventRepository.Save.
type Event struct {
	ID             string          `json:"id"`
	SubjectID      string          `json:"subject_id"`
	Kind           EventKind       `json:"kind"`
	Status         EventStatus     `json:"status"`
	TargetUTC      time.Time       `json:"target_utc"`      // instant the event becomes due
	TargetTimezone string          `json:"target_timezone"` // timezone the target was computed in, kept for audit
	NextAttemptAt  time.Time       `json:"next_attempt_at"` // earliest instant a claim may pick this event up again
	ExecutedAt     *time.Time      `json:"executed_at,omitempty"`
	FailureReason  string          `json:"failure_reason,omitempty"`
	RetryCount     int             `json:"retry_count"`
	MaxRetries     int             `json:"max_retries"`
	Version        int64           `json:"version"`
	IdempotencyKey string          `json:"idempotency_key"`
	Payload        json.RawMessage `json:"payload"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewEvent builds a Pending event for the given occurrence. The idempotency
// key must already be derived from (subject, target, kind) so that creating
// the same occurrence twice collides on the unique constraint.
func NewEvent(subjectID string, kind EventKind, targetUTC time.Time, targetTimezone, idempotencyKey string, payload json.RawMessage, maxRetries int, now time.Time) (*Event, error) {
	if subjectID == "" {
		return nil, &ValidationError{Field: "subject_id", Rule: "must not be empty"}
	}
	if kind == "" {
		return nil, &ValidationError{Field: "kind", Rule: "must not be empty"}
	}
	if targetUTC.IsZero() {
		return nil, &ValidationError{Field: "target_utc", Rule: "must be set"}
	}
	if idempotencyKey == "" {
		return nil, &ValidationError{Field: "idempotency_key", Rule: "must not be empty"}
	}
	if maxRetries < 0 {
		return nil, &ValidationError{Field: "max_retries", Rule: "must not be negative"}
	}

	return &Event{
		ID:             uuid.New().String(),
		SubjectID:      subjectID,
		Kind:           kind,
		Status:         StatusPending,
		TargetUTC:      targetUTC.UTC(),
		TargetTimezone: targetTimezone,
		NextAttemptAt:  targetUTC.UTC(),
		MaxRetries:     maxRetries,
		Version:        1,
		IdempotencyKey: idempotencyKey,
		Payload:        payload,
		CreatedAt:      now.UTC(),
	}, nil
}

// Terminal reports whether the event can never transition again.
func (e *Event) Terminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusFailed
}

// Claim transitions Pending -> InFlight.
//
// This is only the in-memory legality check. Preventing two workers from both
// claiming the same row is the store's job (row-exclusive selection in
// SelectAndLockDue); optimistic versioning alone cannot do it because both
// workers could read Pending before either writes.
func (e *Event) Claim() error {
	if e.Status != StatusPending {
		return &StateTransitionError{From: e.Status, To: StatusInFlight}
	}
	e.Status = StatusInFlight
	e.Version++
	return nil
}

// Complete transitions InFlight -> Completed and records the execution time.
// A completion timestamp earlier than the target (beyond clock-skew
// tolerance) is rejected: it means somebody delivered an event that was not
// yet due.
func (e *Event) Complete(executedAt time.Time) error {
	if e.Status != StatusInFlight {
		return &StateTransitionError{From: e.Status, To: StatusCompleted}
	}
	if executedAt.Before(e.TargetUTC.Add(-completeSkewTolerance)) {
		return &ValidationError{Field: "executed_at", Rule: "must not precede the target instant"}
	}
	at := executedAt.UTC()
	e.Status = StatusCompleted
	e.ExecutedAt = &at
	e.Version++
	return nil
}

// Fail handles a transient delivery failure on an InFlight event.
//
// While the retry budget lasts, this is a soft fail: the event returns to
// Pending with RetryCount incremented and becomes claimable again at
// nextAttempt. Once RetryCount has reached MaxRetries the event moves to
// Failed instead. The exhausted/not-exhausted distinction lives here, not in
// the status, so callers never have to infer it.
func (e *Event) Fail(reason string, nextAttempt time.Time) error {
	if e.Status != StatusInFlight {
		return &StateTransitionError{From: e.Status, To: StatusFailed}
	}
	if e.RetryCount >= e.MaxRetries {
		e.Status = StatusFailed
		e.FailureReason = reason
		e.Version++
		return nil
	}
	e.RetryCount++
	e.Status = StatusPending
	e.NextAttemptAt = nextAttempt.UTC()
	e.Version++
	return nil
}

// FailPermanently transitions InFlight -> Failed regardless of remaining
// retry budget. Used for failures that will never succeed on retry.
func (e *Event) FailPermanently(reason string) error {
	if e.Status != StatusInFlight {
		return &StateTransitionError{From: e.Status, To: StatusFailed}
	}
	e.Status = StatusFailed
	e.FailureReason = reason
	e.Version++
	return nil
}
