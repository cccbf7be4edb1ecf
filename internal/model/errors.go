package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrOptimisticLockConflict is returned when a save is attempted with a stale
// version. The caller must re-read the current state before deciding whether
// to re-apply its change; the write is never applied.
var ErrOptimisticLockConflict = errors.New("event version conflict")

// ErrDuplicateEvent is returned when an insert collides with an existing
// event's idempotency key or (subject, year) slot. Rescheduling relies on it
// to stay at-most-once under retried completions.
var ErrDuplicateEvent = errors.New("event already scheduled")

// ValidationError reports input rejected before it ever reaches persistence.
// It is never retried.
type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Rule)
}

// StateTransitionError reports an illegal event lifecycle transition. It
// signals a programming or race defect and must not be swallowed.
type StateTransitionError struct {
	From EventStatus
	To   EventStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("illegal event transition %s -> %s", e.From, e.To)
}

// DeliveryError is the classified outcome of a failed delivery attempt.
// Transient errors are eligible for later retry within the event's retry
// budget; permanent errors stop the retry loop immediately.
type DeliveryError struct {
	Permanent  bool
	StatusCode int // HTTP status when the receiver answered, 0 otherwise
	Reason     string
	Err        error
}

func (e *DeliveryError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s delivery failure: %s: %v", kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s delivery failure: %s", kind, e.Reason)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Transient builds a retry-eligible delivery error.
func Transient(reason string, err error) *DeliveryError {
	return &DeliveryError{Reason: reason, Err: err}
}

// Permanent builds a delivery error that must never be retried.
func Permanent(reason string, err error) *DeliveryError {
	return &DeliveryError{Permanent: true, Reason: reason, Err: err}
}
