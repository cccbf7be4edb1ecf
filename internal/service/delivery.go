package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mlorenc/birthday-notify/internal/metrics"
	"github.com/mlorenc/birthday-notify/internal/model"
)

// DeliveryCoordinator executes the delivery attempt for a claimed event and
// drives the event through completion or failure.
type DeliveryCoordinator struct {
	store   EventStore
	sender  Sender
	resched *RescheduleCoordinator
	backoff BackoffPolicy
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// NewDeliveryCoordinator constructs a DeliveryCoordinator.
func NewDeliveryCoordinator(store EventStore, sender Sender, resched *RescheduleCoordinator, backoff BackoffPolicy, timeout time.Duration, log zerolog.Logger) *DeliveryCoordinator {
	return &DeliveryCoordinator{
		store:   store,
		sender:  sender,
		resched: resched,
		backoff: backoff,
		timeout: timeout,
		now:     time.Now,
		log:     log.With().Str("component", "delivery").Logger(),
	}
}

// Process delivers one claimed (InFlight) event.
//
// Outcomes:
//   - success: next year's event is scheduled, then this one completes.
//   - transient failure (transport error, 5xx, timeout): the event soft-fails
//     back to Pending for a later sweep. Never retried synchronously — a
//     synchronous retry would block the worker and would not survive a crash.
//   - permanent failure (receiver rejected the payload): straight to Failed,
//     whatever the remaining retry budget.
//
// Classified failures are absorbed into event state and return nil so the
// sweep loop keeps going; only infrastructure and defect errors propagate.
func (d *DeliveryCoordinator) Process(ctx context.Context, e *model.Event) error {
	observed := e.Version
	log := d.log.With().
		Str("event_id", e.ID).
		Str("subject_id", e.SubjectID).
		Str("idempotency_key", e.IdempotencyKey).
		Logger()

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	start := time.Now()
	sendErr := d.sender.Send(sendCtx, e.IdempotencyKey, e.Payload)
	cancel()
	metrics.DeliveryLatency.Observe(time.Since(start).Seconds())

	if sendErr == nil {
		return d.succeed(ctx, e, observed, log)
	}

	var derr *model.DeliveryError
	if errors.As(sendErr, &derr) && derr.Permanent {
		return d.failPermanently(ctx, e, observed, derr, log)
	}
	// Anything else — classified transient, transport error, or an elapsed
	// timeout (the outstanding call is abandoned, not cancelled remotely).
	return d.retryLater(ctx, e, observed, sendErr, log)
}

func (d *DeliveryCoordinator) succeed(ctx context.Context, e *model.Event, observed int64, log zerolog.Logger) error {
	// Schedule the next occurrence before completing. If we crash between
	// the two, the retried completion re-sends (the receiver dedups on the
	// idempotency key) and the duplicate schedule collides harmlessly.
	if _, err := d.resched.ScheduleNext(ctx, e); err != nil && !errors.Is(err, model.ErrDuplicateEvent) {
		// The notification went out but the follow-up could not be written.
		// Soft-fail so a later attempt finishes the bookkeeping; the re-send
		// is ignorable by the receiver.
		log.Warn().Err(err).Msg("delivered but rescheduling failed, queuing re-attempt")
		return d.retryLater(ctx, e, observed, fmt.Errorf("schedule next occurrence: %w", err), log)
	}

	if err := e.Complete(d.now()); err != nil {
		return err
	}
	if err := d.save(ctx, e, observed); err != nil {
		return err
	}

	metrics.DeliveryOutcomes.WithLabelValues("success").Inc()
	log.Info().Time("executed_at", *e.ExecutedAt).Msg("notification delivered")
	return nil
}

func (d *DeliveryCoordinator) failPermanently(ctx context.Context, e *model.Event, observed int64, derr *model.DeliveryError, log zerolog.Logger) error {
	if err := e.FailPermanently(derr.Error()); err != nil {
		return err
	}
	if err := d.save(ctx, e, observed); err != nil {
		return err
	}

	metrics.DeliveryOutcomes.WithLabelValues("permanent").Inc()
	log.Error().Int("status", derr.StatusCode).Str("reason", derr.Reason).
		Msg("permanent delivery failure, event failed")
	return nil
}

func (d *DeliveryCoordinator) retryLater(ctx context.Context, e *model.Event, observed int64, cause error, log zerolog.Logger) error {
	next := d.now().Add(d.backoff.Delay(e.RetryCount, e.IdempotencyKey))
	if err := e.Fail(cause.Error(), next); err != nil {
		return err
	}
	if err := d.save(ctx, e, observed); err != nil {
		return err
	}

	metrics.DeliveryOutcomes.WithLabelValues("transient").Inc()
	if e.Status == model.StatusFailed {
		log.Error().Err(cause).Int("retry_count", e.RetryCount).
			Msg("retry budget exhausted, event failed")
	} else {
		log.Warn().Err(cause).Int("retry_count", e.RetryCount).Time("next_attempt", e.NextAttemptAt).
			Msg("transient delivery failure, will retry")
	}
	return nil
}

func (d *DeliveryCoordinator) save(ctx context.Context, e *model.Event, observed int64) error {
	err := d.store.Save(ctx, e, observed)
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrOptimisticLockConflict) {
		// Should not happen while we hold the claim; surface it rather than
		// overwrite whatever won the race.
		metrics.LockConflicts.Inc()
	}
	return fmt.Errorf("persist event %s: %w", e.ID, err)
}
