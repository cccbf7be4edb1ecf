package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mlorenc/birthday-notify/internal/metrics"
	"github.com/mlorenc/birthday-notify/internal/model"
	"github.com/mlorenc/birthday-notify/internal/schedule"
)

// notificationPayload is what gets delivered to the receiver.
type notificationPayload struct {
	SubjectID string    `json:"subject_id"`
	Name      string    `json:"name"`
	Message   string    `json:"message"`
	OccursAt  time.Time `json:"occurs_at"`
	Timezone  string    `json:"timezone"`
}

// RescheduleCoordinator creates the next occurrence's event, both when a
// subject is first provisioned and after each successful delivery.
type RescheduleCoordinator struct {
	events   EventStore
	subjects SubjectStore
	calc     *schedule.Calculator
	retryMax int
	now      func() time.Time
	log      zerolog.Logger
}

// NewRescheduleCoordinator constructs a RescheduleCoordinator.
func NewRescheduleCoordinator(events EventStore, subjects SubjectStore, calc *schedule.Calculator, retryMax int, log zerolog.Logger) *RescheduleCoordinator {
	return &RescheduleCoordinator{
		events:   events,
		subjects: subjects,
		calc:     calc,
		retryMax: retryMax,
		now:      time.Now,
		log:      log.With().Str("component", "reschedule").Logger(),
	}
}

// ScheduleNext creates next year's event for a just-completed one. The
// subject's current birth date and timezone are re-read so later profile
// edits take effect from the next occurrence on.
//
// Calling this twice for the same completion is safe: the derived
// idempotency key collides on the unique constraint and the second call
// reports model.ErrDuplicateEvent without inserting anything.
func (r *RescheduleCoordinator) ScheduleNext(ctx context.Context, completed *model.Event) (*model.Event, error) {
	subj, err := r.subjects.GetByID(ctx, completed.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("load subject %s: %w", completed.SubjectID, err)
	}
	return r.scheduleAfter(ctx, subj, completed.TargetUTC)
}

// ScheduleInitial provisions the first event for a freshly created subject.
func (r *RescheduleCoordinator) ScheduleInitial(ctx context.Context, subj *model.Subject) (*model.Event, error) {
	return r.scheduleAfter(ctx, subj, r.now())
}

func (r *RescheduleCoordinator) scheduleAfter(ctx context.Context, subj *model.Subject, after time.Time) (*model.Event, error) {
	loc, err := subj.Location()
	if err != nil {
		return nil, err
	}

	target := r.calc.NextOccurrence(subj.BirthDate, loc, after)
	key := schedule.Key(subj.ID, target, string(model.KindBirthday))

	payload, err := json.Marshal(notificationPayload{
		SubjectID: subj.ID,
		Name:      subj.Name,
		Message:   fmt.Sprintf("Happy birthday, %s!", subj.Name),
		OccursAt:  target,
		Timezone:  subj.Timezone,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	e, err := model.NewEvent(subj.ID, model.KindBirthday, target, subj.Timezone, key, payload, r.retryMax, r.now())
	if err != nil {
		return nil, err
	}

	if err := r.events.Create(ctx, e); err != nil {
		return nil, err
	}

	metrics.EventsRescheduled.Inc()
	r.log.Info().
		Str("subject_id", subj.ID).
		Str("event_id", e.ID).
		Time("target_utc", target).
		Msg("scheduled next occurrence")
	return e, nil
}
