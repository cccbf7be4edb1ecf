package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/mlorenc/birthday-notify/internal/model"
)

// birthDateLayout is the wire format for birth dates.
const birthDateLayout = "2006-01-02"

// CreateSubjectRequest is the payload for registering a subject.
type CreateSubjectRequest struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"` // YYYY-MM-DD
	Timezone  string `json:"timezone"`
}

// SubjectService orchestrates subject management. Creating a subject also
// provisions their first Pending event, so the engine has something to claim
// when the next birthday comes around.
type SubjectService struct {
	subjects SubjectStore
	events   EventStore
	resched  *RescheduleCoordinator
	now      func() time.Time
	log      zerolog.Logger
}

// NewSubjectService constructs a SubjectService.
func NewSubjectService(subjects SubjectStore, events EventStore, resched *RescheduleCoordinator, log zerolog.Logger) *SubjectService {
	return &SubjectService{
		subjects: subjects,
		events:   events,
		resched:  resched,
		now:      time.Now,
		log:      log.With().Str("component", "subjects").Logger(),
	}
}

// Create validates the request, stores the subject, and provisions the
// initial event.
func (s *SubjectService) Create(ctx context.Context, req CreateSubjectRequest) (*model.Subject, error) {
	if req.BirthDate == "" {
		return nil, &model.ValidationError{Field: "birth_date", Rule: "must not be empty"}
	}
	bd, err := time.Parse(birthDateLayout, req.BirthDate)
	if err != nil {
		return nil, &model.ValidationError{Field: "birth_date", Rule: "must be a date in YYYY-MM-DD format"}
	}

	subj, err := model.NewSubject(req.Name, bd, req.Timezone, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.subjects.Create(ctx, subj); err != nil {
		return nil, fmt.Errorf("create subject: %w", err)
	}
	if _, err := s.resched.ScheduleInitial(ctx, subj); err != nil && !errors.Is(err, model.ErrDuplicateEvent) {
		return nil, fmt.Errorf("provision initial event: %w", err)
	}

	s.log.Info().Str("subject_id", subj.ID).Str("timezone", subj.Timezone).Msg("subject created")
	return subj, nil
}

// Get returns a single subject by ID.
func (s *SubjectService) Get(ctx context.Context, id string) (*model.Subject, error) {
	if id == "" {
		return nil, &model.ValidationError{Field: "id", Rule: "must not be empty"}
	}
	return s.subjects.GetByID(ctx, id)
}

// List returns all subjects.
func (s *SubjectService) List(ctx context.Context) ([]model.Subject, error) {
	return s.subjects.List(ctx)
}

// Delete removes a subject and, via the store, its scheduled events.
func (s *SubjectService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &model.ValidationError{Field: "id", Rule: "must not be empty"}
	}
	if err := s.subjects.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("subject_id", id).Msg("subject deleted")
	return nil
}

// GetEvent returns one event for inspection.
func (s *SubjectService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if id == "" {
		return nil, &model.ValidationError{Field: "id", Rule: "must not be empty"}
	}
	return s.events.GetByID(ctx, id)
}

// ListEvents returns a subject's events for auditing.
func (s *SubjectService) ListEvents(ctx context.Context, subjectID string) ([]*model.Event, error) {
	if _, err := s.subjects.GetByID(ctx, subjectID); err != nil {
		return nil, err
	}
	return s.events.ListBySubject(ctx, subjectID)
}
