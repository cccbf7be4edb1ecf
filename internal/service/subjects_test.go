package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlorenc/birthday-notify/internal/model"
	"github.com/mlorenc/birthday-notify/internal/schedule"
)

func newSubjectService(t *testing.T) (*SubjectService, *memEventStore, *memSubjectStore) {
	t.Helper()
	events := newMemEventStore()
	subjects := newMemSubjectStore()

	calc, err := schedule.NewCalculator(9)
	require.NoError(t, err)

	log := zerolog.Nop()
	resched := NewRescheduleCoordinator(events, subjects, calc, 3, log)
	svc := NewSubjectService(subjects, events, resched, log)
	return svc, events, subjects
}

func TestSubjectCreateProvisionsInitialEvent(t *testing.T) {
	svc, events, _ := newSubjectService(t)
	ctx := context.Background()

	subj, err := svc.Create(ctx, CreateSubjectRequest{
		Name:      "Ada",
		BirthDate: "1990-05-10",
		Timezone:  "Europe/Warsaw",
	})
	require.NoError(t, err)

	scheduled := events.bySubject(subj.ID)
	require.Len(t, scheduled, 1)
	e := scheduled[0]
	assert.Equal(t, model.StatusPending, e.Status)
	assert.Equal(t, "Europe/Warsaw", e.TargetTimezone)
	assert.True(t, e.TargetUTC.After(time.Now().UTC()))
}

func TestSubjectCreateValidation(t *testing.T) {
	svc, events, _ := newSubjectService(t)
	ctx := context.Background()

	cases := []CreateSubjectRequest{
		{Name: "Ada", BirthDate: "", Timezone: "UTC"},
		{Name: "Ada", BirthDate: "10/05/1990", Timezone: "UTC"},
		{Name: "Ada", BirthDate: "1990-05-10", Timezone: "Atlantis/Underwater"},
		{Name: "", BirthDate: "1990-05-10", Timezone: "UTC"},
		{Name: "Ada", BirthDate: "2999-01-01", Timezone: "UTC"},
	}
	for _, req := range cases {
		_, err := svc.Create(ctx, req)
		var verr *model.ValidationError
		assert.ErrorAs(t, err, &verr, "request %+v", req)
	}
	assert.Empty(t, events.events, "no events provisioned for rejected subjects")
}

func TestSubjectGetAndDelete(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	subj, err := svc.Create(ctx, CreateSubjectRequest{Name: "Ada", BirthDate: "1990-05-10", Timezone: "UTC"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, subj.ID)
	require.NoError(t, err)
	assert.Equal(t, subj.ID, got.ID)

	require.NoError(t, svc.Delete(ctx, subj.ID))
	_, err = svc.Get(ctx, subj.ID)
	require.ErrorIs(t, err, model.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, subj.ID), model.ErrNotFound)
}

func TestSubjectListEventsChecksSubject(t *testing.T) {
	svc, _, _ := newSubjectService(t)
	ctx := context.Background()

	_, err := svc.ListEvents(ctx, "no-such-subject")
	require.ErrorIs(t, err, model.ErrNotFound)

	subj, err := svc.Create(ctx, CreateSubjectRequest{Name: "Ada", BirthDate: "1990-05-10", Timezone: "UTC"})
	require.NoError(t, err)

	events, err := svc.ListEvents(ctx, subj.ID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
