package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mlorenc/birthday-notify/internal/model"
)

// memEventStore is an in-memory EventStore with the same contract as the
// Postgres repository: versioned saves, duplicate detection, and an atomic
// claim that hands each due row to exactly one caller.
type memEventStore struct {
	mu     sync.Mutex
	events map[string]*model.Event
}

func newMemEventStore() *memEventStore {
	return &memEventStore{events: make(map[string]*model.Event)}
}

func copyEvent(e *model.Event) *model.Event {
	cp := *e
	if e.ExecutedAt != nil {
		at := *e.ExecutedAt
		cp.ExecutedAt = &at
	}
	return &cp
}

func (m *memEventStore) GetByID(_ context.Context, id string) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyEvent(e), nil
}

func (m *memEventStore) ListBySubject(_ context.Context, subjectID string) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Event
	for _, e := range m.events {
		if e.SubjectID == subjectID {
			out = append(out, copyEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetUTC.After(out[j].TargetUTC) })
	return out, nil
}

func (m *memEventStore) Create(_ context.Context, e *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.events {
		if existing.IdempotencyKey == e.IdempotencyKey {
			return model.ErrDuplicateEvent
		}
		if existing.SubjectID == e.SubjectID && existing.Kind == e.Kind &&
			existing.TargetUTC.Year() == e.TargetUTC.Year() {
			return model.ErrDuplicateEvent
		}
	}
	m.events[e.ID] = copyEvent(e)
	return nil
}

func (m *memEventStore) Save(_ context.Context, e *model.Event, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.events[e.ID]
	if !ok {
		return model.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return model.ErrOptimisticLockConflict
	}
	m.events[e.ID] = copyEvent(e)
	return nil
}

func (m *memEventStore) SelectAndLockDue(_ context.Context, limit int, now time.Time) ([]*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*model.Event
	for _, e := range m.events {
		if e.Status == model.StatusPending && !e.TargetUTC.After(now) && !e.NextAttemptAt.After(now) {
			due = append(due, e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].TargetUTC.Before(due[j].TargetUTC) })
	if len(due) > limit {
		due = due[:limit]
	}

	// Flip under the same lock, mirroring the single claim transaction.
	out := make([]*model.Event, 0, len(due))
	for _, e := range due {
		e.Status = model.StatusInFlight
		e.Version++
		out = append(out, copyEvent(e))
	}
	return out, nil
}

// bumpVersion simulates a concurrent writer touching the stored row.
func (m *memEventStore) bumpVersion(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[id].Version++
}

func (m *memEventStore) get(id string) *model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyEvent(m.events[id])
}

func (m *memEventStore) bySubject(subjectID string) []*model.Event {
	out, _ := m.ListBySubject(context.Background(), subjectID)
	return out
}

// memSubjectStore is an in-memory SubjectStore.
type memSubjectStore struct {
	mu       sync.Mutex
	subjects map[string]*model.Subject
}

func newMemSubjectStore() *memSubjectStore {
	return &memSubjectStore{subjects: make(map[string]*model.Subject)}
}

func (m *memSubjectStore) Create(_ context.Context, s *model.Subject) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subjects[s.ID] = &cp
	return nil
}

func (m *memSubjectStore) GetByID(_ context.Context, id string) (*model.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subjects[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubjectStore) List(_ context.Context) ([]model.Subject, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subject
	for _, s := range m.subjects {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memSubjectStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subjects[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.subjects, id)
	return nil
}

func (m *memSubjectStore) put(s *model.Subject) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.subjects[s.ID] = &cp
}

// scriptedSender returns canned results in order, then succeeds.
type scriptedSender struct {
	mu      sync.Mutex
	results []error
	keys    []string
}

func (s *scriptedSender) Send(_ context.Context, idempotencyKey string, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, idempotencyKey)
	if len(s.results) == 0 {
		return nil
	}
	res := s.results[0]
	s.results = s.results[1:]
	return res
}
