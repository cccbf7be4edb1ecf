package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Subject is a person we send yearly birthday notifications to. Subjects are
// owned by the management API; the engine only reads their birth date and
// timezone when computing occurrences.
type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BirthDate time.Time `json:"birth_date"` // calendar date, stored at UTC midnight
	Timezone  string    `json:"timezone"`   // IANA identifier, e.g. "Europe/Warsaw"
	CreatedAt time.Time `json:"created_at"`
}

// NewSubject validates inputs and returns a Subject with a generated UUID.
// The birth date must be a real calendar date strictly before now, and the
// timezone must resolve against the IANA database. Validating here keeps
// invalid timezones from ever reaching the occurrence calculator.
func NewSubject(name string, birthDate time.Time, timezone string, now time.Time) (*Subject, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Field: "name", Rule: "must not be empty"}
	}
	if timezone == "" {
		return nil, &ValidationError{Field: "timezone", Rule: "must not be empty"}
	}
	if _, err := time.LoadLocation(timezone); err != nil {
		return nil, &ValidationError{Field: "timezone", Rule: "must be a valid IANA timezone identifier"}
	}

	bd := time.Date(birthDate.Year(), birthDate.Month(), birthDate.Day(), 0, 0, 0, 0, time.UTC)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !bd.Before(today) {
		return nil, &ValidationError{Field: "birth_date", Rule: "must be before today"}
	}

	return &Subject{
		ID:        uuid.New().String(),
		Name:      name,
		BirthDate: bd,
		Timezone:  timezone,
		CreatedAt: now.UTC(),
	}, nil
}

// Location resolves the subject's timezone. The identifier was validated at
// construction, so failures here indicate a corrupted record.
func (s *Subject) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, &ValidationError{Field: "timezone", Rule: "must be a valid IANA timezone identifier"}
	}
	return loc, nil
}
