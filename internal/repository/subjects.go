package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mlorenc/birthday-notify/internal/model"
)

// ErrSubjectExists is returned when a subject insert collides on the id.
var ErrSubjectExists = errors.New("subject already exists")

// SubjectRepository handles persistence for subjects.
type SubjectRepository struct {
	db *pgxpool.Pool
}

// NewSubjectRepository constructs a SubjectRepository.
func NewSubjectRepository(db *pgxpool.Pool) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// Create inserts a new subject.
func (r *SubjectRepository) Create(ctx context.Context, s *model.Subject) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO subjects (id, name, birth_date, timezone, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.Name, s.BirthDate, s.Timezone, s.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSubjectExists
		}
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

// GetByID returns a single subject or model.ErrNotFound.
func (r *SubjectRepository) GetByID(ctx context.Context, id string) (*model.Subject, error) {
	var s model.Subject
	err := r.db.QueryRow(ctx,
		`SELECT id, name, birth_date, timezone, created_at FROM subjects WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Name, &s.BirthDate, &s.Timezone, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return &s, nil
}

// List returns all subjects ordered by creation time descending.
func (r *SubjectRepository) List(ctx context.Context) ([]model.Subject, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, birth_date, timezone, created_at
		 FROM subjects
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var s model.Subject
		if err := rows.Scan(&s.ID, &s.Name, &s.BirthDate, &s.Timezone, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// Delete removes a subject. Its events go with it via the FK cascade; this is
// the only path that ever deletes event rows, and it belongs to subject
// management, not to the engine.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
