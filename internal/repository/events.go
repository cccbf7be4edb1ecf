// Package repository implements all database queries for the notification
// engine. It uses pgx directly (no ORM) for transparency and performance.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mlorenc/birthday-notify/internal/model"
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

const eventColumns = `id, subject_id, kind, status, target_utc, target_timezone,
	next_attempt_at, executed_at, failure_reason, retry_count, max_retries,
	version, idempotency_key, payload, created_at`

// EventRepository handles persistence for scheduled events.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new event. A collision on the idempotency key or on the
// one-event-per-(subject, year) slot yields model.ErrDuplicateEvent, which is
// what makes rescheduling safe to repeat.
func (r *EventRepository) Create(ctx context.Context, e *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.SubjectID, e.Kind, e.Status, e.TargetUTC, e.TargetTimezone,
		e.NextAttemptAt, e.ExecutedAt, e.FailureReason, e.RetryCount, e.MaxRetries,
		e.Version, e.IdempotencyKey, e.Payload, e.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return model.ErrDuplicateEvent
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByID returns a single event or model.ErrNotFound.
func (r *EventRepository) GetByID(ctx context.Context, id string) (*model.Event, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListBySubject returns all events for a subject, newest target first.
func (r *EventRepository) ListBySubject(ctx context.Context, subjectID string) ([]*model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE subject_id = $1 ORDER BY target_utc DESC`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Save persists a mutated event, accepting the write only if the stored
// version still matches the version the caller read. A mismatch yields
// model.ErrOptimisticLockConflict and leaves the row untouched; the caller
// must re-read and decide whether to re-apply.
func (r *EventRepository) Save(ctx context.Context, e *model.Event, expectedVersion int64) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events
		 SET status = $2, next_attempt_at = $3, executed_at = $4,
		     failure_reason = $5, retry_count = $6, version = $7
		 WHERE id = $1 AND version = $8`,
		e.ID, e.Status, e.NextAttemptAt, e.ExecutedAt,
		e.FailureReason, e.RetryCount, e.Version, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("save event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrOptimisticLockConflict
	}
	return nil
}

// SelectAndLockDue atomically claims up to `limit` due pending events.
//
// The SELECT and the status flip happen inside one transaction, and the
// SELECT takes row-exclusive locks with SKIP LOCKED: rows another worker is
// claiming at the same moment are skipped, not waited on, so two concurrent
// sweeps can never both receive the same event and never block each other.
// Returned events are already InFlight with their version bumped.
func (r *EventRepository) SelectAndLockDue(ctx context.Context, limit int, now time.Time) ([]*model.Event, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin claim transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	rows, err := tx.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 WHERE status = $1 AND target_utc <= $2 AND next_attempt_at <= $2
		 ORDER BY target_utc ASC
		 LIMIT $3
		 FOR UPDATE SKIP LOCKED`,
		model.StatusPending, now.UTC(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select due events: %w", err)
	}

	var claimed []*model.Event
	for rows.Next() {
		var e *model.Event
		if e, err = scanEvent(rows); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan due event: %w", err)
		}
		claimed = append(claimed, e)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("read due events: %w", err)
	}

	if len(claimed) == 0 {
		err = tx.Commit(ctx)
		return nil, err
	}

	ids := make([]string, len(claimed))
	for i, e := range claimed {
		ids[i] = e.ID
	}
	if _, err = tx.Exec(ctx,
		`UPDATE events SET status = $1, version = version + 1 WHERE id = ANY($2)`,
		model.StatusInFlight, ids,
	); err != nil {
		return nil, fmt.Errorf("mark events in flight: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit claim transaction: %w", err)
	}

	// Mirror the database write so callers hold the persisted state.
	for _, e := range claimed {
		e.Status = model.StatusInFlight
		e.Version++
	}
	return claimed, nil
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var e model.Event
	err := row.Scan(
		&e.ID, &e.SubjectID, &e.Kind, &e.Status, &e.TargetUTC, &e.TargetTimezone,
		&e.NextAttemptAt, &e.ExecutedAt, &e.FailureReason, &e.RetryCount, &e.MaxRetries,
		&e.Version, &e.IdempotencyKey, &e.Payload, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.TargetUTC = e.TargetUTC.UTC()
	e.NextAttemptAt = e.NextAttemptAt.UTC()
	return &e, nil
}
