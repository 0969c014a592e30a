package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"attune/domain/core"
	"attune/domain/exchange"
	"attune/ports"

	"github.com/jmoiron/sqlx"
)

// AttemptRepositoryImpl implements AttemptRepository for PostgreSQL
type AttemptRepositoryImpl struct {
	db *sqlx.DB
}

// NewAttemptRepository creates a new PostgreSQL attempt repository
func NewAttemptRepository(db *sqlx.DB) ports.AttemptRepository {
	return &AttemptRepositoryImpl{db: db}
}

const attemptColumns = `id, session_id, guesser_id, subject_id, content, status,
	revision_count, delivery_state, sequence_no, shared_at, revealed_at,
	created_at, updated_at`

// UpsertAttempt creates or replaces the direction's attempt. The uniqueness
// constraint on (session_id, guesser_id, subject_id) makes concurrent submits
// on the same direction collapse into one row; a conflicting insert becomes a
// content update with an incremented revision count.
func (r *AttemptRepositoryImpl) UpsertAttempt(ctx context.Context, attempt *exchange.Attempt) (*exchange.Attempt, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attempts (
			id, session_id, guesser_id, subject_id, content, status,
			revision_count, delivery_state, sequence_no, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, NOW(), NOW())
		ON CONFLICT (session_id, guesser_id, subject_id) DO UPDATE SET
			content = EXCLUDED.content,
			revision_count = attempts.revision_count + 1,
			delivery_state = EXCLUDED.delivery_state,
			sequence_no = EXCLUDED.sequence_no,
			updated_at = NOW()
		RETURNING `+attemptColumns,
		attempt.ID, attempt.SessionID, attempt.GuesserID, attempt.SubjectID,
		attempt.Content, attempt.Status, attempt.DeliveryState, attempt.SequenceNo)

	return scanAttempt(row)
}

// GetAttempt retrieves an attempt by ID
func (r *AttemptRepositoryImpl) GetAttempt(ctx context.Context, id core.AttemptID) (*exchange.Attempt, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id)

	attempt, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("attempt", id.String())
	}
	return attempt, err
}

// GetByDirection retrieves the attempt for one direction, if any
func (r *AttemptRepositoryImpl) GetByDirection(ctx context.Context, dir exchange.Direction) (*exchange.Attempt, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+attemptColumns+` FROM attempts
		WHERE session_id = $1 AND guesser_id = $2 AND subject_id = $3`,
		dir.SessionID, dir.GuesserID, dir.SubjectID)

	attempt, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrAttemptNotFound
	}
	return attempt, err
}

// ListSessionAttempts returns both directions' attempts, ordered by sequence number
func (r *AttemptRepositoryImpl) ListSessionAttempts(ctx context.Context, sessionID core.SessionID) ([]*exchange.Attempt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+attemptColumns+` FROM attempts
		WHERE session_id = $1
		ORDER BY sequence_no ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []*exchange.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// UpdateStatus performs a compare-and-swap status update
func (r *AttemptRepositoryImpl) UpdateStatus(ctx context.Context, id core.AttemptID, from, to exchange.AttemptStatus) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE attempts SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`, to, id, from)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Report the actual status in the rejection
		var current string
		err := r.db.QueryRowContext(ctx, `SELECT status FROM attempts WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return core.NewNotFoundError("attempt", id.String())
		}
		if err != nil {
			return err
		}
		return core.NewInvalidTransitionError(current, string(to))
	}
	return nil
}

// UpdateStatusAtRevision performs the status CAS only when the revision count
// still matches the one the caller analyzed
func (r *AttemptRepositoryImpl) UpdateStatusAtRevision(ctx context.Context, id core.AttemptID, from, to exchange.AttemptStatus, revision int) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE attempts SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND revision_count = $4`, to, id, from, revision)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var current string
		err := r.db.QueryRowContext(ctx, `SELECT status FROM attempts WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return core.NewNotFoundError("attempt", id.String())
		}
		if err != nil {
			return err
		}
		return core.NewInvalidTransitionError(current, string(to))
	}
	return nil
}

// SetDeliveryState updates the client-facing delivery state
func (r *AttemptRepositoryImpl) SetDeliveryState(ctx context.Context, id core.AttemptID, state exchange.DeliveryState) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE attempts SET delivery_state = $1, updated_at = NOW()
		WHERE id = $2`, state, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.NewNotFoundError("attempt", id.String())
	}
	return nil
}

// MarkShared stamps shared_at on the attempt
func (r *AttemptRepositoryImpl) MarkShared(ctx context.Context, id core.AttemptID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE attempts SET shared_at = NOW(), updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return core.NewNotFoundError("attempt", id.String())
	}
	return nil
}

// RevealBoth atomically reveals both directions if and only if both are
// ready. The rows are locked in a single transaction before the check, so
// concurrent reveal attempts serialize; exactly one caller performs the
// reveal and later calls see revealed rows and no-op.
func (r *AttemptRepositoryImpl) RevealBoth(ctx context.Context, a, b core.AttemptID) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, status FROM attempts
		WHERE id IN ($1, $2)
		ORDER BY id
		FOR UPDATE`, a, b)
	if err != nil {
		return false, err
	}

	statuses := make(map[string]string, 2)
	for rows.Next() {
		var id, status string
		if err := rows.Scan(&id, &status); err != nil {
			rows.Close()
			return false, err
		}
		statuses[id] = status
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}

	if len(statuses) != 2 {
		return false, fmt.Errorf("reveal check expected 2 attempts, found %d", len(statuses))
	}
	for _, status := range statuses {
		if status != string(exchange.StatusReady) {
			// Not both ready (or already revealed): no-op
			return false, nil
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE attempts
		SET status = $1, revealed_at = NOW(), delivery_state = $2, updated_at = NOW()
		WHERE id IN ($3, $4)`,
		exchange.StatusRevealed, exchange.DeliveryDelivered, a, b); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// MaxSequence returns the highest sequence number issued in a session
func (r *AttemptRepositoryImpl) MaxSequence(ctx context.Context, sessionID core.SessionID) (int64, error) {
	var max int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence_no), 0) FROM attempts WHERE session_id = $1`,
		sessionID).Scan(&max)
	return max, err
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAttempt(row rowScanner) (*exchange.Attempt, error) {
	var attempt exchange.Attempt
	var sharedAt, revealedAt sql.NullTime
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&attempt.ID, &attempt.SessionID, &attempt.GuesserID, &attempt.SubjectID,
		&attempt.Content, &attempt.Status, &attempt.RevisionCount,
		&attempt.DeliveryState, &attempt.SequenceNo, &sharedAt, &revealedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if sharedAt.Valid {
		ts := core.NewTimestamp(sharedAt.Time)
		attempt.SharedAt = &ts
	}
	if revealedAt.Valid {
		ts := core.NewTimestamp(revealedAt.Time)
		attempt.RevealedAt = &ts
	}
	attempt.CreatedAt = core.NewTimestamp(createdAt)
	attempt.UpdatedAt = core.NewTimestamp(updatedAt)

	return &attempt, nil
}
