package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"attune/domain/core"
	"attune/domain/exchange"
	"attune/ports"

	"github.com/jmoiron/sqlx"
)

// ValidationRepositoryImpl implements ValidationRepository for PostgreSQL
type ValidationRepositoryImpl struct {
	db *sqlx.DB
}

// NewValidationRepository creates a new PostgreSQL validation repository
func NewValidationRepository(db *sqlx.DB) ports.ValidationRepository {
	return &ValidationRepositoryImpl{db: db}
}

// SaveValidation stores or updates a verdict. The unique constraint on
// attempt_id keeps one row per direction; a repeat upserts in place, so it
// cannot create duplicates.
func (r *ValidationRepositoryImpl) SaveValidation(ctx context.Context, validation *exchange.Validation) (*exchange.Validation, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO validations (id, attempt_id, subject_id, accurate, feedback, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (attempt_id) DO UPDATE SET
			accurate = EXCLUDED.accurate,
			feedback = EXCLUDED.feedback`,
		validation.ID, validation.AttemptID, validation.SubjectID,
		validation.Accurate, validation.Feedback)
	if err != nil {
		return nil, err
	}

	return r.GetByAttempt(ctx, validation.AttemptID)
}

// MarkStageSignaled claims the session's one downstream completion signal
func (r *ValidationRepositoryImpl) MarkStageSignaled(ctx context.Context, sessionID core.SessionID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO stage_signals (session_id, signaled_at)
		VALUES ($1, NOW())
		ON CONFLICT (session_id) DO NOTHING`, sessionID)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// GetByAttempt retrieves the verdict for an attempt, if recorded
func (r *ValidationRepositoryImpl) GetByAttempt(ctx context.Context, attemptID core.AttemptID) (*exchange.Validation, error) {
	var validation exchange.Validation
	var createdAt time.Time

	err := r.db.QueryRowContext(ctx, `
		SELECT id, attempt_id, subject_id, accurate, feedback, created_at
		FROM validations
		WHERE attempt_id = $1`, attemptID).Scan(
		&validation.ID, &validation.AttemptID, &validation.SubjectID,
		&validation.Accurate, &validation.Feedback, &createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrValidationNotFound
	}
	if err != nil {
		return nil, err
	}

	validation.CreatedAt = core.NewTimestamp(createdAt)
	return &validation, nil
}
