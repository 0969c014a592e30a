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

// GapResultRepositoryImpl implements GapResultRepository for PostgreSQL
type GapResultRepositoryImpl struct {
	db *sqlx.DB
}

// NewGapResultRepository creates a new PostgreSQL gap result repository
func NewGapResultRepository(db *sqlx.DB) ports.GapResultRepository {
	return &GapResultRepositoryImpl{db: db}
}

const gapResultColumns = `id, attempt_id, alignment_score, gap_severity,
	recommended_action, share_focus, superseded, created_at`

// SaveResult supersedes any live predecessor and inserts the fresh result in
// one transaction, keeping the one-live-result-per-direction invariant. A
// result already flagged superseded (a stale in-flight analysis landing after
// a resubmission) is inserted as history without touching the live row.
func (r *GapResultRepositoryImpl) SaveResult(ctx context.Context, result *exchange.GapAnalysisResult) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if !result.Superseded {
		if _, err := tx.ExecContext(ctx, `
			UPDATE gap_results SET superseded = true
			WHERE attempt_id = $1 AND NOT superseded`, result.AttemptID); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO gap_results (
			id, attempt_id, alignment_score, gap_severity,
			recommended_action, share_focus, superseded, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		result.ID, result.AttemptID, result.AlignmentScore, result.GapSeverity,
		result.Action, result.ShareFocus, result.Superseded); err != nil {
		return err
	}

	return tx.Commit()
}

// GetResult retrieves a result by ID
func (r *GapResultRepositoryImpl) GetResult(ctx context.Context, id core.GapResultID) (*exchange.GapAnalysisResult, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+gapResultColumns+` FROM gap_results WHERE id = $1`, id)

	result, err := scanGapResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrGapResultNotFound
	}
	return result, err
}

// GetLiveResult returns the current non-superseded result for an attempt
func (r *GapResultRepositoryImpl) GetLiveResult(ctx context.Context, attemptID core.AttemptID) (*exchange.GapAnalysisResult, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+gapResultColumns+` FROM gap_results
		WHERE attempt_id = $1 AND NOT superseded`, attemptID)

	result, err := scanGapResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrGapResultNotFound
	}
	return result, err
}

// SupersedeResults marks every live result for an attempt superseded
func (r *GapResultRepositoryImpl) SupersedeResults(ctx context.Context, attemptID core.AttemptID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE gap_results SET superseded = true
		WHERE attempt_id = $1 AND NOT superseded`, attemptID)
	return err
}

// ListResults returns all results for an attempt, newest first
func (r *GapResultRepositoryImpl) ListResults(ctx context.Context, attemptID core.AttemptID) ([]*exchange.GapAnalysisResult, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+gapResultColumns+` FROM gap_results
		WHERE attempt_id = $1
		ORDER BY created_at DESC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*exchange.GapAnalysisResult
	for rows.Next() {
		result, err := scanGapResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

func scanGapResult(row rowScanner) (*exchange.GapAnalysisResult, error) {
	var result exchange.GapAnalysisResult
	var createdAt time.Time

	err := row.Scan(
		&result.ID, &result.AttemptID, &result.AlignmentScore,
		&result.GapSeverity, &result.Action, &result.ShareFocus,
		&result.Superseded, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	result.CreatedAt = core.NewTimestamp(createdAt)
	return &result, nil
}

// ShareHistoryRepositoryImpl implements ShareHistoryRepository for PostgreSQL.
// Rows are append-only: nothing here is deleted or superseded, because this
// table is the anti-loop guard's memory.
type ShareHistoryRepositoryImpl struct {
	db *sqlx.DB
}

// NewShareHistoryRepository creates a new PostgreSQL share history repository
func NewShareHistoryRepository(db *sqlx.DB) ports.ShareHistoryRepository {
	return &ShareHistoryRepositoryImpl{db: db}
}

// RecordShare appends the fact that context was shared for a direction
func (r *ShareHistoryRepositoryImpl) RecordShare(ctx context.Context, record *exchange.ShareRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO share_history (id, attempt_id, gap_fingerprint, shared_content, shared_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		record.ID, record.AttemptID, record.GapFingerprint, record.SharedContent)
	return err
}

// HasShared reports whether any context has been shared for the attempt
func (r *ShareHistoryRepositoryImpl) HasShared(ctx context.Context, attemptID core.AttemptID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM share_history WHERE attempt_id = $1)`,
		attemptID).Scan(&exists)
	return exists, err
}

// ListShares returns the direction's full sharing history, oldest first
func (r *ShareHistoryRepositoryImpl) ListShares(ctx context.Context, attemptID core.AttemptID) ([]*exchange.ShareRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, attempt_id, gap_fingerprint, shared_content, shared_at
		FROM share_history
		WHERE attempt_id = $1
		ORDER BY shared_at ASC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*exchange.ShareRecord
	for rows.Next() {
		var record exchange.ShareRecord
		var sharedAt time.Time
		if err := rows.Scan(&record.ID, &record.AttemptID, &record.GapFingerprint,
			&record.SharedContent, &sharedAt); err != nil {
			return nil, err
		}
		record.SharedAt = core.NewTimestamp(sharedAt)
		records = append(records, &record)
	}
	return records, rows.Err()
}
