package migration

import (
	"context"

	"attune/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createAttemptsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create attempts table")
	}

	if err := r.createGapResultsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create gap_results table")
	}

	if err := r.createShareOffersTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create share_offers table")
	}

	if err := r.createShareHistoryTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create share_history table")
	}

	if err := r.createValidationsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create validations table")
	}

	if err := r.createExpressionsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create expressions table")
	}

	if err := r.createStageSignalsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create stage_signals table")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createAttemptsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS attempts (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL,
			guesser_id UUID NOT NULL,
			subject_id UUID NOT NULL,
			content TEXT NOT NULL,
			status VARCHAR(32) NOT NULL DEFAULT 'held',
			revision_count INTEGER NOT NULL DEFAULT 0,
			delivery_state VARCHAR(32) NOT NULL DEFAULT 'pending',
			sequence_no BIGINT NOT NULL DEFAULT 0,
			shared_at TIMESTAMP WITH TIME ZONE,
			revealed_at TIMESTAMP WITH TIME ZONE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			CONSTRAINT attempts_direction_key UNIQUE (session_id, guesser_id, subject_id)
		)
	`)
	return err
}

func (r *MigrationRunner) createGapResultsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS gap_results (
			id UUID PRIMARY KEY,
			attempt_id UUID NOT NULL REFERENCES attempts(id),
			alignment_score INTEGER NOT NULL CHECK (alignment_score BETWEEN 0 AND 100),
			gap_severity VARCHAR(16) NOT NULL,
			recommended_action VARCHAR(32) NOT NULL,
			share_focus TEXT NOT NULL DEFAULT '',
			superseded BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	// At most one live result per direction
	_, err = db.ExecContext(ctx, `
		CREATE UNIQUE INDEX IF NOT EXISTS gap_results_live_idx
		ON gap_results (attempt_id) WHERE NOT superseded
	`)
	return err
}

func (r *MigrationRunner) createShareOffersTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS share_offers (
			id UUID PRIMARY KEY,
			gap_result_id UUID NOT NULL UNIQUE REFERENCES gap_results(id),
			attempt_id UUID NOT NULL REFERENCES attempts(id),
			status VARCHAR(16) NOT NULL DEFAULT 'pending',
			suggested_content TEXT NOT NULL DEFAULT '',
			final_shared_content TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createShareHistoryTable(ctx context.Context, db *sqlx.DB) error {
	// No foreign key cascade: this table is the anti-loop memory and must
	// survive any lifecycle of gap_results rows
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS share_history (
			id UUID PRIMARY KEY,
			attempt_id UUID NOT NULL,
			gap_fingerprint VARCHAR(64) NOT NULL,
			shared_content TEXT NOT NULL,
			shared_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createValidationsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS validations (
			id UUID PRIMARY KEY,
			attempt_id UUID NOT NULL UNIQUE REFERENCES attempts(id),
			subject_id UUID NOT NULL,
			accurate BOOLEAN NOT NULL,
			feedback TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createExpressionsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS expressions (
			id UUID PRIMARY KEY,
			session_id UUID NOT NULL,
			party_id UUID NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			CONSTRAINT expressions_party_key UNIQUE (session_id, party_id)
		)
	`)
	return err
}

func (r *MigrationRunner) createStageSignalsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS stage_signals (
			session_id UUID PRIMARY KEY,
			signaled_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS attempts_session_idx ON attempts(session_id)`,
		`CREATE INDEX IF NOT EXISTS attempts_status_idx ON attempts(status)`,
		`CREATE INDEX IF NOT EXISTS gap_results_attempt_idx ON gap_results(attempt_id)`,
		`CREATE INDEX IF NOT EXISTS share_offers_attempt_idx ON share_offers(attempt_id)`,
		`CREATE INDEX IF NOT EXISTS share_offers_status_idx ON share_offers(status)`,
		`CREATE INDEX IF NOT EXISTS share_history_attempt_idx ON share_history(attempt_id)`,
	}

	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
