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

// ExpressionRepositoryImpl implements ExpressionRepository for PostgreSQL
type ExpressionRepositoryImpl struct {
	db *sqlx.DB
}

// NewExpressionRepository creates a new PostgreSQL expression repository
func NewExpressionRepository(db *sqlx.DB) ports.ExpressionRepository {
	return &ExpressionRepositoryImpl{db: db}
}

// UpsertExpression stores or replaces a party's expressed content
func (r *ExpressionRepositoryImpl) UpsertExpression(ctx context.Context, expr *exchange.Expression) (*exchange.Expression, error) {
	var saved exchange.Expression
	var createdAt, updatedAt time.Time

	err := r.db.QueryRowContext(ctx, `
		INSERT INTO expressions (id, session_id, party_id, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (session_id, party_id) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = NOW()
		RETURNING id, session_id, party_id, content, created_at, updated_at`,
		expr.ID, expr.SessionID, expr.PartyID, expr.Content).Scan(
		&saved.ID, &saved.SessionID, &saved.PartyID, &saved.Content, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	saved.CreatedAt = core.NewTimestamp(createdAt)
	saved.UpdatedAt = core.NewTimestamp(updatedAt)
	return &saved, nil
}

// GetExpression retrieves a party's expression for a session, if complete
func (r *ExpressionRepositoryImpl) GetExpression(ctx context.Context, sessionID core.SessionID, partyID core.PartyID) (*exchange.Expression, error) {
	var expr exchange.Expression
	var createdAt, updatedAt time.Time

	err := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, party_id, content, created_at, updated_at
		FROM expressions
		WHERE session_id = $1 AND party_id = $2`, sessionID, partyID).Scan(
		&expr.ID, &expr.SessionID, &expr.PartyID, &expr.Content, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("expression", partyID.String())
	}
	if err != nil {
		return nil, err
	}

	expr.CreatedAt = core.NewTimestamp(createdAt)
	expr.UpdatedAt = core.NewTimestamp(updatedAt)
	return &expr, nil
}
