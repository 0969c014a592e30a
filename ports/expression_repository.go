package ports

import (
	"context"

	"attune/domain/core"
	"attune/domain/exchange"
)

// ExpressionRepository persists each party's own expressed feelings, the
// prerequisite step a direction's analysis waits on and the "actual" side of
// every oracle comparison
type ExpressionRepository interface {
	// UpsertExpression stores or replaces a party's expressed content
	UpsertExpression(ctx context.Context, expr *exchange.Expression) (*exchange.Expression, error)

	// GetExpression retrieves a party's expression for a session, if complete
	GetExpression(ctx context.Context, sessionID core.SessionID, partyID core.PartyID) (*exchange.Expression, error)
}
