package ports

import (
	"context"

	"attune/domain/core"
	"attune/domain/exchange"
)

// ValidationRepository persists subject verdicts on revealed guesses
type ValidationRepository interface {
	// SaveValidation stores or updates a verdict. One row per attempt;
	// repeating the same verdict is idempotent.
	SaveValidation(ctx context.Context, validation *exchange.Validation) (*exchange.Validation, error)

	// GetByAttempt retrieves the verdict for an attempt, if recorded
	GetByAttempt(ctx context.Context, attemptID core.AttemptID) (*exchange.Validation, error)

	// MarkStageSignaled claims the session's one downstream completion
	// signal. Returns true for exactly one caller per session; everyone else
	// gets false.
	MarkStageSignaled(ctx context.Context, sessionID core.SessionID) (bool, error)
}
