package ports

import (
	"context"

	"attune/domain/core"
	"attune/domain/exchange"
)

// AttemptRepository defines persistence for guess attempts. One row per
// direction, enforced by a uniqueness constraint on the direction key.
type AttemptRepository interface {
	// UpsertAttempt creates the direction's attempt or replaces its content on
	// resubmission. Idempotent with respect to concurrent submits on the same
	// direction key; returns the stored row.
	UpsertAttempt(ctx context.Context, attempt *exchange.Attempt) (*exchange.Attempt, error)

	// GetAttempt retrieves an attempt by ID
	GetAttempt(ctx context.Context, id core.AttemptID) (*exchange.Attempt, error)

	// GetByDirection retrieves the attempt for one direction, if any
	GetByDirection(ctx context.Context, dir exchange.Direction) (*exchange.Attempt, error)

	// ListSessionAttempts returns both directions' attempts for a session,
	// ordered by sequence number
	ListSessionAttempts(ctx context.Context, sessionID core.SessionID) ([]*exchange.Attempt, error)

	// UpdateStatus performs a compare-and-swap status update: the row is only
	// written if its current status equals from. Returns ErrInvalidTransition
	// when the guard fails.
	UpdateStatus(ctx context.Context, id core.AttemptID, from, to exchange.AttemptStatus) error

	// UpdateStatusAtRevision is UpdateStatus additionally guarded on the
	// revision count: an analysis that landed for an older revision can
	// never route the direction the current revision owns.
	UpdateStatusAtRevision(ctx context.Context, id core.AttemptID, from, to exchange.AttemptStatus, revision int) error

	// SetDeliveryState updates the client-facing delivery state
	SetDeliveryState(ctx context.Context, id core.AttemptID, state exchange.DeliveryState) error

	// MarkShared stamps shared_at on the attempt whose direction received
	// shared context
	MarkShared(ctx context.Context, id core.AttemptID) error

	// RevealBoth atomically sets both attempts to revealed if and only if both
	// are currently ready, stamping revealed_at. Returns true when this call
	// performed the reveal, false when the guard failed or it already happened.
	RevealBoth(ctx context.Context, a, b core.AttemptID) (bool, error)

	// MaxSequence returns the highest sequence number issued in a session,
	// used to seed the in-process allocator after restart
	MaxSequence(ctx context.Context, sessionID core.SessionID) (int64, error)
}
