package ports

import (
	"context"

	"attune/domain/core"
	"attune/domain/exchange"
)

// GapResultRepository persists oracle verdicts. At most one live result per
// direction; prior results are superseded, never deleted, because their
// existence feeds the anti-loop guard.
type GapResultRepository interface {
	// SaveResult stores a fresh result after marking any live predecessor for
	// the same attempt superseded, in one transaction
	SaveResult(ctx context.Context, result *exchange.GapAnalysisResult) error

	// GetResult retrieves a result by ID, superseded or not
	GetResult(ctx context.Context, id core.GapResultID) (*exchange.GapAnalysisResult, error)

	// GetLiveResult returns the current non-superseded result for an attempt
	GetLiveResult(ctx context.Context, attemptID core.AttemptID) (*exchange.GapAnalysisResult, error)

	// SupersedeResults marks every live result for an attempt superseded.
	// Called when a resubmission lands while analysis is still in flight.
	SupersedeResults(ctx context.Context, attemptID core.AttemptID) error

	// ListResults returns all results for an attempt, superseded included,
	// newest first
	ListResults(ctx context.Context, attemptID core.AttemptID) ([]*exchange.GapAnalysisResult, error)
}

// ShareHistoryRepository is the durable per-direction sharing memory. Rows
// here outlive gap-result supersession; the anti-loop gate reads them.
type ShareHistoryRepository interface {
	// RecordShare appends the fact that context was shared for a direction
	RecordShare(ctx context.Context, record *exchange.ShareRecord) error

	// HasShared reports whether any context has been shared for the attempt
	HasShared(ctx context.Context, attemptID core.AttemptID) (bool, error)

	// ListShares returns the direction's full sharing history, oldest first
	ListShares(ctx context.Context, attemptID core.AttemptID) ([]*exchange.ShareRecord, error)
}
