package ports

import (
	"context"

	"attune/domain/core"
)

// Event types published by the engine
const (
	EventAttemptSubmitted   = "attempt_submitted"
	EventExpressionRecorded = "expression_recorded"
	EventAnalysisStarted    = "analysis_started"
	EventDirectionReady     = "direction_ready"
	EventShareOffered       = "share_offered"
	EventContextShared      = "context_shared"
	EventOfferDeclined      = "offer_declined"
	EventOfferExpired       = "offer_expired"
	EventMutualReveal       = "mutual_reveal"
	EventValidated          = "validated"
	EventStageComplete      = "stage_complete"
)

// Notifier delivers state-change events to connected clients. At-least-once,
// best-effort: delivery failures are non-fatal and clients reconstruct state
// with a full-state fetch.
type Notifier interface {
	Publish(ctx context.Context, sessionID core.SessionID, eventType string, payload map[string]interface{})
}

// StageCompleter is the downstream stage-progression capability, signaled
// exactly once when both directions reach validated
type StageCompleter interface {
	Complete(ctx context.Context, sessionID core.SessionID) error
}
