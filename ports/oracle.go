package ports

import (
	"context"

	"attune/domain/core"
	"attune/domain/exchange"
)

// GapAnalysisRequest carries both sides of one direction to the oracle
type GapAnalysisRequest struct {
	SessionID  core.SessionID
	GuesserID  core.PartyID
	SubjectID  core.PartyID
	GuessText  string
	ActualText string
}

// GapAssessment is the oracle's raw verdict, decoupled from the stored entity
type GapAssessment struct {
	AlignmentScore int                        `json:"alignment_score"` // 0-100
	GapSeverity    exchange.GapSeverity       `json:"gap_severity"`
	Action         exchange.RecommendedAction `json:"recommended_action"`
	ShareFocus     string                     `json:"suggested_share_focus,omitempty"`
}

// GapOracle compares a guess against the subject's actual expressed content.
// Synchronous; callers treat failures as recoverable and fail safe to ready.
type GapOracle interface {
	Analyze(ctx context.Context, req GapAnalysisRequest) (*GapAssessment, error)
}

// DraftRequest carries context for drafting suggested share content
type DraftRequest struct {
	ActualText string
	GuessText  string
	ShareFocus string
}

// SuggestionDrafter proposes share content for the subject to accept or edit.
// Optional capability; failures degrade to an offer without a suggestion.
type SuggestionDrafter interface {
	Draft(ctx context.Context, req DraftRequest) (string, error)
}
