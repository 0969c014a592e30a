package app

import (
	"context"
	"fmt"

	"attune/domain/core"
	"attune/ports"

	"github.com/montanaflynn/stats"
)

// DirectionInsights summarizes one direction's reconciliation effort
type DirectionInsights struct {
	GuesserID      core.PartyID `json:"guesser_id"`
	SubjectID      core.PartyID `json:"subject_id"`
	Status         string       `json:"status"`
	Revisions      int          `json:"revisions"`
	AnalysisRuns   int          `json:"analysis_runs"`
	SharesReceived int          `json:"shares_received"`
	LatestScore    float64      `json:"latest_score"`
	MeanScore      float64      `json:"mean_score"`
	MedianScore    float64      `json:"median_score"`
	ScoreStdDev    float64      `json:"score_std_dev"`
	ScoreTrend     float64      `json:"score_trend"`
}

// ExchangeInsights aggregates both directions of a session
type ExchangeInsights struct {
	SessionID    core.SessionID      `json:"session_id"`
	Directions   []DirectionInsights `json:"directions"`
	OverallAlign float64             `json:"overall_alignment"`
}

// InsightsService computes summary statistics over a session's gap results
type InsightsService struct {
	attempts ports.AttemptRepository
	gaps     ports.GapResultRepository
	shares   ports.ShareHistoryRepository
}

// NewInsightsService creates an insights service
func NewInsightsService(attempts ports.AttemptRepository, gaps ports.GapResultRepository, shares ports.ShareHistoryRepository) *InsightsService {
	return &InsightsService{attempts: attempts, gaps: gaps, shares: shares}
}

// SessionInsights summarizes alignment across every analysis the session has
// run, including superseded ones: trend only means something over the full
// history.
func (s *InsightsService) SessionInsights(ctx context.Context, sessionID core.SessionID) (*ExchangeInsights, error) {
	attempts, err := s.attempts.ListSessionAttempts(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session attempts: %w", err)
	}

	insights := &ExchangeInsights{SessionID: sessionID}
	var latestScores stats.Float64Data

	for _, attempt := range attempts {
		results, err := s.gaps.ListResults(ctx, attempt.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list gap results: %w", err)
		}
		records, err := s.shares.ListShares(ctx, attempt.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list shares: %w", err)
		}

		di := DirectionInsights{
			GuesserID:      attempt.GuesserID,
			SubjectID:      attempt.SubjectID,
			Status:         string(attempt.Status),
			Revisions:      attempt.RevisionCount,
			AnalysisRuns:   len(results),
			SharesReceived: len(records),
		}

		if len(results) > 0 {
			// ListResults is newest first
			scores := make(stats.Float64Data, 0, len(results))
			for i := len(results) - 1; i >= 0; i-- {
				scores = append(scores, float64(results[i].AlignmentScore))
			}
			di.LatestScore = scores[len(scores)-1]
			di.MeanScore, _ = stats.Mean(scores)
			di.MedianScore, _ = stats.Median(scores)
			if len(scores) > 1 {
				di.ScoreStdDev, _ = stats.StandardDeviationSample(scores)
				di.ScoreTrend = scores[len(scores)-1] - scores[0]
			}
			latestScores = append(latestScores, di.LatestScore)
		}

		insights.Directions = append(insights.Directions, di)
	}

	if len(latestScores) > 0 {
		insights.OverallAlign, _ = stats.Mean(latestScores)
	}
	return insights, nil
}
