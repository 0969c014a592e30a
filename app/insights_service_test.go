package app

import (
	"context"
	"testing"

	"attune/domain/exchange"
)

func TestSessionInsightsSummarizesHistory(t *testing.T) {
	h := newEngineHarness()
	forward, reverse := testDirections()
	ctx := context.Background()

	h.oracle.script(forward.GuesserID,
		offerStep(30, "the overlooked decision"),
		proceedStep(80),
	)

	mustExpress(t, h, forward.SessionID, forward.SubjectID, "I feel overlooked")
	mustSubmit(t, h, reverse, "You seem fine")
	attempt := mustSubmit(t, h, forward, "You seem angry at me")
	offer, err := h.offerRepo.GetOpenOffer(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("Expected an open offer: %v", err)
	}
	if _, err := h.offers.Respond(ctx, offer.ID, exchange.ResponseAccept, ""); err != nil {
		t.Fatalf("Respond(accept) failed: %v", err)
	}
	mustSubmit(t, h, forward, "You feel overlooked about the decision")

	insights, err := h.insights.SessionInsights(ctx, forward.SessionID)
	if err != nil {
		t.Fatalf("SessionInsights failed: %v", err)
	}
	if len(insights.Directions) != 2 {
		t.Fatalf("Expected 2 directions, got %d", len(insights.Directions))
	}

	var di DirectionInsights
	for _, d := range insights.Directions {
		if d.GuesserID == forward.GuesserID {
			di = d
		}
	}
	if di.AnalysisRuns != 2 {
		t.Errorf("Expected 2 analysis runs, got %d", di.AnalysisRuns)
	}
	if di.Revisions != 1 {
		t.Errorf("Expected 1 revision, got %d", di.Revisions)
	}
	if di.SharesReceived != 1 {
		t.Errorf("Expected 1 share, got %d", di.SharesReceived)
	}
	if di.LatestScore != 80 {
		t.Errorf("Expected latest score 80, got %f", di.LatestScore)
	}
	if di.MeanScore != 55 {
		t.Errorf("Expected mean 55, got %f", di.MeanScore)
	}
	if di.ScoreTrend != 50 {
		t.Errorf("Expected trend +50, got %f", di.ScoreTrend)
	}
	if insights.OverallAlign != 80 {
		t.Errorf("Expected overall alignment 80, got %f", insights.OverallAlign)
	}
}

func TestSessionInsightsEmptySession(t *testing.T) {
	h := newEngineHarness()
	forward, _ := testDirections()

	insights, err := h.insights.SessionInsights(context.Background(), forward.SessionID)
	if err != nil {
		t.Fatalf("SessionInsights failed: %v", err)
	}
	if len(insights.Directions) != 0 {
		t.Errorf("Expected no directions, got %d", len(insights.Directions))
	}
	if insights.OverallAlign != 0 {
		t.Errorf("Expected zero overall alignment, got %f", insights.OverallAlign)
	}
}
