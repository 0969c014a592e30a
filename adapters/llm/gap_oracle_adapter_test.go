package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"attune/domain/core"
	"attune/domain/exchange"
	"attune/ports"
)

func testRequest() ports.GapAnalysisRequest {
	return ports.GapAnalysisRequest{
		SessionID:  "session-1",
		GuesserID:  "alice",
		SubjectID:  "bob",
		GuessText:  "I think you feel hurt that I cancelled",
		ActualText: "I was mostly worried about money this week",
	}
}

func TestAnalyzeParsesAssessment(t *testing.T) {
	mock := &MockLLMClient{Response: `{
		"alignment_score": 35,
		"gap_severity": "significant",
		"recommended_action": "offer_sharing",
		"suggested_share_focus": "money worries"
	}`}
	adapter := NewGapOracleAdapter(mock, 3, time.Millisecond)

	assessment, err := adapter.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if assessment.AlignmentScore != 35 {
		t.Errorf("Expected alignment score 35, got %d", assessment.AlignmentScore)
	}
	if assessment.GapSeverity != exchange.SeveritySignificant {
		t.Errorf("Expected significant severity, got %s", assessment.GapSeverity)
	}
	if assessment.Action != exchange.ActionOfferSharing {
		t.Errorf("Expected offer_sharing, got %s", assessment.Action)
	}
	if assessment.ShareFocus != "money worries" {
		t.Errorf("Expected share focus 'money worries', got %q", assessment.ShareFocus)
	}
}

func TestAnalyzeStripsMarkdownFences(t *testing.T) {
	mock := &MockLLMClient{Response: "```json\n{\"alignment_score\": 92, \"gap_severity\": \"none\", \"recommended_action\": \"proceed\"}\n```"}
	adapter := NewGapOracleAdapter(mock, 1, time.Millisecond)

	assessment, err := adapter.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Analyze failed on fenced output: %v", err)
	}
	if assessment.AlignmentScore != 92 {
		t.Errorf("Expected alignment score 92, got %d", assessment.AlignmentScore)
	}
}

func TestAnalyzeRetriesTransientFailures(t *testing.T) {
	mock := &MockLLMClient{
		FailTimes: 2,
		Response:  `{"alignment_score": 80, "gap_severity": "minor", "recommended_action": "proceed"}`,
	}
	adapter := NewGapOracleAdapter(mock, 4, time.Millisecond)

	assessment, err := adapter.Analyze(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Expected retry to recover, got %v", err)
	}
	if mock.Calls != 3 {
		t.Errorf("Expected 3 calls (2 failures + 1 success), got %d", mock.Calls)
	}
	if assessment.GapSeverity != exchange.SeverityMinor {
		t.Errorf("Expected minor severity, got %s", assessment.GapSeverity)
	}
}

func TestAnalyzeExhaustionIsUnavailable(t *testing.T) {
	mock := &MockLLMClient{Error: errors.New("connection refused")}
	adapter := NewGapOracleAdapter(mock, 3, time.Millisecond)

	_, err := adapter.Analyze(context.Background(), testRequest())
	if !errors.Is(err, core.ErrOracleUnavailable) {
		t.Errorf("Expected ErrOracleUnavailable after exhaustion, got %v", err)
	}
	if mock.Calls != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", mock.Calls)
	}
}

func TestAnalyzeRejectsMalformedOutput(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "I think they are pretty aligned overall!"},
		{"score out of range", `{"alignment_score": 140, "gap_severity": "none", "recommended_action": "proceed"}`},
		{"unknown severity", `{"alignment_score": 50, "gap_severity": "huge", "recommended_action": "proceed"}`},
		{"unknown action", `{"alignment_score": 50, "gap_severity": "minor", "recommended_action": "escalate"}`},
	}

	for _, test := range tests {
		mock := &MockLLMClient{Response: test.response}
		adapter := NewGapOracleAdapter(mock, 1, time.Millisecond)

		_, err := adapter.Analyze(context.Background(), testRequest())
		if err == nil {
			t.Errorf("%s: expected error, got none", test.name)
		}
	}
}

func TestDrafterReturnsTrimmedContent(t *testing.T) {
	mock := &MockLLMClient{Response: "  I have been carrying some money stress this week.  \n"}
	drafter := NewDrafterAdapter(mock)

	content, err := drafter.Draft(context.Background(), ports.DraftRequest{
		GuessText:  "you feel hurt",
		ActualText: "worried about money",
		ShareFocus: "money worries",
	})
	if err != nil {
		t.Fatalf("Draft failed: %v", err)
	}
	if content != "I have been carrying some money stress this week." {
		t.Errorf("Unexpected draft content: %q", content)
	}
}
