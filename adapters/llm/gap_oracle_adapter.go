package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"attune/domain/core"
	"attune/domain/exchange"
	"attune/ports"
)

// GapOracleAdapter implements ports.GapOracle against a chat-completion LLM.
// The freshly computed assessment is returned directly to the caller, so no
// read-after-write round trip against storage is ever needed. Retries cover
// the oracle call itself: bounded attempts with exponential backoff; when the
// budget is exhausted the caller routes the direction to ready.
type GapOracleAdapter struct {
	client      LLMClient
	maxAttempts int
	backoffBase time.Duration
}

// NewGapOracleAdapter creates a gap oracle adapter
func NewGapOracleAdapter(client LLMClient, maxAttempts int, backoffBase time.Duration) *GapOracleAdapter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if backoffBase <= 0 {
		backoffBase = 500 * time.Millisecond
	}
	return &GapOracleAdapter{
		client:      client,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

// Analyze compares guess vs. actual content and returns the assessment
func (a *GapOracleAdapter) Analyze(ctx context.Context, req ports.GapAnalysisRequest) (*ports.GapAssessment, error) {
	prompt := buildGapPrompt(req.GuessText, req.ActualText)

	var lastErr error
	delay := a.backoffBase
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		content, err := a.client.ChatCompletion(ctx, gapSystemPrompt, prompt)
		if err == nil {
			assessment, parseErr := parseAssessment(content)
			if parseErr == nil {
				return assessment, nil
			}
			// Malformed output counts against the retry budget like a failed call
			err = parseErr
		}

		lastErr = err
		if attempt == a.maxAttempts {
			break
		}
		log.Printf("[GapOracle] Attempt %d/%d failed for session %s: %v (retrying in %v)",
			attempt, a.maxAttempts, req.SessionID, err, delay)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", core.ErrOracleUnavailable, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", core.ErrOracleUnavailable, a.maxAttempts, lastErr)
}

// parseAssessment decodes and validates the oracle's JSON verdict
func parseAssessment(content string) (*ports.GapAssessment, error) {
	cleaned := cleanJSONContent(content)

	var assessment ports.GapAssessment
	if err := json.Unmarshal([]byte(cleaned), &assessment); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrOracleMalformed, err)
	}

	if assessment.AlignmentScore < 0 || assessment.AlignmentScore > 100 {
		return nil, fmt.Errorf("%w: alignment score %d out of range", core.ErrOracleMalformed, assessment.AlignmentScore)
	}

	switch assessment.GapSeverity {
	case exchange.SeverityNone, exchange.SeverityMinor, exchange.SeverityModerate, exchange.SeveritySignificant:
	default:
		return nil, fmt.Errorf("%w: unknown gap severity %q", core.ErrOracleMalformed, assessment.GapSeverity)
	}

	switch assessment.Action {
	case exchange.ActionProceed, exchange.ActionOfferOptional, exchange.ActionOfferSharing:
	default:
		return nil, fmt.Errorf("%w: unknown recommended action %q", core.ErrOracleMalformed, assessment.Action)
	}

	return &assessment, nil
}
