package app

import (
	"context"
	"fmt"
	"log"

	"attune/domain/core"
	"attune/domain/exchange"
	"attune/ports"
)

// ValidationTracker records the subject's verdict on a revealed guess and
// signals stage completion exactly once when both directions are validated.
type ValidationTracker struct {
	attempts    ports.AttemptRepository
	validations ports.ValidationRepository
	notifier    ports.Notifier
	stage       ports.StageCompleter
}

// NewValidationTracker creates a validation tracker. The stage completer is
// optional; without one, completion is only broadcast as an event.
func NewValidationTracker(
	attempts ports.AttemptRepository,
	validations ports.ValidationRepository,
	notifier ports.Notifier,
	stage ports.StageCompleter,
) *ValidationTracker {
	return &ValidationTracker{
		attempts:    attempts,
		validations: validations,
		notifier:    notifier,
		stage:       stage,
	}
}

// RecordVerdict stores the subject's accuracy verdict for a revealed attempt.
// Only the direction's subject may validate, and only after reveal. A repeated
// identical verdict is idempotent.
func (t *ValidationTracker) RecordVerdict(ctx context.Context, attemptID core.AttemptID, subjectID core.PartyID, accurate bool, feedback string) (*exchange.Validation, error) {
	attempt, err := t.attempts.GetAttempt(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.SubjectID != subjectID {
		return nil, fmt.Errorf("party %s is not the subject of attempt %s", subjectID, attemptID)
	}
	if attempt.Status != exchange.StatusRevealed && attempt.Status != exchange.StatusValidated {
		return nil, fmt.Errorf("attempt %s cannot be validated: %w", attemptID, core.ErrNotRevealed)
	}

	validation := &exchange.Validation{
		ID:        core.NewID(),
		AttemptID: attemptID,
		SubjectID: subjectID,
		Accurate:  accurate,
		Feedback:  feedback,
	}
	saved, err := t.validations.SaveValidation(ctx, validation)
	if err != nil {
		return nil, fmt.Errorf("failed to store validation: %w", err)
	}

	t.notifier.Publish(ctx, attempt.SessionID, ports.EventValidated, map[string]interface{}{
		"attempt_id": attemptID.String(),
		"accurate":   accurate,
	})

	if accurate && attempt.Status == exchange.StatusRevealed {
		err := t.attempts.UpdateStatus(ctx, attemptID, exchange.StatusRevealed, exchange.StatusValidated)
		if err != nil && !core.IsTransitionError(err) {
			return nil, fmt.Errorf("failed to mark attempt validated: %w", err)
		}
	}

	if err := t.maybeCompleteStage(ctx, attempt.SessionID); err != nil {
		return nil, err
	}
	return saved, nil
}

// maybeCompleteStage fires the downstream stage signal when both directions
// have reached validated. The persisted claim row guarantees the signal goes
// out once per session no matter how many verdicts race.
func (t *ValidationTracker) maybeCompleteStage(ctx context.Context, sessionID core.SessionID) error {
	attempts, err := t.attempts.ListSessionAttempts(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to list session attempts: %w", err)
	}
	if len(attempts) != 2 {
		return nil
	}
	for _, a := range attempts {
		if a.Status != exchange.StatusValidated {
			return nil
		}
	}

	claimed, err := t.validations.MarkStageSignaled(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to claim stage signal: %w", err)
	}
	if !claimed {
		return nil
	}

	log.Printf("[Validation] Session %s complete, signaling stage progression", sessionID)
	if t.stage != nil {
		if err := t.stage.Complete(ctx, sessionID); err != nil {
			return fmt.Errorf("stage completion signal failed: %w", err)
		}
	}
	t.notifier.Publish(ctx, sessionID, ports.EventStageComplete, map[string]interface{}{
		"session_id": sessionID.String(),
	})
	return nil
}
