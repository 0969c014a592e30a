package app

import (
	"context"
	"errors"
	"testing"

	"attune/domain/core"
	"attune/domain/exchange"
	"attune/ports"
)

// revealSession runs a clean pass to get both directions revealed
func revealSession(t *testing.T, h *engineHarness) (*exchange.Attempt, *exchange.Attempt, exchange.Direction) {
	t.Helper()
	forward, reverse := testDirections()
	mustExpress(t, h, forward.SessionID, forward.SubjectID, "I feel tired")
	mustExpress(t, h, forward.SessionID, forward.GuesserID, "I feel hopeful")
	a := mustSubmit(t, h, forward, "You seem tired")
	b := mustSubmit(t, h, reverse, "You seem hopeful")

	got, _ := h.attempts.GetAttempt(context.Background(), a.ID)
	if got.Status != exchange.StatusRevealed {
		t.Fatalf("Setup expected revealed, got %s", got.Status)
	}
	return a, b, forward
}

func TestRecordVerdictRequiresReveal(t *testing.T) {
	h := newEngineHarness()
	forward, _ := testDirections()

	attempt := mustSubmit(t, h, forward, "You seem tired")

	_, err := h.validator.RecordVerdict(context.Background(), attempt.ID, forward.SubjectID, true, "")
	if !errors.Is(err, core.ErrNotRevealed) {
		t.Errorf("Expected ErrNotRevealed for a held attempt, got %v", err)
	}
}

func TestRecordVerdictRejectsNonSubject(t *testing.T) {
	h := newEngineHarness()
	a, _, forward := revealSession(t, h)

	if _, err := h.validator.RecordVerdict(context.Background(), a.ID, forward.GuesserID, true, ""); err == nil {
		t.Error("Expected the guesser to be barred from validating their own guess")
	}
}

func TestAccurateVerdictValidatesAttempt(t *testing.T) {
	h := newEngineHarness()
	a, _, forward := revealSession(t, h)
	ctx := context.Background()

	validation, err := h.validator.RecordVerdict(ctx, a.ID, forward.SubjectID, true, "spot on")
	if err != nil {
		t.Fatalf("RecordVerdict failed: %v", err)
	}
	if !validation.Accurate {
		t.Error("Expected an accurate verdict")
	}

	got, _ := h.attempts.GetAttempt(ctx, a.ID)
	if got.Status != exchange.StatusValidated {
		t.Errorf("Expected validated, got %s", got.Status)
	}
	if h.notifier.count(ports.EventValidated) != 1 {
		t.Errorf("Expected one validated event, got %d", h.notifier.count(ports.EventValidated))
	}
}

func TestInaccurateVerdictKeepsAttemptRevealed(t *testing.T) {
	h := newEngineHarness()
	a, _, forward := revealSession(t, h)
	ctx := context.Background()

	if _, err := h.validator.RecordVerdict(ctx, a.ID, forward.SubjectID, false, "not quite"); err != nil {
		t.Fatalf("RecordVerdict failed: %v", err)
	}

	got, _ := h.attempts.GetAttempt(ctx, a.ID)
	if got.Status != exchange.StatusRevealed {
		t.Errorf("Expected revealed to persist on an inaccurate verdict, got %s", got.Status)
	}
	if h.stage.calls != 0 {
		t.Error("Expected no stage signal without both validations")
	}
}

// Stage completion fires exactly once no matter how many verdicts land.
func TestStageSignalsExactlyOnce(t *testing.T) {
	h := newEngineHarness()
	a, b, forward := revealSession(t, h)
	ctx := context.Background()

	if _, err := h.validator.RecordVerdict(ctx, a.ID, forward.SubjectID, true, ""); err != nil {
		t.Fatalf("First verdict failed: %v", err)
	}
	if h.stage.calls != 0 {
		t.Error("Expected no stage signal after one direction")
	}

	if _, err := h.validator.RecordVerdict(ctx, b.ID, forward.GuesserID, true, ""); err != nil {
		t.Fatalf("Second verdict failed: %v", err)
	}
	if h.stage.calls != 1 {
		t.Errorf("Expected exactly one stage signal, got %d", h.stage.calls)
	}
	if h.notifier.count(ports.EventStageComplete) != 1 {
		t.Errorf("Expected one stage_complete event, got %d", h.notifier.count(ports.EventStageComplete))
	}

	// Repeated verdicts on a validated attempt must not re-signal.
	if _, err := h.validator.RecordVerdict(ctx, b.ID, forward.GuesserID, true, "still accurate"); err != nil {
		t.Fatalf("Repeated verdict failed: %v", err)
	}
	if h.stage.calls != 1 {
		t.Errorf("Expected stage signal to stay at one, got %d", h.stage.calls)
	}
}
