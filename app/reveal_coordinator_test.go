package app

import (
	"context"
	"testing"

	"attune/domain/exchange"
	"attune/ports"
)

// Re-running the reveal check on an already revealed session is a no-op:
// no second reveal, no extra events.
func TestTryRevealIdempotent(t *testing.T) {
	h := newEngineHarness()
	a, b, forward := revealSession(t, h)
	ctx := context.Background()

	if h.notifier.count(ports.EventMutualReveal) != 2 {
		t.Fatalf("Expected 2 mutual_reveal events after reveal, got %d", h.notifier.count(ports.EventMutualReveal))
	}

	performed, err := h.reveals.TryReveal(ctx, forward.SessionID)
	if err != nil {
		t.Fatalf("TryReveal failed: %v", err)
	}
	if performed {
		t.Error("Expected no second reveal on an already revealed session")
	}
	if h.notifier.count(ports.EventMutualReveal) != 2 {
		t.Errorf("Expected mutual_reveal count to stay at 2, got %d", h.notifier.count(ports.EventMutualReveal))
	}

	gotA, err := h.attempts.GetAttempt(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAttempt failed: %v", err)
	}
	gotB, err := h.attempts.GetAttempt(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetAttempt failed: %v", err)
	}
	if gotA.Status != exchange.StatusRevealed || gotB.Status != exchange.StatusRevealed {
		t.Errorf("Expected both directions to stay revealed, got %s and %s", gotA.Status, gotB.Status)
	}
}
