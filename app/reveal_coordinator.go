package app

import (
	"context"
	"fmt"
	"log"

	"attune/domain/core"
	"attune/domain/exchange"
	"attune/ports"
)

// RevealCoordinator performs the mutual reveal: both directions flip to
// revealed in one transaction or neither does. Callers invoke TryReveal after
// any event that could make a direction ready; the call is idempotent.
type RevealCoordinator struct {
	attempts ports.AttemptRepository
	notifier ports.Notifier
}

// NewRevealCoordinator creates a reveal coordinator
func NewRevealCoordinator(attempts ports.AttemptRepository, notifier ports.Notifier) *RevealCoordinator {
	return &RevealCoordinator{attempts: attempts, notifier: notifier}
}

// TryReveal checks whether both of a session's directions are ready and, if
// so, reveals them atomically. Returns true only for the call that performed
// the reveal; concurrent and repeated calls return false without error.
func (c *RevealCoordinator) TryReveal(ctx context.Context, sessionID core.SessionID) (bool, error) {
	attempts, err := c.attempts.ListSessionAttempts(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to list session attempts: %w", err)
	}
	if len(attempts) != 2 {
		return false, nil
	}
	for _, a := range attempts {
		if a.Status != exchange.StatusReady {
			return false, nil
		}
	}

	performed, err := c.attempts.RevealBoth(ctx, attempts[0].ID, attempts[1].ID)
	if err != nil {
		return false, fmt.Errorf("reveal transaction failed: %w", err)
	}
	if !performed {
		return false, nil
	}

	log.Printf("[Reveal] Session %s revealed both directions", sessionID)
	for _, a := range attempts {
		c.notifier.Publish(ctx, sessionID, ports.EventMutualReveal, map[string]interface{}{
			"attempt_id": a.ID.String(),
			"guesser_id": a.GuesserID.String(),
			"subject_id": a.SubjectID.String(),
		})
	}
	return true, nil
}
