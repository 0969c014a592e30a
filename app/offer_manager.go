package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"attune/domain/core"
	"attune/domain/exchange"
	"attune/ports"
)

// OfferManager owns the sharing flow: offer creation, the subject's response,
// expiry of abandoned offers, and the anti-loop gate that decides whether a
// gap may open an offer at all.
type OfferManager struct {
	offers   ports.OfferRepository
	shares   ports.ShareHistoryRepository
	gaps     ports.GapResultRepository
	attempts ports.AttemptRepository
	drafter  ports.SuggestionDrafter
	notifier ports.Notifier
	reveals  *RevealCoordinator
	offerTTL time.Duration
}

// NewOfferManager creates an offer manager. The drafter is optional; without
// one, offers open with no suggested content.
func NewOfferManager(
	offers ports.OfferRepository,
	shares ports.ShareHistoryRepository,
	gaps ports.GapResultRepository,
	attempts ports.AttemptRepository,
	drafter ports.SuggestionDrafter,
	notifier ports.Notifier,
	reveals *RevealCoordinator,
	offerTTL time.Duration,
) *OfferManager {
	return &OfferManager{
		offers:   offers,
		shares:   shares,
		gaps:     gaps,
		attempts: attempts,
		drafter:  drafter,
		notifier: notifier,
		reveals:  reveals,
		offerTTL: offerTTL,
	}
}

// ShareGate is the single admission check for the sharing flow. It denies a
// second offer for a gap whose context was already shared (matched by
// fingerprint), and denies stacking a new offer on one still open. Every code
// path that would move a direction into awaiting_sharing must pass here.
func (m *OfferManager) ShareGate(ctx context.Context, attempt *exchange.Attempt, result *exchange.GapAnalysisResult) (bool, string, error) {
	records, err := m.shares.ListShares(ctx, attempt.ID)
	if err != nil {
		return false, "", fmt.Errorf("failed to read share history: %w", err)
	}
	fingerprint := result.GapFingerprint()
	for _, record := range records {
		if record.GapFingerprint.Equals(fingerprint) {
			return false, "context already shared for this gap", nil
		}
	}

	if _, err := m.offers.GetOpenOffer(ctx, attempt.ID); err == nil {
		return false, "an offer is already open for this direction", nil
	} else if !core.IsNotFoundError(err) {
		return false, "", fmt.Errorf("failed to check open offers: %w", err)
	}

	return true, "", nil
}

// OpenOffer creates the share offer for a gap result and notifies the subject.
// A drafter failure degrades to an offer without a suggestion.
func (m *OfferManager) OpenOffer(ctx context.Context, attempt *exchange.Attempt, result *exchange.GapAnalysisResult, actualText string) (*exchange.ShareOffer, error) {
	suggested := ""
	if m.drafter != nil {
		draft, err := m.drafter.Draft(ctx, ports.DraftRequest{
			ActualText: actualText,
			GuessText:  attempt.Content,
			ShareFocus: result.ShareFocus,
		})
		if err != nil {
			log.Printf("[Offers] Draft failed for attempt %s, offering without suggestion: %v", attempt.ID, err)
		} else {
			suggested = draft
		}
	}

	offer := &exchange.ShareOffer{
		ID:               core.OfferID(core.NewID()),
		GapResultID:      result.ID,
		AttemptID:        attempt.ID,
		Status:           exchange.OfferPending,
		SuggestedContent: suggested,
	}
	if err := m.offers.CreateOffer(ctx, offer); err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}

	m.notifier.Publish(ctx, attempt.SessionID, ports.EventShareOffered, map[string]interface{}{
		"offer_id":    offer.ID.String(),
		"attempt_id":  attempt.ID.String(),
		"subject_id":  attempt.SubjectID.String(),
		"share_focus": result.ShareFocus,
	})
	if err := m.offers.MarkOffered(ctx, offer.ID); err != nil {
		log.Printf("[Offers] Failed to mark offer %s delivered: %v", offer.ID, err)
	}

	return m.offers.GetOffer(ctx, offer.ID)
}

// Respond applies the subject's decision on an open offer. Accept shares the
// suggested content as-is, refine shares an edited version, decline routes the
// direction to ready with nothing shared. A repeated response with the same
// outcome is idempotent; a conflicting repeat surfaces ErrOfferClosed.
func (m *OfferManager) Respond(ctx context.Context, offerID core.OfferID, response exchange.OfferResponse, editedContent string) (*exchange.ShareOffer, error) {
	offer, err := m.offers.GetOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	attempt, err := m.attempts.GetAttempt(ctx, offer.AttemptID)
	if err != nil {
		return nil, err
	}

	switch response {
	case exchange.ResponseDecline:
		if err := m.offers.CloseOffer(ctx, offer.ID, exchange.OfferDeclined, ""); err != nil {
			if errors.Is(err, core.ErrOfferClosed) && offer.Status == exchange.OfferDeclined {
				return offer, nil
			}
			return nil, err
		}
		if err := m.attempts.UpdateStatus(ctx, attempt.ID, exchange.StatusAwaitingSharing, exchange.StatusReady); err != nil {
			return nil, fmt.Errorf("failed to route declined direction: %w", err)
		}
		m.notifier.Publish(ctx, attempt.SessionID, ports.EventOfferDeclined, map[string]interface{}{
			"offer_id":   offer.ID.String(),
			"attempt_id": attempt.ID.String(),
		})
		m.notifier.Publish(ctx, attempt.SessionID, ports.EventDirectionReady, map[string]interface{}{
			"attempt_id": attempt.ID.String(),
			"guesser_id": attempt.GuesserID.String(),
			"reason":     "offer_declined",
		})
		if _, err := m.reveals.TryReveal(ctx, attempt.SessionID); err != nil {
			return nil, fmt.Errorf("reveal check failed: %w", err)
		}
		return m.offers.GetOffer(ctx, offer.ID)

	case exchange.ResponseAccept, exchange.ResponseRefine:
		content := offer.SuggestedContent
		if response == exchange.ResponseRefine {
			content = strings.TrimSpace(editedContent)
		}
		if content == "" {
			return nil, fmt.Errorf("no content to share for offer %s", offer.ID)
		}

		if err := m.offers.CloseOffer(ctx, offer.ID, exchange.OfferAccepted, content); err != nil {
			if errors.Is(err, core.ErrOfferClosed) && offer.Status == exchange.OfferAccepted {
				return offer, nil
			}
			return nil, err
		}

		result, err := m.gaps.GetResult(ctx, offer.GapResultID)
		if err != nil {
			return nil, fmt.Errorf("failed to load offer's gap result: %w", err)
		}

		// The history row lands before the status moves, so a crash in
		// between can never let the same gap offer twice.
		record := &exchange.ShareRecord{
			ID:             core.NewID(),
			AttemptID:      attempt.ID,
			GapFingerprint: result.GapFingerprint(),
			SharedContent:  content,
		}
		if err := m.shares.RecordShare(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to record share: %w", err)
		}
		if err := m.attempts.MarkShared(ctx, attempt.ID); err != nil {
			return nil, fmt.Errorf("failed to mark attempt shared: %w", err)
		}
		if err := m.attempts.UpdateStatus(ctx, attempt.ID, exchange.StatusAwaitingSharing, exchange.StatusRefining); err != nil {
			return nil, fmt.Errorf("failed to route shared direction: %w", err)
		}

		m.notifier.Publish(ctx, attempt.SessionID, ports.EventContextShared, map[string]interface{}{
			"offer_id":       offer.ID.String(),
			"attempt_id":     attempt.ID.String(),
			"guesser_id":     attempt.GuesserID.String(),
			"shared_content": content,
		})
		return m.offers.GetOffer(ctx, offer.ID)

	default:
		return nil, fmt.Errorf("unknown offer response %q", response)
	}
}

// ExpireStale sweeps open offers past the TTL, expiring each and routing its
// direction to ready. Returns the number of offers expired.
func (m *OfferManager) ExpireStale(ctx context.Context) (int, error) {
	expired, err := m.offers.ExpireStale(ctx, time.Now().Add(-m.offerTTL))
	if err != nil {
		return 0, fmt.Errorf("failed to expire offers: %w", err)
	}

	for _, offer := range expired {
		attempt, err := m.attempts.GetAttempt(ctx, offer.AttemptID)
		if err != nil {
			log.Printf("[Offers] Expired offer %s has no attempt: %v", offer.ID, err)
			continue
		}
		if err := m.attempts.UpdateStatus(ctx, attempt.ID, exchange.StatusAwaitingSharing, exchange.StatusReady); err != nil {
			log.Printf("[Offers] Failed to route expired offer %s: %v", offer.ID, err)
			continue
		}
		m.notifier.Publish(ctx, attempt.SessionID, ports.EventOfferExpired, map[string]interface{}{
			"offer_id":   offer.ID.String(),
			"attempt_id": attempt.ID.String(),
		})
		m.notifier.Publish(ctx, attempt.SessionID, ports.EventDirectionReady, map[string]interface{}{
			"attempt_id": attempt.ID.String(),
			"guesser_id": attempt.GuesserID.String(),
			"reason":     "offer_expired",
		})
		if _, err := m.reveals.TryReveal(ctx, attempt.SessionID); err != nil {
			log.Printf("[Offers] Reveal check after expiry failed for session %s: %v", attempt.SessionID, err)
		}
	}
	return len(expired), nil
}
