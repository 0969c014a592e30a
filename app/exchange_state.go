package app

import (
	"context"
	"fmt"
	"log"

	"attune/domain/core"
	"attune/domain/exchange"
)

// DirectionState is one direction's slice of the exchange, assembled for a
// specific viewer
type DirectionState struct {
	Attempt    *exchange.Attempt           `json:"attempt"`
	LiveResult *exchange.GapAnalysisResult `json:"live_result,omitempty"`
	OpenOffer  *exchange.ShareOffer        `json:"open_offer,omitempty"`
	Validation *exchange.Validation        `json:"validation,omitempty"`
	HasShared  bool                        `json:"has_shared"`
}

// ExchangeState is the full-state view clients use to reconstruct after a
// missed event
type ExchangeState struct {
	SessionID  core.SessionID   `json:"session_id"`
	Directions []DirectionState `json:"directions"`
}

// GetExchangeState assembles the session's current state as seen by one
// party. A guess stays hidden from its subject until the mutual reveal, and
// offer suggestions are visible only to the subject they were drafted for.
func (s *ReconciliationService) GetExchangeState(ctx context.Context, sessionID core.SessionID, viewer core.PartyID) (*ExchangeState, error) {
	// Opportunistic sweep so a state fetch never shows an offer past its TTL
	if _, err := s.offers.ExpireStale(ctx); err != nil {
		log.Printf("[Reconciliation] Expiry sweep during state fetch failed: %v", err)
	}

	attempts, err := s.attempts.ListSessionAttempts(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list session attempts: %w", err)
	}

	state := &ExchangeState{SessionID: sessionID}
	for _, attempt := range attempts {
		ds := DirectionState{Attempt: attempt}

		if result, err := s.gaps.GetLiveResult(ctx, attempt.ID); err == nil {
			ds.LiveResult = result
		} else if !core.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to load live result: %w", err)
		}

		if offer, err := s.offers.offers.GetOpenOffer(ctx, attempt.ID); err == nil {
			ds.OpenOffer = offer
		} else if !core.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to load open offer: %w", err)
		}

		if validation, err := s.validations.GetByAttempt(ctx, attempt.ID); err == nil {
			ds.Validation = validation
		} else if !core.IsNotFoundError(err) {
			return nil, fmt.Errorf("failed to load validation: %w", err)
		}

		shared, err := s.offers.shares.HasShared(ctx, attempt.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read share history: %w", err)
		}
		ds.HasShared = shared

		redactDirection(&ds, viewer)
		state.Directions = append(state.Directions, ds)
	}
	return state, nil
}

// redactDirection strips the parts of a direction the viewer must not see yet
func redactDirection(ds *DirectionState, viewer core.PartyID) {
	attempt := ds.Attempt
	revealed := attempt.Status == exchange.StatusRevealed || attempt.Status == exchange.StatusValidated

	if viewer != attempt.GuesserID && !revealed {
		// Before the reveal, only the guesser sees their own guess.
		redacted := *attempt
		redacted.Content = ""
		ds.Attempt = &redacted
	}

	if ds.LiveResult != nil && viewer != attempt.SubjectID {
		// Gap details drive the subject's sharing decision; the guesser
		// only learns what the subject chooses to share.
		result := *ds.LiveResult
		result.ShareFocus = ""
		ds.LiveResult = &result
	}

	if ds.OpenOffer != nil && viewer != attempt.SubjectID {
		offer := *ds.OpenOffer
		offer.SuggestedContent = ""
		ds.OpenOffer = &offer
	}
}
