package app

import (
	"context"
	"testing"
	"time"

	"attune/domain/exchange"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A state fetch must never show an offer past its TTL: the read path sweeps
// expiries before assembling the view.
func TestExchangeStateSweepsExpiredOffers(t *testing.T) {
	h := newEngineHarness()
	attempt, offer, forward := openOfferForTest(t, h)
	ctx := context.Background()

	h.offerRepo.backdate(offer.ID, time.Now().Add(-48*time.Hour))

	state, err := h.service.GetExchangeState(ctx, forward.SessionID, forward.SubjectID)
	require.NoError(t, err)
	require.Len(t, state.Directions, 2)

	ds := directionFor(t, state, forward.GuesserID)
	assert.Equal(t, attempt.ID, ds.Attempt.ID)
	assert.Nil(t, ds.OpenOffer, "expired offer must not appear as open")
	assert.Equal(t, exchange.StatusReady, ds.Attempt.Status)

	closed, err := h.offerRepo.GetOffer(ctx, offer.ID)
	require.NoError(t, err)
	assert.Equal(t, exchange.OfferExpired, closed.Status)
}

func TestExchangeStateIncludesValidation(t *testing.T) {
	h := newEngineHarness()
	a, _, forward := revealSession(t, h)
	ctx := context.Background()

	_, err := h.validator.RecordVerdict(ctx, a.ID, forward.SubjectID, true, "spot on")
	require.NoError(t, err)

	state, err := h.service.GetExchangeState(ctx, forward.SessionID, forward.SubjectID)
	require.NoError(t, err)
	require.Len(t, state.Directions, 2)

	var found bool
	for _, ds := range state.Directions {
		if ds.Attempt.ID == a.ID {
			found = true
			require.NotNil(t, ds.Validation)
			assert.True(t, ds.Validation.Accurate)
			assert.NotEmpty(t, ds.Attempt.Content, "revealed guess is visible to the subject")
		}
	}
	assert.True(t, found, "validated direction missing from state")
}
