package ports

import (
	"context"
	"time"

	"attune/domain/core"
	"attune/domain/exchange"
)

// OfferRepository persists share offers, 1:1 with the gap result that spawned them
type OfferRepository interface {
	// CreateOffer stores a new offer
	CreateOffer(ctx context.Context, offer *exchange.ShareOffer) error

	// GetOffer retrieves an offer by ID
	GetOffer(ctx context.Context, id core.OfferID) (*exchange.ShareOffer, error)

	// GetOpenOffer returns the attempt's open (pending/offered) offer, if any
	GetOpenOffer(ctx context.Context, attemptID core.AttemptID) (*exchange.ShareOffer, error)

	// CloseOffer conditionally moves an open offer to a closed status
	// (accepted/declined/expired), persisting the final shared content when
	// present. Returns ErrOfferClosed when the offer is no longer open, so a
	// repeated response cannot double-apply.
	CloseOffer(ctx context.Context, id core.OfferID, status exchange.OfferStatus, finalContent string) error

	// MarkOffered records that a pending offer was delivered to the subject
	MarkOffered(ctx context.Context, id core.OfferID) error

	// ExpireStale marks open offers older than the cutoff expired and returns
	// them, so their directions can be routed forward
	ExpireStale(ctx context.Context, olderThan time.Time) ([]*exchange.ShareOffer, error)
}
