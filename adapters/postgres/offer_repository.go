package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"attune/domain/core"
	"attune/domain/exchange"
	"attune/ports"

	"github.com/jmoiron/sqlx"
)

// OfferRepositoryImpl implements OfferRepository for PostgreSQL
type OfferRepositoryImpl struct {
	db *sqlx.DB
}

// NewOfferRepository creates a new PostgreSQL offer repository
func NewOfferRepository(db *sqlx.DB) ports.OfferRepository {
	return &OfferRepositoryImpl{db: db}
}

const offerColumns = `id, gap_result_id, attempt_id, status, suggested_content,
	final_shared_content, created_at, updated_at`

// CreateOffer stores a new offer
func (r *OfferRepositoryImpl) CreateOffer(ctx context.Context, offer *exchange.ShareOffer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO share_offers (
			id, gap_result_id, attempt_id, status, suggested_content,
			final_shared_content, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, '', NOW(), NOW())`,
		offer.ID, offer.GapResultID, offer.AttemptID, offer.Status, offer.SuggestedContent)
	return err
}

// GetOffer retrieves an offer by ID
func (r *OfferRepositoryImpl) GetOffer(ctx context.Context, id core.OfferID) (*exchange.ShareOffer, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+offerColumns+` FROM share_offers WHERE id = $1`, id)

	offer, err := scanOffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError("share offer", id.String())
	}
	return offer, err
}

// GetOpenOffer returns the attempt's open offer, if any
func (r *OfferRepositoryImpl) GetOpenOffer(ctx context.Context, attemptID core.AttemptID) (*exchange.ShareOffer, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+offerColumns+` FROM share_offers
		WHERE attempt_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC
		LIMIT 1`, attemptID, exchange.OfferPending, exchange.OfferOffered)

	offer, err := scanOffer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrOfferNotFound
	}
	return offer, err
}

// CloseOffer conditionally moves an open offer to a closed status. The guard
// on the current status makes a repeated response a detectable no-op instead
// of a double-apply.
func (r *OfferRepositoryImpl) CloseOffer(ctx context.Context, id core.OfferID, status exchange.OfferStatus, finalContent string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE share_offers
		SET status = $1, final_shared_content = $2, updated_at = NOW()
		WHERE id = $3 AND status IN ($4, $5)`,
		status, finalContent, id, exchange.OfferPending, exchange.OfferOffered)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM share_offers WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return core.NewNotFoundError("share offer", id.String())
		}
		return core.ErrOfferClosed
	}
	return nil
}

// MarkOffered records that a pending offer reached the subject
func (r *OfferRepositoryImpl) MarkOffered(ctx context.Context, id core.OfferID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE share_offers
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		exchange.OfferOffered, id, exchange.OfferPending)
	return err
}

// ExpireStale marks open offers older than the cutoff expired and returns them
func (r *OfferRepositoryImpl) ExpireStale(ctx context.Context, olderThan time.Time) ([]*exchange.ShareOffer, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE share_offers
		SET status = $1, updated_at = NOW()
		WHERE status IN ($2, $3) AND created_at < $4
		RETURNING `+offerColumns,
		exchange.OfferExpired, exchange.OfferPending, exchange.OfferOffered, olderThan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var offers []*exchange.ShareOffer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}

func scanOffer(row rowScanner) (*exchange.ShareOffer, error) {
	var offer exchange.ShareOffer
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&offer.ID, &offer.GapResultID, &offer.AttemptID, &offer.Status,
		&offer.SuggestedContent, &offer.FinalSharedContent, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	offer.CreatedAt = core.NewTimestamp(createdAt)
	offer.UpdatedAt = core.NewTimestamp(updatedAt)
	return &offer, nil
}
