package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"marketplace-portal/internal/domain"
)

const bidColumns = `id, ad_id, supplier_id, amount, comment, status, is_selected, created_at, updated_at`

func (s *Store) PlaceBid(ctx context.Context, bid *domain.Bid) error {
	bump, bumpArgs, err := s.in(
		`UPDATE ads SET bid_count = bid_count + 1, status = ?, updated_at = ? WHERE id = ? AND status IN (?)`,
		domain.AdInProgress, s.now(), bid.AdID, domain.AdStatusesAllowing(domain.AdEventBidSubmitted),
	)
	if err != nil {
		return err
	}

	insert := `
        INSERT INTO bids (id, ad_id, supplier_id, amount, comment, status, is_selected, created_at, updated_at)
        VALUES (:id, :ad_id, :supplier_id, :amount, :comment, :status, :is_selected, :created_at, :updated_at)
    `

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, bump, bumpArgs...)
		if err != nil {
			return errors.Wrap(err, "bump bid count")
		}
		n, err := affected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return guardFailure(ctx, tx, bid.AdID)
		}

		if _, err := tx.NamedExecContext(ctx, insert, bid); err != nil {
			if isDuplicate(err) {
				return errors.Wrapf(domain.ErrConflict, "bid %s already exists", bid.ID)
			}
			return errors.Wrap(err, "insert bid")
		}
		return nil
	})
}

func (s *Store) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	var bid domain.Bid
	query := s.db.Rebind(`SELECT ` + bidColumns + ` FROM bids WHERE id = ?`)
	if err := s.db.GetContext(ctx, &bid, query, bidID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(domain.ErrNotFound, "bid %s", bidID)
		}
		return nil, errors.Wrap(err, "select bid")
	}
	return &bid, nil
}

func (s *Store) ListBidsForAd(ctx context.Context, adID string) ([]*domain.Bid, error) {
	bids := []*domain.Bid{}
	query := s.db.Rebind(`SELECT ` + bidColumns + ` FROM bids WHERE ad_id = ? ORDER BY created_at ASC`)
	if err := s.db.SelectContext(ctx, &bids, query, adID); err != nil {
		return nil, errors.Wrap(err, "select bids")
	}
	return bids, nil
}

func (s *Store) TransitionBid(ctx context.Context, bidID string, from, to domain.BidStatus) error {
	query := s.db.Rebind(`UPDATE bids SET status = ?, updated_at = ? WHERE id = ? AND status = ?`)
	res, err := s.db.ExecContext(ctx, query, to, s.now(), bidID, from)
	if err != nil {
		return errors.Wrap(err, "update bid status")
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		bid, err := s.GetBid(ctx, bidID)
		if err != nil {
			return err
		}
		return errors.Wrapf(domain.ErrConflict, "bid %s is %s", bidID, bid.Status)
	}
	return nil
}

// SelectBid completes the ad first: the conditional update on the ad row is
// the accept guard, so concurrent accepts on one ad serialize there.
func (s *Store) SelectBid(ctx context.Context, adID, bidID string) ([]*domain.Bid, error) {
	now := s.now()
	complete, completeArgs, err := s.in(
		`UPDATE ads SET status = ?, selected_bid_id = ?, updated_at = ? WHERE id = ? AND status IN (?) AND selected_bid_id IS NULL`,
		domain.AdCompleted, bidID, now, adID, domain.AdStatusesAllowing(domain.AdEventBidAccepted),
	)
	if err != nil {
		return nil, err
	}

	var rejected []*domain.Bid
	err = s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, complete, completeArgs...)
		if err != nil {
			return errors.Wrap(err, "complete ad")
		}
		n, err := affected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return guardFailure(ctx, tx, adID)
		}

		res, err = tx.ExecContext(ctx,
			tx.Rebind(`UPDATE bids SET status = ?, is_selected = ?, updated_at = ? WHERE id = ? AND ad_id = ? AND status = ?`),
			domain.BidAccepted, true, now, bidID, adID, domain.BidPending)
		if err != nil {
			return errors.Wrap(err, "accept bid")
		}
		if n, err = affected(res); err != nil {
			return err
		}
		if n == 0 {
			return errors.Wrapf(domain.ErrConflict, "bid %s is not pending on ad %s", bidID, adID)
		}

		// locking read, so the listed rows are the ones the update below rejects
		err = tx.SelectContext(ctx, &rejected,
			tx.Rebind(`SELECT `+bidColumns+` FROM bids WHERE ad_id = ? AND status = ? AND id <> ? FOR UPDATE`),
			adID, domain.BidPending, bidID)
		if err != nil {
			return errors.Wrap(err, "select outbid bids")
		}
		if len(rejected) == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			tx.Rebind(`UPDATE bids SET status = ?, updated_at = ? WHERE ad_id = ? AND status = ? AND id <> ?`),
			domain.BidRejected, now, adID, domain.BidPending, bidID)
		if err != nil {
			return errors.Wrap(err, "reject outbid bids")
		}
		for _, b := range rejected {
			b.Status = domain.BidRejected
			b.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected, nil
}
