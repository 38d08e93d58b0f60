package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"marketplace-portal/internal/domain"
)

const adColumns = `id, owner_id, title, description, category, budget, status, selected_bid_id, bid_count, created_at, updated_at`

func (s *Store) CreateAd(ctx context.Context, ad *domain.Ad) error {
	query := `
        INSERT INTO ads (id, owner_id, title, description, category, budget, status, selected_bid_id, bid_count, created_at, updated_at)
        VALUES (:id, :owner_id, :title, :description, :category, :budget, :status, :selected_bid_id, :bid_count, :created_at, :updated_at)
    `
	if _, err := s.db.NamedExecContext(ctx, query, ad); err != nil {
		if isDuplicate(err) {
			return errors.Wrapf(domain.ErrConflict, "ad %s already exists", ad.ID)
		}
		return errors.Wrap(err, "insert ad")
	}
	return nil
}

func (s *Store) GetAd(ctx context.Context, adID string) (*domain.Ad, error) {
	return getAd(ctx, s.db, adID)
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	sqlx.QueryerContext
	Rebind(query string) string
}

func getAd(ctx context.Context, q queryer, adID string) (*domain.Ad, error) {
	var ad domain.Ad
	query := q.Rebind(`SELECT ` + adColumns + ` FROM ads WHERE id = ?`)
	if err := sqlx.GetContext(ctx, q, &ad, query, adID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(domain.ErrNotFound, "ad %s", adID)
		}
		return nil, errors.Wrap(err, "select ad")
	}
	return &ad, nil
}

func (s *Store) TransitionAd(ctx context.Context, adID string, from []domain.AdStatus, to domain.AdStatus) error {
	query, args, err := s.in(
		`UPDATE ads SET status = ?, updated_at = ? WHERE id = ? AND status IN (?)`,
		to, s.now(), adID, from,
	)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return errors.Wrap(err, "update ad status")
		}
		n, err := affected(res)
		if err != nil {
			return err
		}
		if n == 0 {
			return guardFailure(ctx, tx, adID)
		}
		return nil
	})
}

// guardFailure tells a missing ad apart from one whose state moved on.
func guardFailure(ctx context.Context, tx *sqlx.Tx, adID string) error {
	ad, err := getAd(ctx, tx, adID)
	if err != nil {
		return err
	}
	return errors.Wrapf(domain.ErrConflict, "ad %s is %s", adID, ad.Status)
}
