package sqlstore

import (
	"context"

	"github.com/pkg/errors"

	"marketplace-portal/internal/domain"
)

func (s *Store) CreateReview(ctx context.Context, review *domain.Review) error {
	query := `
        INSERT INTO reviews (id, ad_id, author_id, target_user_id, rating, comment, created_at)
        VALUES (:id, :ad_id, :author_id, :target_user_id, :rating, :comment, :created_at)
    `
	if _, err := s.db.NamedExecContext(ctx, query, review); err != nil {
		if isDuplicate(err) {
			return errors.Wrapf(domain.ErrConflict, "ad %s already reviewed by %s", review.AdID, review.AuthorID)
		}
		return errors.Wrap(err, "insert review")
	}
	return nil
}

func (s *Store) ListReviewsForUser(ctx context.Context, userID string) ([]*domain.Review, error) {
	out := []*domain.Review{}
	query := s.db.Rebind(`
        SELECT id, ad_id, author_id, target_user_id, rating, comment, created_at
        FROM reviews WHERE target_user_id = ?
        ORDER BY created_at DESC
    `)
	if err := s.db.SelectContext(ctx, &out, query, userID); err != nil {
		return nil, errors.Wrap(err, "select reviews")
	}
	return out, nil
}
