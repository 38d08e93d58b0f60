package services

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"marketplace-portal/internal/domain"
	"marketplace-portal/pkg/logger"
	"marketplace-portal/pkg/utils"
)

// ReviewService lets the two parties of a completed ad rate each other once.
type ReviewService struct {
	ads      domain.AdRepository
	bids     domain.BidRepository
	reviews  domain.ReviewRepository
	notifier *NotificationService
	now      func() time.Time
	log      logger.Logger
}

func NewReviewService(
	ads domain.AdRepository,
	bids domain.BidRepository,
	reviews domain.ReviewRepository,
	notifier *NotificationService,
	log logger.Logger,
) *ReviewService {
	return &ReviewService{
		ads:      ads,
		bids:     bids,
		reviews:  reviews,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

func (s *ReviewService) PostReview(ctx context.Context, authorID, adID string, in domain.NewReview) (*domain.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, domain.NewValidationError("invalid review", domain.FieldError{Field: "rating", Error: "must be between 1 and 5"})
	}

	ad, err := s.ads.GetAd(ctx, adID)
	if err != nil {
		return nil, err
	}
	if ad.Status != domain.AdCompleted || ad.SelectedBidID == nil {
		return nil, errors.Wrapf(domain.ErrConflict, "ad %s is %s", ad.ID, ad.Status)
	}
	winner, err := s.bids.GetBid(ctx, *ad.SelectedBidID)
	if err != nil {
		return nil, err
	}

	var target string
	switch authorID {
	case ad.OwnerID:
		target = winner.SupplierID
	case winner.SupplierID:
		target = ad.OwnerID
	default:
		return nil, errors.Wrap(domain.ErrForbidden, "only the parties of the deal can review it")
	}

	review := &domain.Review{
		ID:           utils.GenerateID("rev"),
		AdID:         ad.ID,
		AuthorID:     authorID,
		TargetUserID: target,
		Rating:       in.Rating,
		Comment:      in.Comment,
		CreatedAt:    s.now(),
	}
	if err := s.reviews.CreateReview(ctx, review); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, Alert{
		UserID:  target,
		Title:   "New review",
		Message: fmt.Sprintf("You received a %d star review for %q", review.Rating, ad.Title),
		Type:    domain.NotificationInfo,
		Event:   domain.EventNotification,
		Ad:      ad,
	})
	return review, nil
}

func (s *ReviewService) ListForUser(ctx context.Context, userID string) ([]*domain.Review, error) {
	return s.reviews.ListReviewsForUser(ctx, userID)
}
