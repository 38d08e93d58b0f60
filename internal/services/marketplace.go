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

// MarketplaceService runs the ad and bid lifecycle. Every transition is
// checked against the domain transition tables first and then applied with a
// conditional write, so a request that lost a race gets ErrConflict.
type MarketplaceService struct {
	ads        domain.AdRepository
	bids       domain.BidRepository
	notifier   *NotificationService
	dispatcher domain.Dispatcher
	now        func() time.Time
	log        logger.Logger
}

func NewMarketplaceService(
	ads domain.AdRepository,
	bids domain.BidRepository,
	notifier *NotificationService,
	dispatcher domain.Dispatcher,
	log logger.Logger,
) *MarketplaceService {
	return &MarketplaceService{
		ads:        ads,
		bids:       bids,
		notifier:   notifier,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

func (s *MarketplaceService) CreateAd(ctx context.Context, ownerID string, in domain.NewAd) (*domain.Ad, error) {
	if in.Budget.IsNegative() {
		return nil, domain.NewValidationError("invalid ad", domain.FieldError{Field: "budget", Error: "must not be negative"})
	}

	now := s.now()
	ad := &domain.Ad{
		ID:          utils.GenerateID("ad"),
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Budget:      in.Budget,
		Status:      domain.AdOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.ads.CreateAd(ctx, ad); err != nil {
		return nil, errors.Wrap(err, "create ad")
	}

	s.log.Info("Ad created", "ad_id", ad.ID, "owner_id", ownerID, "category", ad.Category)
	s.dispatcher.PublishTopic(ctx, domain.CategoryTopic(ad.Category), domain.EventNewOrder, EventPayload{Ad: ad})
	return ad, nil
}

func (s *MarketplaceService) GetAd(ctx context.Context, adID string) (*domain.Ad, error) {
	return s.ads.GetAd(ctx, adID)
}

func (s *MarketplaceService) ListBids(ctx context.Context, adID string) ([]*domain.Bid, error) {
	if _, err := s.ads.GetAd(ctx, adID); err != nil {
		return nil, err
	}
	return s.bids.ListBidsForAd(ctx, adID)
}

func (s *MarketplaceService) SubmitBid(ctx context.Context, supplierID, adID string, in domain.NewBid) (*domain.Bid, error) {
	if !in.Amount.IsPositive() {
		return nil, domain.NewValidationError("invalid bid", domain.FieldError{Field: "amount", Error: "must be greater than zero"})
	}

	ad, err := s.ads.GetAd(ctx, adID)
	if err != nil {
		return nil, err
	}
	if ad.OwnerID == supplierID {
		return nil, errors.Wrap(domain.ErrForbidden, "cannot bid on your own ad")
	}
	next, err := ad.Status.Next(domain.AdEventBidSubmitted)
	if err != nil {
		return nil, err
	}

	now := s.now()
	bid := &domain.Bid{
		ID:         utils.GenerateID("bid"),
		AdID:       ad.ID,
		SupplierID: supplierID,
		Amount:     in.Amount,
		Comment:    in.Comment,
		Status:     domain.BidPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.bids.PlaceBid(ctx, bid); err != nil {
		return nil, err
	}
	ad.Status = next
	ad.BidCount++

	s.log.Info("Bid submitted", "ad_id", ad.ID, "bid_id", bid.ID, "supplier_id", supplierID, "amount", bid.Amount)

	s.notifier.Notify(ctx, Alert{
		UserID:  ad.OwnerID,
		Title:   "New bid",
		Message: fmt.Sprintf("A supplier offered %s on %q", bid.Amount.StringFixed(2), ad.Title),
		Type:    domain.NotificationInfo,
		Event:   domain.EventNewBid,
		Ad:      ad,
		Bid:     bid,
	})
	return bid, nil
}

// AcceptBid selects the winning bid. All other pending bids on the ad are
// rejected in the same atomic write and their suppliers told so.
func (s *MarketplaceService) AcceptBid(ctx context.Context, ownerID, bidID string) (*domain.Bid, error) {
	bid, ad, err := s.ownedBid(ctx, ownerID, bidID)
	if err != nil {
		return nil, err
	}
	if _, err := bid.Status.Next(domain.BidEventAccept); err != nil {
		return nil, err
	}
	next, err := ad.Status.Next(domain.AdEventBidAccepted)
	if err != nil {
		return nil, err
	}

	outbid, err := s.bids.SelectBid(ctx, ad.ID, bid.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	bid.Status = domain.BidAccepted
	bid.IsSelected = true
	bid.UpdatedAt = now
	ad.Status = next
	ad.SelectedBidID = domain.StringPtr(bid.ID)
	ad.UpdatedAt = now

	s.log.Info("Bid accepted", "ad_id", ad.ID, "bid_id", bid.ID, "outbid", len(outbid))

	s.notifier.Notify(ctx, Alert{
		UserID:  bid.SupplierID,
		Title:   "Bid accepted",
		Message: fmt.Sprintf("Your bid on %q was accepted", ad.Title),
		Type:    domain.NotificationSuccess,
		Event:   domain.EventBidStatusChanged,
		Ad:      ad,
		Bid:     bid,
	})
	for _, other := range outbid {
		s.notifier.Notify(ctx, Alert{
			UserID:  other.SupplierID,
			Title:   "Bid not selected",
			Message: fmt.Sprintf("Another offer was selected for %q", ad.Title),
			Type:    domain.NotificationWarning,
			Event:   domain.EventBidStatusChanged,
			Ad:      ad,
			Bid:     other,
		})
	}
	s.dispatcher.PublishTopic(ctx, domain.AdTopic(ad.ID), domain.EventOrderStatusChanged, EventPayload{Ad: ad})
	return bid, nil
}

func (s *MarketplaceService) RejectBid(ctx context.Context, ownerID, bidID string) (*domain.Bid, error) {
	bid, ad, err := s.ownedBid(ctx, ownerID, bidID)
	if err != nil {
		return nil, err
	}
	next, err := bid.Status.Next(domain.BidEventReject)
	if err != nil {
		return nil, err
	}
	if err := s.bids.TransitionBid(ctx, bid.ID, bid.Status, next); err != nil {
		return nil, err
	}
	bid.Status = next
	bid.UpdatedAt = s.now()

	s.log.Info("Bid rejected", "ad_id", ad.ID, "bid_id", bid.ID)

	s.notifier.Notify(ctx, Alert{
		UserID:  bid.SupplierID,
		Title:   "Bid rejected",
		Message: fmt.Sprintf("Your bid on %q was rejected", ad.Title),
		Type:    domain.NotificationWarning,
		Event:   domain.EventBidStatusChanged,
		Ad:      ad,
		Bid:     bid,
	})
	return bid, nil
}

func (s *MarketplaceService) WithdrawBid(ctx context.Context, supplierID, bidID string) (*domain.Bid, error) {
	bid, err := s.bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.SupplierID != supplierID {
		return nil, errors.Wrap(domain.ErrForbidden, "only the supplier can withdraw a bid")
	}
	ad, err := s.ads.GetAd(ctx, bid.AdID)
	if err != nil {
		return nil, err
	}
	next, err := bid.Status.Next(domain.BidEventWithdraw)
	if err != nil {
		return nil, err
	}
	if err := s.bids.TransitionBid(ctx, bid.ID, bid.Status, next); err != nil {
		return nil, err
	}
	bid.Status = next
	bid.UpdatedAt = s.now()

	s.notifier.Notify(ctx, Alert{
		UserID:  ad.OwnerID,
		Title:   "Bid withdrawn",
		Message: fmt.Sprintf("A supplier withdrew their bid on %q", ad.Title),
		Type:    domain.NotificationInfo,
		Event:   domain.EventBidStatusChanged,
		Ad:      ad,
		Bid:     bid,
	})
	return bid, nil
}

// CloseAd ends the ad without a winner. Pending bids keep their status, their
// suppliers are notified.
func (s *MarketplaceService) CloseAd(ctx context.Context, ownerID, adID string) (*domain.Ad, error) {
	ad, err := s.ownedAd(ctx, ownerID, adID)
	if err != nil {
		return nil, err
	}
	next, err := ad.Status.Next(domain.AdEventClosed)
	if err != nil {
		return nil, err
	}
	if err := s.ads.TransitionAd(ctx, ad.ID, domain.AdStatusesAllowing(domain.AdEventClosed), next); err != nil {
		return nil, err
	}
	ad.Status = next
	ad.UpdatedAt = s.now()

	bids, err := s.bids.ListBidsForAd(ctx, ad.ID)
	if err != nil {
		// The ad is closed already, only the fan-out is lost.
		s.log.Error("Failed to list bids of closed ad", "ad_id", ad.ID, "error", err)
	}
	for _, bid := range bids {
		if bid.Status != domain.BidPending {
			continue
		}
		s.notifier.Notify(ctx, Alert{
			UserID:  bid.SupplierID,
			Title:   "Ad closed",
			Message: fmt.Sprintf("%q was closed without selecting an offer", ad.Title),
			Type:    domain.NotificationInfo,
			Event:   domain.EventOrderStatusChanged,
			Ad:      ad,
			Bid:     bid,
		})
	}

	s.log.Info("Ad closed", "ad_id", ad.ID)
	s.dispatcher.PublishTopic(ctx, domain.AdTopic(ad.ID), domain.EventOrderStatusChanged, EventPayload{Ad: ad})
	return ad, nil
}

// CancelAd withdraws an ad that never received a bid.
func (s *MarketplaceService) CancelAd(ctx context.Context, ownerID, adID string) (*domain.Ad, error) {
	ad, err := s.ownedAd(ctx, ownerID, adID)
	if err != nil {
		return nil, err
	}
	next, err := ad.Status.Next(domain.AdEventCancelled)
	if err != nil {
		return nil, err
	}
	if err := s.ads.TransitionAd(ctx, ad.ID, domain.AdStatusesAllowing(domain.AdEventCancelled), next); err != nil {
		return nil, err
	}
	ad.Status = next
	ad.UpdatedAt = s.now()

	s.log.Info("Ad cancelled", "ad_id", ad.ID)
	s.dispatcher.PublishTopic(ctx, domain.AdTopic(ad.ID), domain.EventOrderStatusChanged, EventPayload{Ad: ad})
	return ad, nil
}

func (s *MarketplaceService) ownedAd(ctx context.Context, ownerID, adID string) (*domain.Ad, error) {
	ad, err := s.ads.GetAd(ctx, adID)
	if err != nil {
		return nil, err
	}
	if ad.OwnerID != ownerID {
		return nil, errors.Wrapf(domain.ErrForbidden, "user %s does not own ad %s", ownerID, adID)
	}
	return ad, nil
}

func (s *MarketplaceService) ownedBid(ctx context.Context, ownerID, bidID string) (*domain.Bid, *domain.Ad, error) {
	bid, err := s.bids.GetBid(ctx, bidID)
	if err != nil {
		return nil, nil, err
	}
	ad, err := s.ownedAd(ctx, ownerID, bid.AdID)
	if err != nil {
		return nil, nil, err
	}
	return bid, ad, nil
}
