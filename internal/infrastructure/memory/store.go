package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"marketplace-portal/internal/domain"
)

// Store keeps ads, bids, notifications and reviews in process memory. A single
// lock makes every multi-row transition atomic, mirroring a database transaction.
type Store struct {
	mu            sync.RWMutex
	ads           map[string]*domain.Ad
	bids          map[string]*domain.Bid
	bidsByAd      map[string][]string
	notifications map[string]*domain.Notification
	reviews       map[string]*domain.Review
	users         map[string]struct{}
	now           func() time.Time
}

func NewStore() *Store {
	return &Store{
		ads:           make(map[string]*domain.Ad),
		bids:          make(map[string]*domain.Bid),
		bidsByAd:      make(map[string][]string),
		notifications: make(map[string]*domain.Notification),
		reviews:       make(map[string]*domain.Review),
		users:         make(map[string]struct{}),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func copyAd(ad *domain.Ad) *domain.Ad {
	out := *ad
	if ad.SelectedBidID != nil {
		out.SelectedBidID = domain.StringPtr(*ad.SelectedBidID)
	}
	return &out
}

func copyBid(bid *domain.Bid) *domain.Bid {
	out := *bid
	return &out
}

func statusIn(s domain.AdStatus, set []domain.AdStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}

// Users

func (s *Store) AddUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = struct{}{}
}

func (s *Store) UserExists(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok, nil
}

// Ads

func (s *Store) CreateAd(ctx context.Context, ad *domain.Ad) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.ads[ad.ID]; exists {
		return errors.Wrapf(domain.ErrConflict, "ad %s already exists", ad.ID)
	}
	s.ads[ad.ID] = copyAd(ad)
	return nil
}

func (s *Store) GetAd(ctx context.Context, adID string) (*domain.Ad, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ad, ok := s.ads[adID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "ad %s", adID)
	}
	return copyAd(ad), nil
}

func (s *Store) TransitionAd(ctx context.Context, adID string, from []domain.AdStatus, to domain.AdStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad, ok := s.ads[adID]
	if !ok {
		return errors.Wrapf(domain.ErrNotFound, "ad %s", adID)
	}
	if !statusIn(ad.Status, from) {
		return errors.Wrapf(domain.ErrConflict, "ad %s is %s", adID, ad.Status)
	}
	ad.Status = to
	ad.UpdatedAt = s.now()
	return nil
}

// Bids

func (s *Store) PlaceBid(ctx context.Context, bid *domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad, ok := s.ads[bid.AdID]
	if !ok {
		return errors.Wrapf(domain.ErrNotFound, "ad %s", bid.AdID)
	}
	if !ad.Status.AcceptsBids() {
		return errors.Wrapf(domain.ErrConflict, "ad %s is %s", ad.ID, ad.Status)
	}
	if _, exists := s.bids[bid.ID]; exists {
		return errors.Wrapf(domain.ErrConflict, "bid %s already exists", bid.ID)
	}

	s.bids[bid.ID] = copyBid(bid)
	s.bidsByAd[bid.AdID] = append(s.bidsByAd[bid.AdID], bid.ID)
	ad.BidCount++
	ad.Status = domain.AdInProgress
	ad.UpdatedAt = s.now()
	return nil
}

func (s *Store) GetBid(ctx context.Context, bidID string) (*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bid, ok := s.bids[bidID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "bid %s", bidID)
	}
	return copyBid(bid), nil
}

func (s *Store) ListBidsForAd(ctx context.Context, adID string) ([]*domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.bidsByAd[adID]
	out := make([]*domain.Bid, 0, len(ids))
	for _, id := range ids {
		out = append(out, copyBid(s.bids[id]))
	}
	return out, nil
}

func (s *Store) TransitionBid(ctx context.Context, bidID string, from, to domain.BidStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bid, ok := s.bids[bidID]
	if !ok {
		return errors.Wrapf(domain.ErrNotFound, "bid %s", bidID)
	}
	if bid.Status != from {
		return errors.Wrapf(domain.ErrConflict, "bid %s is %s", bidID, bid.Status)
	}
	bid.Status = to
	bid.UpdatedAt = s.now()
	return nil
}

func (s *Store) SelectBid(ctx context.Context, adID, bidID string) ([]*domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ad, ok := s.ads[adID]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "ad %s", adID)
	}
	winner, ok := s.bids[bidID]
	if !ok || winner.AdID != adID {
		return nil, errors.Wrapf(domain.ErrNotFound, "bid %s", bidID)
	}
	if !statusIn(ad.Status, domain.AdStatusesAllowing(domain.AdEventBidAccepted)) || ad.SelectedBidID != nil {
		return nil, errors.Wrapf(domain.ErrConflict, "ad %s is %s", adID, ad.Status)
	}
	if winner.Status != domain.BidPending {
		return nil, errors.Wrapf(domain.ErrConflict, "bid %s is %s", bidID, winner.Status)
	}

	now := s.now()
	winner.Status = domain.BidAccepted
	winner.IsSelected = true
	winner.UpdatedAt = now

	var rejected []*domain.Bid
	for _, id := range s.bidsByAd[adID] {
		other := s.bids[id]
		if id == bidID || other.Status != domain.BidPending {
			continue
		}
		other.Status = domain.BidRejected
		other.UpdatedAt = now
		rejected = append(rejected, copyBid(other))
	}

	ad.Status = domain.AdCompleted
	ad.SelectedBidID = domain.StringPtr(bidID)
	ad.UpdatedAt = now
	return rejected, nil
}

// Notifications

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *n
	s.notifications[n.ID] = &stored
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Notification
	for _, n := range s.notifications {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		c := *n
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, userID, notificationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[notificationID]
	if !ok || n.UserID != userID {
		return errors.Wrapf(domain.ErrNotFound, "notification %s", notificationID)
	}
	if !n.IsRead {
		now := s.now()
		n.IsRead = true
		n.ReadAt = &now
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	now := s.now()
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &now
			count++
		}
	}
	return count, nil
}

func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// Reviews

func (s *Store) CreateReview(ctx context.Context, review *domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.reviews {
		if existing.AdID == review.AdID && existing.AuthorID == review.AuthorID {
			return errors.Wrapf(domain.ErrConflict, "ad %s already reviewed by %s", review.AdID, review.AuthorID)
		}
	}
	stored := *review
	s.reviews[review.ID] = &stored
	return nil
}

func (s *Store) ListReviewsForUser(ctx context.Context, userID string) ([]*domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Review
	for _, r := range s.reviews {
		if r.TargetUserID == userID {
			c := *r
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
