package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-portal/internal/domain"
)

func seedAd(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.CreateAd(context.Background(), &domain.Ad{
		ID: id, OwnerID: "owner", Title: "Fix roof", Category: "roofing", Status: domain.AdOpen,
	}))
}

func seedBid(t *testing.T, s *Store, adID, bidID, supplier string, amount int64) {
	t.Helper()
	require.NoError(t, s.PlaceBid(context.Background(), &domain.Bid{
		ID: bidID, AdID: adID, SupplierID: supplier, Amount: decimal.NewFromInt(amount), Status: domain.BidPending,
	}))
}

func TestPlaceBidCountsAndGuards(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedAd(t, s, "a1")

	seedBid(t, s, "a1", "b1", "s1", 1000)
	seedBid(t, s, "a1", "b2", "s2", 900)

	ad, err := s.GetAd(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 2, ad.BidCount)
	assert.Equal(t, domain.AdInProgress, ad.Status)

	require.NoError(t, s.TransitionAd(ctx, "a1", []domain.AdStatus{domain.AdOpen, domain.AdInProgress}, domain.AdClosed))
	err = s.PlaceBid(ctx, &domain.Bid{ID: "b3", AdID: "a1", SupplierID: "s3", Status: domain.BidPending})
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = s.PlaceBid(ctx, &domain.Bid{ID: "b4", AdID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSelectBidRejectsOthers(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedAd(t, s, "a1")
	seedBid(t, s, "a1", "b1", "s1", 1000)
	seedBid(t, s, "a1", "b2", "s2", 900)
	seedBid(t, s, "a1", "b3", "s3", 950)
	require.NoError(t, s.TransitionBid(ctx, "b3", domain.BidPending, domain.BidWithdrawn))

	rejected, err := s.SelectBid(ctx, "a1", "b2")
	require.NoError(t, err)
	require.Len(t, rejected, 1)
	assert.Equal(t, "b1", rejected[0].ID)

	ad, _ := s.GetAd(ctx, "a1")
	assert.Equal(t, domain.AdCompleted, ad.Status)
	require.NotNil(t, ad.SelectedBidID)
	assert.Equal(t, "b2", *ad.SelectedBidID)

	b3, _ := s.GetBid(ctx, "b3")
	assert.Equal(t, domain.BidWithdrawn, b3.Status)

	_, err = s.SelectBid(ctx, "a1", "b1")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSelectBidRace(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	seedAd(t, s, "a1")
	seedBid(t, s, "a1", "b1", "s1", 1000)
	seedBid(t, s, "a1", "b2", "s2", 900)

	var wins int32
	var wg sync.WaitGroup
	for _, id := range []string{"b1", "b2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := s.SelectBid(ctx, "a1", id); err == nil {
				atomic.AddInt32(&wins, 1)
			} else {
				assert.ErrorIs(t, err, domain.ErrConflict)
			}
		}(id)
	}
	wg.Wait()

	assert.EqualValues(t, 1, wins)
	bids, _ := s.ListBidsForAd(ctx, "a1")
	selected := 0
	for _, b := range bids {
		if b.IsSelected {
			selected++
		}
	}
	assert.Equal(t, 1, selected)
}

func TestNotificationsReadState(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, s.CreateNotification(ctx, &domain.Notification{
			ID: id, UserID: "u1", Title: id, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, s.CreateNotification(ctx, &domain.Notification{ID: "other", UserID: "u2"}))

	list, err := s.ListNotifications(ctx, "u1", false, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n3", list[0].ID)

	assert.ErrorIs(t, s.MarkRead(ctx, "u1", "other"), domain.ErrNotFound)
	require.NoError(t, s.MarkRead(ctx, "u1", "n1"))

	unread, _ := s.CountUnread(ctx, "u1")
	assert.Equal(t, 2, unread)

	n, err := s.MarkAllRead(ctx, "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	list, _ = s.ListNotifications(ctx, "u1", true, 0)
	assert.Empty(t, list)
}

func TestCreateReviewIsUniquePerAuthorAndAd(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	review := &domain.Review{ID: "r1", AdID: "a1", AuthorID: "owner", TargetUserID: "s1", Rating: 5}
	require.NoError(t, s.CreateReview(ctx, review))

	dup := *review
	dup.ID = "r2"
	assert.ErrorIs(t, s.CreateReview(ctx, &dup), domain.ErrConflict)

	reviews, _ := s.ListReviewsForUser(ctx, "s1")
	assert.Len(t, reviews, 1)
}
