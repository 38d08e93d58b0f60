package services

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace-portal/internal/domain"
)

func createAd(t *testing.T, f *fixture, owner string) *domain.Ad {
	t.Helper()
	ad, err := f.marketplace.CreateAd(context.Background(), owner, domain.NewAd{
		Title: "Kitchen renovation", Category: "renovation", Budget: decimal.NewFromInt(5000),
	})
	require.NoError(t, err)
	return ad
}

func submitBid(t *testing.T, f *fixture, supplier, adID string, amount int64) *domain.Bid {
	t.Helper()
	bid, err := f.marketplace.SubmitBid(context.Background(), supplier, adID, domain.NewBid{Amount: decimal.NewFromInt(amount)})
	require.NoError(t, err)
	return bid
}

func TestCreateAdPublishesOnCategoryTopic(t *testing.T) {
	f := newFixture(t)
	ad := createAd(t, f, "owner")

	assert.Equal(t, domain.AdOpen, ad.Status)
	require.Equal(t, 1, f.dispatcher.count())
	ev := f.dispatcher.events[0]
	assert.Equal(t, "topic", ev.Mode)
	assert.Equal(t, "category:renovation", ev.Topic)
	assert.Equal(t, domain.EventNewOrder, ev.Type)
}

func TestCreateAdRejectsNegativeBudget(t *testing.T) {
	f := newFixture(t)
	_, err := f.marketplace.CreateAd(context.Background(), "owner", domain.NewAd{
		Title: "x", Category: "y", Budget: decimal.NewFromInt(-1),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSubmitBidNotifiesOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ad := createAd(t, f, "owner")

	bid := submitBid(t, f, "s1", ad.ID, 1000)
	assert.Equal(t, domain.BidPending, bid.Status)

	stored, err := f.marketplace.GetAd(ctx, ad.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AdInProgress, stored.Status)
	assert.Equal(t, 1, stored.BidCount)

	pushes := f.dispatcher.forUser("owner")
	require.Len(t, pushes, 1)
	assert.Equal(t, domain.EventNewBid, pushes[0].Type)

	rows := f.unread(t, "owner")
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].BidID)
	assert.Equal(t, bid.ID, *rows[0].BidID)
}

func TestSubmitBidGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ad := createAd(t, f, "owner")

	_, err := f.marketplace.SubmitBid(ctx, "owner", ad.ID, domain.NewBid{Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.marketplace.SubmitBid(ctx, "s1", ad.ID, domain.NewBid{Amount: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.marketplace.SubmitBid(ctx, "s1", "ad_missing", domain.NewBid{Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.marketplace.CloseAd(ctx, "owner", ad.ID)
	require.NoError(t, err)
	_, err = f.marketplace.SubmitBid(ctx, "s1", ad.ID, domain.NewBid{Amount: decimal.NewFromInt(10)})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestAcceptBidScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ad := createAd(t, f, "owner")
	b1 := submitBid(t, f, "s1", ad.ID, 1000)
	b2 := submitBid(t, f, "s2", ad.ID, 900)

	accepted, err := f.marketplace.AcceptBid(ctx, "owner", b2.ID)
	require.NoError(t, err)
	assert.True(t, accepted.IsSelected)

	stored, _ := f.marketplace.GetAd(ctx, ad.ID)
	assert.Equal(t, domain.AdCompleted, stored.Status)
	require.NotNil(t, stored.SelectedBidID)
	assert.Equal(t, b2.ID, *stored.SelectedBidID)

	bids, err := f.marketplace.ListBids(ctx, ad.ID)
	require.NoError(t, err)
	statuses := map[string]domain.BidStatus{}
	for _, b := range bids {
		statuses[b.ID] = b.Status
	}
	assert.Equal(t, domain.BidAccepted, statuses[b2.ID])
	assert.Equal(t, domain.BidRejected, statuses[b1.ID])

	s2 := f.unread(t, "s2")
	require.Len(t, s2, 1)
	assert.Equal(t, "Bid accepted", s2[0].Title)
	s1 := f.unread(t, "s1")
	require.Len(t, s1, 1)
	assert.Equal(t, "Bid not selected", s1[0].Title)

	assert.Len(t, f.dispatcher.forUser("s1"), 1)
	assert.Len(t, f.dispatcher.forUser("s2"), 1)
}

func TestAcceptBidNotifiesEveryParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ad := createAd(t, f, "owner")

	suppliers := []string{"s1", "s2", "s3", "s4", "s5"}
	var winner *domain.Bid
	for i, s := range suppliers {
		b := submitBid(t, f, s, ad.ID, int64(100+i))
		if i == 2 {
			winner = b
		}
	}

	_, err := f.marketplace.AcceptBid(ctx, "owner", winner.ID)
	require.NoError(t, err)

	total := 0
	for _, s := range suppliers {
		rows := f.unread(t, s)
		assert.Len(t, rows, 1, s)
		total += len(rows)
	}
	assert.Equal(t, len(suppliers), total)
}

func TestConcurrentAcceptExactlyOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ad := createAd(t, f, "owner")
	b1 := submitBid(t, f, "s1", ad.ID, 1000)
	b2 := submitBid(t, f, "s2", ad.ID, 900)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []string{b1.ID, b2.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.marketplace.AcceptBid(ctx, "owner", id)
		}(i, id)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)

	stored, _ := f.marketplace.GetAd(ctx, ad.ID)
	assert.Equal(t, domain.AdCompleted, stored.Status)
	bids, _ := f.marketplace.ListBids(ctx, ad.ID)
	selected := 0
	for _, b := range bids {
		if b.IsSelected {
			selected++
			assert.Equal(t, *stored.SelectedBidID, b.ID)
		}
	}
	assert.Equal(t, 1, selected)
}

func TestTransitionsOnSettledBidConflictWithoutNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ad := createAd(t, f, "owner")
	b1 := submitBid(t, f, "s1", ad.ID, 1000)
	b2 := submitBid(t, f, "s2", ad.ID, 900)

	_, err := f.marketplace.RejectBid(ctx, "owner", b1.ID)
	require.NoError(t, err)
	before := f.dispatcher.count()
	unreadBefore := len(f.unread(t, "s1"))

	_, err = f.marketplace.RejectBid(ctx, "owner", b1.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
	_, err = f.marketplace.AcceptBid(ctx, "owner", b1.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.marketplace.AcceptBid(ctx, "owner", b2.ID)
	require.NoError(t, err)
	afterAccept := f.dispatcher.count()
	_, err = f.marketplace.AcceptBid(ctx, "owner", b2.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)

	assert.Equal(t, afterAccept, f.dispatcher.count())
	assert.Greater(t, afterAccept, before)
	assert.Len(t, f.unread(t, "s1"), unreadBefore)
}

func TestOnlyOwnerMayDecide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ad := createAd(t, f, "owner")
	bid := submitBid(t, f, "s1", ad.ID, 1000)
	before := f.dispatcher.count()

	_, err := f.marketplace.AcceptBid(ctx, "intruder", bid.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.marketplace.RejectBid(ctx, "intruder", bid.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.marketplace.CloseAd(ctx, "intruder", ad.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	assert.Equal(t, before, f.dispatcher.count())
	stored, _ := f.marketplace.GetAd(ctx, ad.ID)
	assert.Equal(t, domain.AdInProgress, stored.Status)
}

func TestCloseAdNotifiesPendingBidders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ad := createAd(t, f, "owner")
	b1 := submitBid(t, f, "s1", ad.ID, 1000)
	b2 := submitBid(t, f, "s2", ad.ID, 900)
	b3 := submitBid(t, f, "s3", ad.ID, 800)
	_, err := f.marketplace.WithdrawBid(ctx, "s3", b3.ID)
	require.NoError(t, err)

	closed, err := f.marketplace.CloseAd(ctx, "owner", ad.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AdClosed, closed.Status)

	for _, id := range []string{b1.ID, b2.ID} {
		b, err := f.store.GetBid(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.BidPending, b.Status)
	}
	for _, s := range []string{"s1", "s2"} {
		rows := f.unread(t, s)
		require.Len(t, rows, 1)
		assert.Equal(t, "Ad closed", rows[0].Title)
	}
	assert.Empty(t, f.unread(t, "s3"))

	_, err = f.marketplace.AcceptBid(ctx, "owner", b1.ID)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCancelAdOnlyWithoutBids(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fresh := createAd(t, f, "owner")
	cancelled, err := f.marketplace.CancelAd(ctx, "owner", fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AdCancelled, cancelled.Status)

	busy := createAd(t, f, "owner")
	submitBid(t, f, "s1", busy.ID, 100)
	_, err = f.marketplace.CancelAd(ctx, "owner", busy.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestWithdrawBid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ad := createAd(t, f, "owner")
	bid := submitBid(t, f, "s1", ad.ID, 100)

	_, err := f.marketplace.WithdrawBid(ctx, "s2", bid.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	withdrawn, err := f.marketplace.WithdrawBid(ctx, "s1", bid.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BidWithdrawn, withdrawn.Status)

	var titles []string
	for _, n := range f.unread(t, "owner") {
		titles = append(titles, n.Title)
	}
	assert.ElementsMatch(t, []string{"New bid", "Bid withdrawn"}, titles)
}
