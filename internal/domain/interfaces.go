package domain

import (
	"context"
)

// Repository interfaces
type AdRepository interface {
	CreateAd(ctx context.Context, ad *Ad) error
	GetAd(ctx context.Context, adID string) (*Ad, error)
	// TransitionAd sets the status to `to` only while the current status is one
	// of `from`. ErrConflict when the guard does not hold.
	TransitionAd(ctx context.Context, adID string, from []AdStatus, to AdStatus) error
}

type BidRepository interface {
	// PlaceBid inserts a pending bid and bumps the ad's bid counter in one
	// atomic unit, gated on the ad still accepting bids. The ad moves to
	// in_progress.
	PlaceBid(ctx context.Context, bid *Bid) error
	GetBid(ctx context.Context, bidID string) (*Bid, error)
	ListBidsForAd(ctx context.Context, adID string) ([]*Bid, error)
	// TransitionBid is a conditional single-bid update (from -> to).
	TransitionBid(ctx context.Context, bidID string, from, to BidStatus) error
	// SelectBid accepts bidID, forces every other pending bid on the ad to
	// rejected and completes the ad, atomically. The guard is: ad open or
	// in_progress with no selected bid, and the bid pending. Returns the bids
	// that were forced to rejected.
	SelectBid(ctx context.Context, adID, bidID string) ([]*Bid, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *Notification) error
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*Notification, error)
	// MarkRead returns ErrNotFound when the notification does not belong to userID.
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int, error)
}

type ReviewRepository interface {
	// CreateReview returns ErrConflict when the author already reviewed the ad.
	CreateReview(ctx context.Context, review *Review) error
	ListReviewsForUser(ctx context.Context, userID string) ([]*Review, error)
}

type UserDirectory interface {
	UserExists(ctx context.Context, userID string) (bool, error)
}

// Notification interfaces

// Dispatcher pushes server-originated events to live connections. All modes
// are fire-and-forget, failures are logged by the implementation.
type Dispatcher interface {
	NotifyUser(ctx context.Context, userID string, eventType EventType, data interface{})
	PublishTopic(ctx context.Context, topic string, eventType EventType, data interface{})
	Broadcast(ctx context.Context, eventType EventType, data interface{}, excludeUserID string)
}
