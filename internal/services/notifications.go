package services

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"marketplace-portal/internal/domain"
	"marketplace-portal/pkg/logger"
	"marketplace-portal/pkg/utils"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// EventPayload is the data part of every pushed lifecycle event. The
// notification is the durable row the client can fetch again later.
type EventPayload struct {
	Notification *domain.Notification `json:"notification,omitempty"`
	Ad           *domain.Ad           `json:"ad,omitempty"`
	Bid          *domain.Bid          `json:"bid,omitempty"`
}

// Alert describes a notification to persist and push to one user.
type Alert struct {
	UserID  string
	Title   string
	Message string
	Type    domain.NotificationType
	Event   domain.EventType
	Ad      *domain.Ad
	Bid     *domain.Bid
}

type NotificationService struct {
	repo       domain.NotificationRepository
	dispatcher domain.Dispatcher
	now        func() time.Time
	log        logger.Logger
}

func NewNotificationService(repo domain.NotificationRepository, dispatcher domain.Dispatcher, log logger.Logger) *NotificationService {
	return &NotificationService{
		repo:       repo,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// Notify writes the notification row and then pushes it. The business
// operation that triggered it has already committed, so failures here are
// logged and never returned.
func (s *NotificationService) Notify(ctx context.Context, a Alert) *domain.Notification {
	n := &domain.Notification{
		ID:        utils.GenerateID("ntf"),
		UserID:    a.UserID,
		Title:     a.Title,
		Message:   a.Message,
		Type:      a.Type,
		CreatedAt: s.now(),
	}
	if a.Ad != nil {
		n.AdID = domain.StringPtr(a.Ad.ID)
	}
	if a.Bid != nil {
		n.BidID = domain.StringPtr(a.Bid.ID)
	}

	if err := s.repo.CreateNotification(ctx, n); err != nil {
		s.log.Error("Failed to persist notification", "user_id", a.UserID, "event", a.Event, "error", err)
	}

	s.dispatcher.NotifyUser(ctx, a.UserID, a.Event, EventPayload{Notification: n, Ad: a.Ad, Bid: a.Bid})
	return n
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	switch {
	case limit <= 0:
		limit = defaultNotificationLimit
	case limit > maxNotificationLimit:
		limit = maxNotificationLimit
	}
	list, err := s.repo.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	return list, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.repo.MarkRead(ctx, userID, notificationID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}
