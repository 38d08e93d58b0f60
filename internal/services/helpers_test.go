package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"marketplace-portal/internal/domain"
	"marketplace-portal/internal/infrastructure/memory"
	"marketplace-portal/pkg/logger"
)

type dispatched struct {
	Mode    string
	UserID  string
	Topic   string
	Exclude string
	Type    domain.EventType
	Data    interface{}
}

type recordingDispatcher struct {
	mu     sync.Mutex
	events []dispatched
}

func (r *recordingDispatcher) record(d dispatched) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, d)
}

func (r *recordingDispatcher) NotifyUser(ctx context.Context, userID string, eventType domain.EventType, data interface{}) {
	r.record(dispatched{Mode: "user", UserID: userID, Type: eventType, Data: data})
}

func (r *recordingDispatcher) PublishTopic(ctx context.Context, topic string, eventType domain.EventType, data interface{}) {
	r.record(dispatched{Mode: "topic", Topic: topic, Type: eventType, Data: data})
}

func (r *recordingDispatcher) Broadcast(ctx context.Context, eventType domain.EventType, data interface{}, excludeUserID string) {
	r.record(dispatched{Mode: "broadcast", Exclude: excludeUserID, Type: eventType, Data: data})
}

func (r *recordingDispatcher) forUser(userID string) []dispatched {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []dispatched
	for _, e := range r.events {
		if e.Mode == "user" && e.UserID == userID {
			out = append(out, e)
		}
	}
	return out
}

func (r *recordingDispatcher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fixture struct {
	store         *memory.Store
	dispatcher    *recordingDispatcher
	notifications *NotificationService
	marketplace   *MarketplaceService
	reviews       *ReviewService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	disp := &recordingDispatcher{}
	log := logger.NewNop()
	notifier := NewNotificationService(store, disp, log)
	return &fixture{
		store:         store,
		dispatcher:    disp,
		notifications: notifier,
		marketplace:   NewMarketplaceService(store, store, notifier, disp, log),
		reviews:       NewReviewService(store, store, store, notifier, log),
	}
}

func (f *fixture) unread(t *testing.T, userID string) []*domain.Notification {
	t.Helper()
	list, err := f.notifications.List(context.Background(), userID, true, 0)
	require.NoError(t, err)
	return list
}
