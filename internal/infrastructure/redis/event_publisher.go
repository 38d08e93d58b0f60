package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"marketplace-portal/internal/domain"
	"marketplace-portal/internal/realtime"
	"marketplace-portal/pkg/logger"
)

// FanoutDispatcher publishes dispatch requests to a redis channel so that
// every gateway process can deliver them to its own connections.
type FanoutDispatcher struct {
	client  *redis.Client
	channel string
	origin  string
	now     func() time.Time
	log     logger.Logger
}

func NewFanoutDispatcher(client *redis.Client, channel, origin string, log logger.Logger) *FanoutDispatcher {
	return &FanoutDispatcher{
		client:  client,
		channel: channel,
		origin:  origin,
		now:     time.Now,
		log:     log,
	}
}

func (f *FanoutDispatcher) NotifyUser(ctx context.Context, userID string, eventType domain.EventType, data interface{}) {
	f.publish(ctx, realtime.Envelope{Mode: realtime.ModeUser, UserID: userID, Type: eventType}, data)
}

func (f *FanoutDispatcher) PublishTopic(ctx context.Context, topic string, eventType domain.EventType, data interface{}) {
	f.publish(ctx, realtime.Envelope{Mode: realtime.ModeTopic, Topic: topic, Type: eventType}, data)
}

func (f *FanoutDispatcher) Broadcast(ctx context.Context, eventType domain.EventType, data interface{}, excludeUserID string) {
	f.publish(ctx, realtime.Envelope{Mode: realtime.ModeBroadcast, ExcludeUserID: excludeUserID, Type: eventType}, data)
}

func (f *FanoutDispatcher) publish(ctx context.Context, env realtime.Envelope, data interface{}) {
	if err := f.Publish(ctx, env, data); err != nil {
		f.log.Error("Failed to publish event", "channel", f.channel, "mode", env.Mode, "type", env.Type, "error", err)
	}
}

// Publish stamps and sends a single envelope. Dispatcher methods swallow the
// error, callers that need it use Publish directly.
func (f *FanoutDispatcher) Publish(ctx context.Context, env realtime.Envelope, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "marshal event data")
	}
	env.Data = raw
	env.Origin = f.origin
	if env.Timestamp.IsZero() {
		env.Timestamp = f.now().UTC()
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal envelope")
	}
	return errors.Wrap(f.client.Publish(ctx, f.channel, payload).Err(), "publish envelope")
}
