package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"marketplace-portal/internal/realtime"
	"marketplace-portal/pkg/logger"
)

type EnvelopeHandler func(ctx context.Context, env realtime.Envelope)

type EventSubscriber struct {
	client  *redis.Client
	channel string
	log     logger.Logger
}

func NewEventSubscriber(client *redis.Client, channel string, log logger.Logger) *EventSubscriber {
	return &EventSubscriber{
		client:  client,
		channel: channel,
		log:     log,
	}
}

// Run consumes the fan-out channel until ctx is cancelled.
func (r *EventSubscriber) Run(ctx context.Context, handler EnvelopeHandler) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := pubsub.Receive(ctx); err != nil {
		return errors.Wrapf(err, "subscribe %s", r.channel)
	}

	ch := pubsub.Channel()

	r.log.Info("Subscribed to realtime events", "channel", r.channel)

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription channel closed")
			}
			env, err := r.parseEnvelope(msg.Payload)
			if err != nil {
				r.log.Error("Failed to parse envelope", "payload", msg.Payload, "error", err)
				continue
			}
			handler(ctx, env)

		case <-ctx.Done():
			r.log.Info("Event subscriber stopped")
			return ctx.Err()
		}
	}
}

func (r *EventSubscriber) parseEnvelope(payload string) (realtime.Envelope, error) {
	var env realtime.Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return env, errors.Wrap(err, "decode envelope")
	}
	if !env.Type.Valid() {
		return env, errors.Errorf("unknown event type %q", env.Type)
	}
	return env, nil
}
