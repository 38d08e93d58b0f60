package realtime

import (
	"context"
	"time"

	"marketplace-portal/internal/domain"
	"marketplace-portal/pkg/logger"
)

// LocalDispatcher delivers events to the connections held by this process's registry.
type LocalDispatcher struct {
	registry *Registry
	now      func() time.Time
	log      logger.Logger
}

func NewLocalDispatcher(registry *Registry, log logger.Logger) *LocalDispatcher {
	return &LocalDispatcher{
		registry: registry,
		now:      time.Now,
		log:      log,
	}
}

func (d *LocalDispatcher) NotifyUser(ctx context.Context, userID string, eventType domain.EventType, data interface{}) {
	d.deliver(d.registry.userTargets(userID), EventFrame{Type: eventType, Data: data})
}

// PublishTopic delivers to every authenticated connection with the topic attached.
// There are no per-topic subscriptions, clients filter on the tag.
func (d *LocalDispatcher) PublishTopic(ctx context.Context, topic string, eventType domain.EventType, data interface{}) {
	d.deliver(d.registry.authenticatedTargets(""), EventFrame{Type: eventType, Topic: topic, Data: data})
}

func (d *LocalDispatcher) Broadcast(ctx context.Context, eventType domain.EventType, data interface{}, excludeUserID string) {
	d.deliver(d.registry.authenticatedTargets(excludeUserID), EventFrame{Type: eventType, Data: data})
}

// Deliver routes a frame built elsewhere (e.g. received from the fan-out channel).
func (d *LocalDispatcher) Deliver(ctx context.Context, env Envelope) {
	frame := EventFrame{Type: env.Type, Topic: env.Topic, Data: env.Data, Timestamp: env.Timestamp}
	switch env.Mode {
	case ModeUser:
		d.deliver(d.registry.userTargets(env.UserID), frame)
	case ModeTopic:
		d.deliver(d.registry.authenticatedTargets(""), frame)
	case ModeBroadcast:
		d.deliver(d.registry.authenticatedTargets(env.ExcludeUserID), frame)
	default:
		d.log.Warn("Dropping envelope with unknown mode", "mode", env.Mode, "type", env.Type)
	}
}

func (d *LocalDispatcher) deliver(targets []target, frame EventFrame) {
	if len(targets) == 0 {
		return
	}
	if frame.Timestamp.IsZero() {
		frame.Timestamp = d.now().UTC()
	}

	payload, err := encodeFrame(frame)
	if err != nil {
		d.log.Error("Failed to encode event frame", "type", frame.Type, "error", err)
		return
	}

	for _, t := range targets {
		if !t.transport.Writable() {
			// The liveness supervisor reclaims it.
			d.log.Debug("Skipping non-writable connection", "connection_id", t.id, "user_id", t.userID)
			continue
		}
		if err := t.transport.Send(payload); err != nil {
			d.log.Warn("Failed to push event", "connection_id", t.id, "user_id", t.userID,
				"type", frame.Type, "error", err)
		}
	}
}
