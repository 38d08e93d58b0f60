package realtime

import (
	"encoding/json"
	"time"

	"marketplace-portal/internal/domain"
)

type DeliveryMode string

const (
	ModeUser      DeliveryMode = "user"
	ModeTopic     DeliveryMode = "topic"
	ModeBroadcast DeliveryMode = "broadcast"
)

// Envelope is a dispatch request in transit between processes.
type Envelope struct {
	Mode          DeliveryMode     `json:"mode"`
	UserID        string           `json:"userId,omitempty"`
	Topic         string           `json:"topic,omitempty"`
	ExcludeUserID string           `json:"excludeUserId,omitempty"`
	Type          domain.EventType `json:"type"`
	Data          json.RawMessage  `json:"data"`
	Timestamp     time.Time        `json:"timestamp"`
	Origin        string           `json:"origin,omitempty"`
}
