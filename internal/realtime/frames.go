package realtime

import (
	"encoding/json"
	"strings"
	"time"

	"marketplace-portal/internal/domain"
)

// Client -> server frame types.
const (
	FrameAuth        = "auth"
	FramePing        = "ping"
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
)

// Server -> client system frame types.
const (
	FrameConnection  = "connection"
	FrameAuthSuccess = "auth_success"
	FrameAuthError   = "auth_error"
	FramePong        = "pong"
)

// ClientFrame keeps the identity claim raw so a claim of the wrong JSON type
// still reaches the auth handler instead of failing the whole decode.
type ClientFrame struct {
	Type    string          `json:"type"`
	UserID  json.RawMessage `json:"userId,omitempty"`
	Channel string          `json:"channel,omitempty"`
}

// Claim returns the userId as a trimmed string. Absent, null or non-string
// claims yield an error.
func (f ClientFrame) Claim() (string, error) {
	if len(f.UserID) == 0 || f.UserID[0] != '"' {
		return "", errMalformedClaim
	}
	var userID string
	if err := json.Unmarshal(f.UserID, &userID); err != nil {
		return "", errMalformedClaim
	}
	return strings.TrimSpace(userID), nil
}

type SystemFrame struct {
	Type         string    `json:"type"`
	Message      string    `json:"message,omitempty"`
	UserID       string    `json:"userId,omitempty"`
	ConnectionID string    `json:"connectionId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// EventFrame carries a dispatched event. Topic is set for topic-scoped delivery.
type EventFrame struct {
	Type      domain.EventType `json:"type"`
	Topic     string           `json:"topic,omitempty"`
	Data      interface{}      `json:"data"`
	Timestamp time.Time        `json:"timestamp"`
}

func encodeFrame(frame interface{}) ([]byte, error) {
	return json.Marshal(frame)
}
