package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"

	"marketplace-portal/internal/domain"
	"marketplace-portal/pkg/logger"
)

const maxUserIDLength = 128

// IdentityVerifier checks the identity claim carried by an auth frame.
type IdentityVerifier interface {
	Verify(ctx context.Context, userID string) error
}

type IdentityVerifierFunc func(ctx context.Context, userID string) error

func (f IdentityVerifierFunc) Verify(ctx context.Context, userID string) error {
	return f(ctx, userID)
}

var errMalformedClaim = errors.New("malformed identity claim")

// ClaimFormatVerifier accepts any well-formed user id.
func ClaimFormatVerifier() IdentityVerifier {
	return IdentityVerifierFunc(func(_ context.Context, userID string) error {
		return checkClaimFormat(userID)
	})
}

// DirectoryVerifier additionally requires the user to exist in dir.
func DirectoryVerifier(dir domain.UserDirectory) IdentityVerifier {
	return IdentityVerifierFunc(func(ctx context.Context, userID string) error {
		if err := checkClaimFormat(userID); err != nil {
			return err
		}
		exists, err := dir.UserExists(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "lookup user")
		}
		if !exists {
			return errors.New("unknown user")
		}
		return nil
	})
}

func checkClaimFormat(userID string) error {
	if userID == "" || len(userID) > maxUserIDLength {
		return errMalformedClaim
	}
	if strings.IndexFunc(userID, unicode.IsSpace) >= 0 {
		return errMalformedClaim
	}
	return nil
}

// Handshake accepts transports into the registry and creates their sessions.
type Handshake struct {
	registry *Registry
	verifier IdentityVerifier
	now      func() time.Time
	log      logger.Logger
}

func NewHandshake(registry *Registry, verifier IdentityVerifier, log logger.Logger) *Handshake {
	if verifier == nil {
		verifier = ClaimFormatVerifier()
	}
	return &Handshake{
		registry: registry,
		verifier: verifier,
		now:      time.Now,
		log:      log,
	}
}

// Accept registers t and greets it with a connection frame.
func (h *Handshake) Accept(t Transport) (*Session, error) {
	connID, err := h.registry.Register(t)
	if err != nil {
		return nil, err
	}

	s := &Session{
		connID:   connID,
		registry: h.registry,
		verifier: h.verifier,
		now:      h.now,
		log:      h.log,
	}
	s.sendSystem(SystemFrame{
		Type:         FrameConnection,
		Message:      "connected",
		ConnectionID: connID,
	})
	return s, nil
}

// Session is the per-connection protocol state machine. Only the connection's
// read loop drives it, so it holds no lock.
type Session struct {
	connID        string
	userID        string
	authenticated bool
	registry      *Registry
	verifier      IdentityVerifier
	now           func() time.Time
	log           logger.Logger
}

func (s *Session) ConnectionID() string { return s.connID }

func (s *Session) UserID() string { return s.userID }

func (s *Session) Authenticated() bool { return s.authenticated }

// HandleMessage processes one client frame. Protocol errors never close the connection.
func (s *Session) HandleMessage(ctx context.Context, raw []byte) {
	s.registry.Touch(s.connID)

	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		var head struct {
			Type string `json:"type"`
		}
		if json.Unmarshal(raw, &head) == nil && head.Type == FrameAuth {
			s.rejectAuth("invalid identity claim", err)
			return
		}
		if s.authenticated {
			s.log.Warn("Malformed frame", "connection_id", s.connID, "user_id", s.userID, "error", err)
		}
		return
	}

	switch frame.Type {
	case FrameAuth:
		userID, err := frame.Claim()
		if err != nil {
			s.rejectAuth("invalid identity claim", err)
			return
		}
		s.handleAuth(ctx, userID)
	case FramePing:
		s.sendSystem(SystemFrame{Type: FramePong})
	case FrameSubscribe, FrameUnsubscribe:
		if !s.authenticated {
			return
		}
		// Topic events are delivered to every authenticated connection; the
		// channel is only recorded for diagnostics.
		s.log.Info("Channel request", "type", frame.Type, "channel", frame.Channel,
			"connection_id", s.connID, "user_id", s.userID)
	default:
		if s.authenticated {
			s.log.Debug("Ignoring unknown frame", "type", frame.Type, "connection_id", s.connID)
		}
	}
}

func (s *Session) handleAuth(ctx context.Context, userID string) {
	if s.authenticated && userID != s.userID {
		s.rejectAuth("connection already authenticated", domain.ErrAlreadyBound)
		return
	}

	if err := s.verifier.Verify(ctx, userID); err != nil {
		s.rejectAuth("invalid identity claim", err)
		return
	}

	if err := s.registry.Bind(s.connID, userID); err != nil {
		s.rejectAuth("authentication failed", err)
		return
	}

	s.userID = userID
	s.authenticated = true
	s.sendSystem(SystemFrame{
		Type:         FrameAuthSuccess,
		Message:      "authenticated",
		UserID:       userID,
		ConnectionID: s.connID,
	})
}

func (s *Session) rejectAuth(message string, cause error) {
	s.log.Warn("Handshake rejected", "connection_id", s.connID, "reason", message, "error", cause)
	s.sendSystem(SystemFrame{Type: FrameAuthError, Message: message})
}

func (s *Session) sendSystem(frame SystemFrame) {
	frame.Timestamp = s.now().UTC()
	payload, err := encodeFrame(frame)
	if err != nil {
		s.log.Error("Failed to encode system frame", "type", frame.Type, "error", err)
		return
	}
	if err := s.registry.Send(s.connID, payload); err != nil {
		s.log.Debug("Failed to send system frame", "type", frame.Type, "connection_id", s.connID, "error", err)
	}
}
