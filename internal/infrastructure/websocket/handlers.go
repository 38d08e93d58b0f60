package websocket

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"marketplace-portal/internal/realtime"
	"marketplace-portal/pkg/logger"
)

const maxMessageSize = 4096

type HandlerConfig struct {
	SendBuffer   int
	WriteTimeout time.Duration
	// CheckOrigin defaults to allowing every origin.
	CheckOrigin func(r *http.Request) bool
}

type WebSocketHandler struct {
	handshake *realtime.Handshake
	registry  *realtime.Registry
	upgrader  websocket.Upgrader
	cfg       HandlerConfig
	log       logger.Logger
}

func NewWebSocketHandler(registry *realtime.Registry, handshake *realtime.Handshake,
	cfg HandlerConfig, log logger.Logger) *WebSocketHandler {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &WebSocketHandler{
		handshake: handshake,
		registry:  registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		cfg: cfg,
		log: log,
	}
}

// ServeHTTP upgrades the request and runs the connection until the peer goes away.
// Identity is not taken from the request; the client authenticates with an auth frame.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	wsConn := NewConnection(conn, h.cfg.SendBuffer, h.cfg.WriteTimeout, h.log)
	go wsConn.writePump()

	session, err := h.handshake.Accept(wsConn)
	if err != nil {
		h.log.Error("Failed to register connection", "error", err)
		wsConn.Close()
		return
	}

	h.handleMessages(context.Background(), wsConn, session)
}

func (h *WebSocketHandler) handleMessages(ctx context.Context, conn *Connection, session *realtime.Session) {
	connID := session.ConnectionID()
	defer func() {
		h.registry.Unregister(connID)
		conn.Close()
		h.log.Info("Connection closed", "connection_id", connID, "user_id", session.UserID())
	}()

	conn.conn.SetReadLimit(maxMessageSize)
	// Protocol-level pings count as liveness too.
	conn.conn.SetPingHandler(func(appData string) error {
		h.registry.Touch(connID)
		return conn.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Unexpected close", "connection_id", connID, "error", err)
			}
			return
		}
		session.HandleMessage(ctx, data)
	}
}
