package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketplace-portal/internal/domain"
	"marketplace-portal/pkg/logger"
)

// Connection adapts a gorilla websocket to realtime.Transport. Frames are queued
// on a bounded buffer and written by a single writer goroutine.
type Connection struct {
	conn         *websocket.Conn
	send         chan []byte
	closed       chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration
	log          logger.Logger
}

func NewConnection(conn *websocket.Conn, bufferSize int, writeTimeout time.Duration, log logger.Logger) *Connection {
	return &Connection{
		conn:         conn,
		send:         make(chan []byte, bufferSize),
		closed:       make(chan struct{}),
		writeTimeout: writeTimeout,
		log:          log,
	}
}

// Send queues frame without blocking. A slow client loses frames instead of
// stalling the dispatcher.
func (c *Connection) Send(frame []byte) error {
	select {
	case <-c.closed:
		return domain.ErrNotWritable
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return domain.ErrNotWritable
	}
}

func (c *Connection) Writable() bool {
	select {
	case <-c.closed:
		return false
	default:
		return len(c.send) < cap(c.send)
	}
}

func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.conn.Close()
	})
	return err
}

func (c *Connection) writePump() {
	for {
		select {
		case frame := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
				c.log.Warn("Failed to set write deadline", "error", err)
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Warn("Failed to write frame", "error", err)
				c.Close()
				return
			}
		case <-c.closed:
			return
		}
	}
}
