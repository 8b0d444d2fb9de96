package broker

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ConnOptions tunes the pumps of one WebSocket connection.
type ConnOptions struct {
	// Time allowed to write a message to the peer.
	WriteWait time.Duration

	// Time allowed between two reads before the connection is dropped. It
	// must exceed the liveness ping interval.
	ReadWait time.Duration

	MaxMessageSize    int64
	SendQueue         int
	MessagesPerSecond float64
	Burst             int
}

func DefaultConnOptions() ConnOptions {
	return ConnOptions{
		WriteWait:         10 * time.Second,
		ReadWait:          75 * time.Second,
		MaxMessageSize:    64 * 1024,
		SendQueue:         DefaultSendQueue,
		MessagesPerSecond: 50,
		Burst:             100,
	}
}

// Attach introduces a freshly upgraded connection to the hub and starts its
// read and write pumps.
func (h *Hub) Attach(conn *websocket.Conn, opts ConnOptions) *Client {
	c := NewClient(opts.SendQueue)
	h.Introduce(c)

	go h.writePump(c, conn, opts)
	go h.readPump(c, conn, opts)
	return c
}

// readPump is the only reader on conn. When it exits the client is
// disconnected.
func (h *Hub) readPump(c *Client, conn *websocket.Conn, opts ConnOptions) {
	defer func() {
		h.Disconnect(c.id)
		conn.Close()
	}()

	limiter := rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), opts.Burst)

	conn.SetReadLimit(opts.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(opts.ReadWait))
	conn.SetPongHandler(func(string) error {
		h.clients.Touch(c.id)
		return conn.SetReadDeadline(time.Now().Add(opts.ReadWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(opts.ReadWait))

		if !limiter.Allow() {
			h.reply(c, newFault("read", ErrRateLimited))
			continue
		}
		h.Dispatch(c, data)
	}
}

// writePump is the only writer on conn. On close it flushes what is queued
// and sends a close frame carrying the client's close code.
func (h *Hub) writePump(c *Client, conn *websocket.Conn, opts ConnOptions) {
	defer conn.Close()

	write := func(v any) bool {
		conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
		if err := conn.WriteJSON(v); err != nil {
			h.log.Debug("write failed", zap.String("client_id", c.id), zap.Error(err))
			c.Close()
			return false
		}
		return true
	}

	for {
		select {
		case msg := <-c.send:
			if !write(msg) {
				return
			}

		case <-c.pings:
			deadline := time.Now().Add(opts.WriteWait)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.Close()
				return
			}

		case <-c.closed:
		flush:
			for {
				select {
				case msg := <-c.send:
					if !write(msg) {
						return
					}
				default:
					break flush
				}
			}
			deadline := time.Now().Add(opts.WriteWait)
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(c.closeCode, c.closeText), deadline)
			return
		}
	}
}
