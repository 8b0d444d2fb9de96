package signaling

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var ErrClientClosed = errors.New("signaling client closed")

// Client manages the WebSocket connection to the broker.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	log       *zap.Logger

	incoming chan *Message
	outgoing chan *Message
	done     chan struct{}
	once     sync.Once
}

func NewClient(serverURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		serverURL: serverURL,
		log:       log,
		incoming:  make(chan *Message, 16),
		outgoing:  make(chan *Message, 16),
		done:      make(chan struct{}),
	}
}

// Connect dials the broker and starts the read and write pumps.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("signaling read failed", zap.Error(err))
			}
			return
		}
		// Any traffic from the broker proves the connection is alive.
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.log.Debug("signaling write failed", zap.String("type", message.Type), zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// SendMessage queues msg for the write pump.
func (c *Client) SendMessage(msg *Message) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrClientClosed
	}
}

// SendSignal relays a negotiation payload to target through the broker.
func (c *Client) SendSignal(target string, payload SignalPayload) error {
	data, err := jsonRaw(payload)
	if err != nil {
		return err
	}
	return c.SendMessage(&Message{Type: TypeSignal, TargetID: target, Data: data})
}

// Incoming is closed when the connection ends.
func (c *Client) Incoming() <-chan *Message {
	return c.incoming
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}
