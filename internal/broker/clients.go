package broker

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/BioHazard786/beamshare/internal/clock"
	"github.com/BioHazard786/beamshare/internal/signaling"
)

const DefaultSendQueue = 256

// Client is one signaling connection as seen by the broker.
type Client struct {
	id         string
	clientType string
	alive      atomic.Bool

	send      chan *signaling.Message
	pings     chan struct{}
	closed    chan struct{}
	once      sync.Once
	closeCode int
	closeText string

	connectedAt time.Time
	lastSeen    time.Time
	roomID      string
}

// NewClient builds a client with a send queue of the given capacity.
func NewClient(queue int) *Client {
	if queue <= 0 {
		queue = DefaultSendQueue
	}
	return &Client{
		clientType: signaling.ClientTypeWeb,
		send:       make(chan *signaling.Message, queue),
		pings:      make(chan struct{}, 1),
		closed:     make(chan struct{}),
		closeCode:  websocket.CloseNormalClosure,
	}
}

func (c *Client) ID() string { return c.id }

// Deliver queues msg without blocking. A full queue or a closed client is a
// delivery failure.
func (c *Client) Deliver(msg *signaling.Message) error {
	select {
	case <-c.closed:
		return ErrConnectionLost
	default:
	}

	select {
	case c.send <- msg:
		return nil
	default:
		return ErrConnectionLost
	}
}

// Probe queues a transport ping for the write pump.
func (c *Client) Probe() {
	select {
	case c.pings <- struct{}{}:
	default:
	}
}

// Close stops the client. Messages already queued are still flushed by the
// write pump before the close frame.
func (c *Client) Close() {
	c.CloseWith(websocket.CloseNormalClosure, "")
}

func (c *Client) CloseWith(code int, text string) {
	c.once.Do(func() {
		c.closeCode = code
		c.closeText = text
		close(c.closed)
	})
}

func (c *Client) Done() <-chan struct{} { return c.closed }

// Outbox is drained by the write pump.
func (c *Client) Outbox() <-chan *signaling.Message { return c.send }

// Departure describes what an unregistration changed.
type Departure struct {
	Client    *Client
	RoomID    string
	Remaining int
	Deleted   bool
}

// ClientRegistry owns connection identity, liveness and room association.
type ClientRegistry struct {
	mu      sync.Mutex
	clients map[string]*Client
	rooms   *RoomRegistry
	clock   clock.Clock
}

func NewClientRegistry(rooms *RoomRegistry, clk clock.Clock) *ClientRegistry {
	if clk == nil {
		clk = clock.Real()
	}
	return &ClientRegistry{
		clients: make(map[string]*Client),
		rooms:   rooms,
		clock:   clk,
	}
}

// Register assigns c a fresh identity and marks it alive.
func (r *ClientRegistry) Register(c *Client) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	c.id = uuid.NewString()
	now := r.clock.Now()
	c.connectedAt = now
	c.lastSeen = now
	c.alive.Store(true)
	r.clients[c.id] = c
	return c.id
}

// Unregister removes the client and leaves its room. It reports false when
// the client was already gone.
func (r *ClientRegistry) Unregister(id string) (Departure, bool) {
	r.mu.Lock()
	c, ok := r.clients[id]
	if !ok {
		r.mu.Unlock()
		return Departure{}, false
	}
	delete(r.clients, id)
	roomID := c.roomID
	c.roomID = ""
	r.mu.Unlock()

	d := Departure{Client: c, RoomID: roomID}
	if roomID != "" {
		d.Remaining, d.Deleted = r.rooms.Leave(roomID, id)
	}
	return d, true
}

// Touch records a liveness signal.
func (r *ClientRegistry) Touch(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return false
	}
	c.lastSeen = r.clock.Now()
	c.alive.Store(true)
	return true
}

// SetRoom records the client's current room. It reports false when the
// client is no longer registered.
func (r *ClientRegistry) SetRoom(id, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	if !ok {
		return false
	}
	c.roomID = roomID
	return true
}

func (r *ClientRegistry) Room(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[id]; ok {
		return c.roomID
	}
	return ""
}

func (r *ClientRegistry) SetType(id, clientType string) {
	if clientType == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[id]; ok {
		c.clientType = clientType
	}
}

func (r *ClientRegistry) Type(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[id]; ok {
		return c.clientType
	}
	return ""
}

func (r *ClientRegistry) LastSeen(id string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[id]; ok {
		return c.lastSeen, true
	}
	return time.Time{}, false
}

func (r *ClientRegistry) Get(id string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[id]
	return c, ok
}

// Each calls fn for a snapshot of the registered clients, outside the lock.
func (r *ClientRegistry) Each(fn func(*Client)) {
	r.mu.Lock()
	snapshot := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		snapshot = append(snapshot, c)
	}
	r.mu.Unlock()

	for _, c := range snapshot {
		fn(c)
	}
}

func (r *ClientRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
