package broker

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/BioHazard786/beamshare/internal/clock"
	"github.com/BioHazard786/beamshare/internal/metrics"
	"github.com/BioHazard786/beamshare/internal/signaling"
)

const shutdownMessage = "Server is shutting down"

type HubOptions struct {
	Clock   clock.Clock
	Logger  *zap.Logger
	Metrics *metrics.Collector
}

// Hub introduces clients to each other and relays negotiation messages
// between the two members of a room.
type Hub struct {
	rooms   *RoomRegistry
	clients *ClientRegistry
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.Collector
}

func NewHub(rooms *RoomRegistry, clients *ClientRegistry, opts HubOptions) *Hub {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Hub{
		rooms:   rooms,
		clients: clients,
		clock:   opts.Clock,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
}

func (h *Hub) Rooms() *RoomRegistry     { return h.rooms }
func (h *Hub) Clients() *ClientRegistry { return h.clients }

// Introduce registers c and tells it its identity.
func (h *Hub) Introduce(c *Client) string {
	id := h.clients.Register(c)
	h.metrics.ClientConnected()
	h.log.Debug("client connected", zap.String("client_id", id))

	h.deliver(c, &signaling.Message{
		Type:      signaling.TypeConnection,
		ClientID:  id,
		Timestamp: h.now(),
	})
	return id
}

// Dispatch decodes one raw frame from c and applies it. Faults are answered
// with an error message to c only.
func (h *Hub) Dispatch(c *Client, raw []byte) {
	var msg signaling.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.reply(c, newFault("decode", ErrMalformedMessage))
		return
	}
	if err := h.Handle(c, &msg); err != nil {
		h.reply(c, err)
	}
}

func (h *Hub) Handle(c *Client, msg *signaling.Message) error {
	switch msg.Type {
	case signaling.TypeJoin:
		h.metrics.Message(msg.Type)
		h.clients.SetType(c.id, msg.ClientType)
		return h.Join(c, msg.RoomID)

	case signaling.TypeCreate:
		h.metrics.Message(msg.Type)
		h.clients.SetType(c.id, msg.ClientType)
		_, err := h.CreateAndJoin(c)
		return err

	case signaling.TypeLeave:
		h.metrics.Message(msg.Type)
		h.Leave(c.id, msg.RoomID)
		return nil

	case signaling.TypeSignal:
		h.metrics.Message(msg.Type)
		return h.Route(c.id, msg.TargetID, msg.Data)

	case signaling.TypePing:
		h.metrics.Message(msg.Type)
		h.clients.Touch(c.id)
		h.deliver(c, &signaling.Message{Type: signaling.TypePong, Timestamp: h.now()})
		return nil

	default:
		h.metrics.Message("unknown")
		return &Fault{
			Op:      "dispatch",
			Err:     ErrMalformedMessage,
			Message: fmt.Sprintf(msgUnknownType, msg.Type),
		}
	}
}

// CreateRoom registers an empty room.
func (h *Hub) CreateRoom() (string, error) {
	id, err := h.rooms.Create()
	if err != nil {
		return "", err
	}
	h.metrics.RoomCreated()
	h.log.Info("room created", zap.String("room_id", id))
	return id, nil
}

// CreateAndJoin creates a room and joins c to it as the sender.
func (h *Hub) CreateAndJoin(c *Client) (string, error) {
	id, err := h.CreateRoom()
	if err != nil {
		return "", err
	}
	if err := h.Join(c, id); err != nil {
		return "", err
	}
	return id, nil
}

// Join moves c into roomID. The previous room is left only once the new
// join has succeeded, so a failed join leaves c where it was.
func (h *Hub) Join(c *Client, roomID string) error {
	if roomID == "" {
		return newFault("join", ErrRoomIDRequired)
	}

	prev := h.clients.Room(c.id)
	role, size, err := h.rooms.Join(roomID, c.id)
	if err != nil {
		return err
	}
	if prev != "" && prev != roomID {
		h.Leave(c.id, prev)
	}
	if !h.clients.SetRoom(c.id, roomID) {
		// Disconnected while joining.
		remaining, deleted := h.rooms.Leave(roomID, c.id)
		h.afterLeave(c.id, roomID, remaining, deleted)
		return newFault("join", ErrConnectionLost)
	}

	h.log.Info("client joined room",
		zap.String("client_id", c.id),
		zap.String("room_id", roomID),
		zap.String("role", role),
		zap.Int("room_size", size))

	h.deliver(c, &signaling.Message{
		Type:     signaling.TypeRoleAssigned,
		Role:     role,
		RoomSize: size,
		RoomID:   roomID,
	})
	if prev == roomID {
		return nil
	}
	h.Broadcast(roomID, &signaling.Message{
		Type:       signaling.TypeUserJoined,
		ClientID:   c.id,
		Role:       role,
		RoomSize:   size,
		ClientType: h.clients.Type(c.id),
	}, c.id)
	return nil
}

// Leave removes clientID from roomID. An empty roomID means the client's
// current room. A room the client is not in is ignored.
func (h *Hub) Leave(clientID, roomID string) {
	current := h.clients.Room(clientID)
	if roomID == "" {
		roomID = current
	}
	if roomID == "" || roomID != current {
		return
	}

	h.clients.SetRoom(clientID, "")
	remaining, deleted := h.rooms.Leave(roomID, clientID)
	h.afterLeave(clientID, roomID, remaining, deleted)
}

func (h *Hub) afterLeave(clientID, roomID string, remaining int, deleted bool) {
	h.log.Info("client left room",
		zap.String("client_id", clientID),
		zap.String("room_id", roomID),
		zap.Int("room_size", remaining))

	if deleted {
		h.metrics.RoomsDeleted(1)
		h.log.Info("room deleted", zap.String("room_id", roomID))
		return
	}
	h.Broadcast(roomID, &signaling.Message{
		Type:     signaling.TypeUserLeft,
		ClientID: clientID,
		RoomSize: remaining,
	}, clientID)
}

// Route forwards a negotiation payload verbatim to targetID.
func (h *Hub) Route(fromID, targetID string, data json.RawMessage) error {
	target, ok := h.clients.Get(targetID)
	if targetID == "" || !ok {
		return newFault("signal", ErrTargetNotFound)
	}

	msg := &signaling.Message{
		Type:       signaling.TypeSignal,
		ClientID:   fromID,
		ClientType: h.clients.Type(fromID),
		Data:       data,
	}
	if err := target.Deliver(msg); err != nil {
		h.Evict(targetID, "delivery")
		return newFault("signal", ErrTargetNotFound)
	}

	h.log.Debug("signal relayed",
		zap.String("client_id", fromID),
		zap.String("target_id", targetID))
	return nil
}

// Broadcast delivers msg to every member of roomID except excludeID. Members
// that cannot take the message are evicted after the others are served.
func (h *Hub) Broadcast(roomID string, msg *signaling.Message, excludeID string) {
	var failed []string
	for _, id := range h.rooms.Members(roomID) {
		if id == excludeID {
			continue
		}
		c, ok := h.clients.Get(id)
		if !ok {
			continue
		}
		if err := c.Deliver(msg); err != nil {
			failed = append(failed, id)
		}
	}

	for _, id := range failed {
		h.Evict(id, "delivery")
	}
}

// Disconnect unregisters the client, closes it and notifies its room. It is
// safe to call more than once.
func (h *Hub) Disconnect(id string) {
	d, ok := h.clients.Unregister(id)
	if !ok {
		return
	}
	d.Client.Close()
	h.metrics.ClientDisconnected()
	h.log.Debug("client disconnected", zap.String("client_id", id))

	if d.RoomID != "" {
		h.afterLeave(id, d.RoomID, d.Remaining, d.Deleted)
	}
}

func (h *Hub) Evict(id, reason string) {
	if _, ok := h.clients.Get(id); !ok {
		return
	}
	h.metrics.Evicted(reason)
	h.log.Warn("evicting client", zap.String("client_id", id), zap.String("reason", reason))
	h.Disconnect(id)
}

// Shutdown tells every client the broker is going away and closes them with
// going-away status.
func (h *Hub) Shutdown() {
	msg := &signaling.Message{Type: signaling.TypeServerShutdown, Message: shutdownMessage}
	h.clients.Each(func(c *Client) {
		if err := c.Deliver(msg); err != nil {
			h.log.Debug("shutdown notice not delivered", zap.String("client_id", c.id), zap.Error(err))
		}
		c.CloseWith(websocket.CloseGoingAway, shutdownMessage)
	})
}

func (h *Hub) reply(c *Client, err error) {
	op := "unknown"
	var f *Fault
	if errors.As(err, &f) {
		op = f.Op
	}
	h.metrics.Fault(op)
	h.log.Debug("fault", zap.String("client_id", c.id), zap.Error(err))

	h.deliver(c, &signaling.Message{Type: signaling.TypeError, Message: Reply(err)})
}

func (h *Hub) deliver(c *Client, msg *signaling.Message) {
	if err := c.Deliver(msg); err != nil {
		h.Evict(c.id, "delivery")
	}
}

func (h *Hub) now() int64 {
	return h.clock.Now().UnixMilli()
}
