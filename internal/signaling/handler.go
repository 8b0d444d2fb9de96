package signaling

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// PeerInfo describes the other member of the room.
type PeerInfo struct {
	ClientID   string
	ClientType string
	Role       string
	RoomSize   int
}

// RoleAssignment is this peer's place in a room.
type RoleAssignment struct {
	RoomID   string
	Role     string
	RoomSize int
}

// SignalEvent is a negotiation payload received from another peer.
type SignalEvent struct {
	From       string
	ClientType string
	Payload    SignalPayload
}

// Handler routes incoming broker messages to typed channels.
type Handler struct {
	client *Client
	log    *zap.Logger

	Connected    chan string
	RoleAssigned chan *RoleAssignment
	PeerJoined   chan *PeerInfo
	PeerLeft     chan *PeerInfo
	Signal       chan *SignalEvent
	Error        chan string
	Shutdown     chan string

	// Closed is closed once the connection ends and every message has been
	// dispatched.
	Closed chan struct{}
}

func NewHandler(client *Client, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		client:       client,
		log:          log,
		Connected:    make(chan string, 1),
		RoleAssigned: make(chan *RoleAssignment, 1),
		PeerJoined:   make(chan *PeerInfo, 1),
		PeerLeft:     make(chan *PeerInfo, 1),
		Signal:       make(chan *SignalEvent, 32),
		Error:        make(chan string, 4),
		Shutdown:     make(chan string, 1),
		Closed:       make(chan struct{}),
	}
}

// Start dispatches messages until the client's incoming channel closes.
func (h *Handler) Start() {
	defer close(h.Closed)

	for msg := range h.client.Incoming() {
		h.Dispatch(msg)
	}
}

func (h *Handler) Dispatch(msg *Message) {
	switch msg.Type {
	case TypeConnection:
		offer(h.Connected, msg.ClientID)

	case TypeRoleAssigned:
		offer(h.RoleAssigned, &RoleAssignment{RoomID: msg.RoomID, Role: msg.Role, RoomSize: msg.RoomSize})

	case TypeUserJoined:
		offer(h.PeerJoined, &PeerInfo{
			ClientID:   msg.ClientID,
			ClientType: msg.ClientType,
			Role:       msg.Role,
			RoomSize:   msg.RoomSize,
		})

	case TypeUserLeft:
		offer(h.PeerLeft, &PeerInfo{ClientID: msg.ClientID, RoomSize: msg.RoomSize})

	case TypeSignal:
		h.handleSignal(msg)

	case TypeError:
		offer(h.Error, msg.Message)

	case TypeServerShutdown:
		offer(h.Shutdown, msg.Message)

	case TypePong:

	default:
		h.log.Debug("ignoring broker message", zap.String("type", msg.Type))
	}
}

func (h *Handler) handleSignal(msg *Message) {
	var payload SignalPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		offer(h.Error, "Failed to parse signal payload")
		return
	}
	h.Signal <- &SignalEvent{From: msg.ClientID, ClientType: msg.ClientType, Payload: payload}
}

// offer delivers v unless the consumer has fallen behind; these channels
// carry one-shot events, so a stale duplicate is dropped.
func offer[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func jsonRaw(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode signal payload: %w", err)
	}
	return data, nil
}
