package signaling

import "encoding/json"

// Message is every JSON object exchanged with the broker over the WebSocket.
// Field names match the browser peer, so only the fields relevant to a given
// Type are set.
type Message struct {
	Type       string          `json:"type"`
	ClientID   string          `json:"clientId,omitempty"`
	TargetID   string          `json:"targetId,omitempty"`
	RoomID     string          `json:"roomId,omitempty"`
	Role       string          `json:"role,omitempty"`
	RoomSize   int             `json:"roomSize,omitempty"`
	ClientType string          `json:"clientType,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Message    string          `json:"message,omitempty"`
	Timestamp  int64           `json:"timestamp,omitempty"`
}

// Requests sent by a peer.
const (
	TypeCreate = "create"
	TypeJoin   = "join"
	TypeLeave  = "leave"
	TypeSignal = "signal"
	TypePing   = "ping"
)

// Events sent by the broker. TypeSignal is shared with the request side.
const (
	TypeConnection     = "connection"
	TypeRoleAssigned   = "role-assigned"
	TypeUserJoined     = "user-joined"
	TypeUserLeft       = "user-left"
	TypeError          = "error"
	TypePong           = "pong"
	TypeServerShutdown = "server-shutdown"
)

const (
	RoleSender   = "sender"
	RoleReceiver = "receiver"
)

const (
	ClientTypeCLI = "cli"
	ClientTypeWeb = "web"
)

// Negotiation payload types carried in Message.Data.
const (
	SignalOffer     = "offer"
	SignalAnswer    = "answer"
	SignalCandidate = "ice-candidate"
)

// SignalPayload is the negotiation blob relayed between peers. The broker
// never decodes it.
type SignalPayload struct {
	Type      string          `json:"type"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}
