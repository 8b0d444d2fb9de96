package broker

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrTargetNotFound     = errors.New("target client not found")
	ErrMalformedMessage   = errors.New("malformed message")
	ErrCodeSpaceExhausted = errors.New("room code space exhausted")
	ErrConnectionLost     = errors.New("connection lost")
	ErrRoomIDRequired     = errors.New("room id required")
	ErrRateLimited        = errors.New("rate limited")
)

// Client-facing texts. The browser peer matches on some of them.
const (
	msgInvalidFormat  = "Invalid message format"
	msgUnknownType    = "Unknown message type: %s"
	msgRoomIDRequired = "Room ID is required"
	msgRoomFull       = "Room is full (maximum 2 users allowed)"
	msgRoomNotFound   = "Room not found. Please check the room ID."
	msgTargetNotFound = "Target client not found"
	msgRateLimited    = "Rate limit exceeded"
	msgCreateFailed   = "Failed to create room"
	msgInternal       = "Internal server error"
)

// Fault is a broker error with the text sent back to the originating client.
type Fault struct {
	Op      string
	Err     error
	Message string
}

func (f *Fault) Error() string {
	if f.Op == "" {
		return f.Err.Error()
	}
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

func newFault(op string, err error) *Fault {
	return &Fault{Op: op, Err: err, Message: messageFor(err)}
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return msgRoomNotFound
	case errors.Is(err, ErrRoomFull):
		return msgRoomFull
	case errors.Is(err, ErrRoomIDRequired):
		return msgRoomIDRequired
	case errors.Is(err, ErrTargetNotFound):
		return msgTargetNotFound
	case errors.Is(err, ErrMalformedMessage):
		return msgInvalidFormat
	case errors.Is(err, ErrRateLimited):
		return msgRateLimited
	case errors.Is(err, ErrCodeSpaceExhausted):
		return msgCreateFailed
	default:
		return msgInternal
	}
}

// Reply returns the client-facing text for err.
func Reply(err error) string {
	var f *Fault
	if errors.As(err, &f) && f.Message != "" {
		return f.Message
	}
	return messageFor(err)
}
