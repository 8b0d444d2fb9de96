package command

import (
	"errors"

	"github.com/BioHazard786/beamshare/internal/transfer"
)

var (
	ErrBroker            = errors.New("broker error")
	ErrServerShutdown    = errors.New("server is shutting down")
	ErrPeerLeft          = errors.New("peer left the room")
	ErrNegotiationFailed = errors.New("peer connection failed")
	ErrUnexpectedOffer   = errors.New("expected an offer from the sender")
)

func brokerError(op, message string) error {
	return transfer.WrapError(op, ErrBroker, message)
}
