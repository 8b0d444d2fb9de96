package webrtc

import (
	"github.com/BioHazard786/beamshare/internal/signaling"
	"github.com/BioHazard786/beamshare/internal/transfer"
)

// SelectCodec picks the frame codec for the remote peer. Two CLI peers speak
// msgpack; anything else gets the browser-compatible framing.
func SelectCodec(peerType string) transfer.Codec {
	if peerType == signaling.ClientTypeCLI {
		return transfer.MsgpackCodec{}
	}
	return transfer.LegacyCodec{}
}
