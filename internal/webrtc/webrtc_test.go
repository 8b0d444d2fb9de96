package webrtc

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BioHazard786/beamshare/internal/config"
	"github.com/BioHazard786/beamshare/internal/signaling"
	"github.com/BioHazard786/beamshare/internal/transfer"
)

func TestSelectCodec(t *testing.T) {
	assert.Equal(t, "msgpack", SelectCodec(signaling.ClientTypeCLI).Name())
	assert.Equal(t, "legacy", SelectCodec(signaling.ClientTypeWeb).Name())
	assert.Equal(t, "legacy", SelectCodec("").Name())
}

func TestICEServers(t *testing.T) {
	cfg := &config.Client{
		STUNServer: "stun:stun.example:19302",
		TURNServer: "turn:relay.example",
		TURNUser:   "u",
		TURNPass:   "p",
	}

	servers := ICEServers(cfg)
	assert.Len(t, servers, 2)
	assert.Equal(t, []string{"stun:stun.example:19302"}, servers[0].URLs)
	assert.Len(t, servers[1].URLs, 3)
	assert.Equal(t, "u", servers[1].Username)
	assert.Equal(t, "p", servers[1].Credential)

	assert.Empty(t, ICEServers(&config.Client{}))
}

func TestNeedsRelay(t *testing.T) {
	ipnet := func(s string) net.Addr {
		return &net.IPNet{IP: net.ParseIP(s), Mask: net.CIDRMask(32, 32)}
	}

	assert.True(t, needsRelay("wg0", nil))
	assert.True(t, needsRelay("CloudflareWARP", nil))
	assert.True(t, needsRelay("eth0", []net.Addr{ipnet("100.100.1.2")}))
	assert.False(t, needsRelay("eth0", []net.Addr{ipnet("192.168.1.10")}))
	assert.False(t, needsRelay("en0", []net.Addr{&net.IPAddr{IP: net.ParseIP("100.128.0.1")}}))
}

// Two pion peers in one process negotiate through Negotiators and carry a
// full transfer over the resulting data channel.
func TestLoopbackTransfer(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real ICE sockets")
	}
	cfg := &config.Client{}

	offerer, err := NewPeerConnection(cfg)
	if err != nil {
		t.Fatalf("new peer connection: %v", err)
	}
	defer offerer.Close()
	answerer, err := NewPeerConnection(cfg)
	if err != nil {
		t.Fatalf("new peer connection: %v", err)
	}
	defer answerer.Close()

	toAnswerer := make(chan signaling.SignalPayload, 64)
	toOfferer := make(chan signaling.SignalPayload, 64)
	failed := make(chan struct{}, 2)

	offerSide := NewNegotiator(offerer, func(p signaling.SignalPayload) error { toAnswerer <- p; return nil }, failed, nil)
	answerSide := NewNegotiator(answerer, func(p signaling.SignalPayload) error { toOfferer <- p; return nil }, failed, nil)

	done := make(chan *transfer.Artifact, 1)
	answerer.OnDataChannel(func(dc *pion.DataChannel) {
		ch := NewDataChannel(dc)
		r := transfer.NewReceiver(SelectCodec(signaling.ClientTypeCLI), transfer.ReceiverConfig{
			OnComplete: func(a *transfer.Artifact) { done <- a },
		})
		ch.BindReceiver(r, nil)
	})

	dc, err := CreateDataChannel(offerer)
	if err != nil {
		t.Fatalf("create data channel: %v", err)
	}
	ch := NewDataChannel(dc)

	payload := make([]byte, 100_000)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	sendErr := make(chan error, 1)
	ch.Bind(Events{OnOpen: func() {
		go func() {
			s := transfer.NewSender(ch, SelectCodec(signaling.ClientTypeCLI), transfer.SenderConfig{})
			if err := s.Begin(transfer.Metadata{Name: "loop.bin", Size: int64(len(payload))}, bytes.NewReader(payload)); err != nil {
				sendErr <- err
				return
			}
			sendErr <- s.Run(context.Background())
		}()
	}})

	applyErr := make(chan error, 1)
	pump := func(from <-chan signaling.SignalPayload, n *Negotiator) {
		for p := range from {
			if err := n.Apply(p); err != nil {
				select {
				case applyErr <- err:
				default:
				}
			}
		}
	}
	go pump(toAnswerer, answerSide)
	go pump(toOfferer, offerSide)

	if err := offerSide.Offer(); err != nil {
		t.Fatalf("offer: %v", err)
	}

	select {
	case a := <-done:
		assert.Equal(t, payload, a.Data)
		assert.NoError(t, <-sendErr)
	case err := <-applyErr:
		t.Fatalf("apply signal: %v", err)
	case <-failed:
		t.Skip("loopback ICE failed in this environment")
	case <-time.After(15 * time.Second):
		t.Skip("loopback ICE did not connect in this environment")
	}
}

func TestReceiverEventsChannelError(t *testing.T) {
	var faults []error
	r := transfer.NewReceiver(transfer.LegacyCodec{}, transfer.ReceiverConfig{
		OnFault: func(err error) { faults = append(faults, err) },
	})
	var ended error
	ev := ReceiverEvents(r, func(err error) { ended = err })

	ev.OnOpen()
	ev.OnMessage([]byte(`META:{"name":"a.bin","size":8,"type":"","lastModified":0}`), false)
	assert.Equal(t, transfer.ReceiverReceivingChunks, r.State())

	sctp := errors.New("sctp association aborted")
	ev.OnError(sctp)

	assert.Equal(t, transfer.ReceiverIdle, r.State())
	assert.ErrorIs(t, ended, transfer.ErrConnectionLost)
	assert.ErrorIs(t, ended, sctp)
	if assert.Len(t, faults, 1) {
		assert.ErrorIs(t, faults[0], sctp)
		assert.Contains(t, faults[0].Error(), "a.bin")
	}
}

func TestReceiverEventsChannelClose(t *testing.T) {
	r := transfer.NewReceiver(transfer.LegacyCodec{}, transfer.ReceiverConfig{})
	var ended error
	ev := ReceiverEvents(r, func(err error) { ended = err })

	ev.OnOpen()
	ev.OnClose()
	assert.Equal(t, transfer.ReceiverIdle, r.State())
	assert.ErrorIs(t, ended, transfer.ErrConnectionLost)
}

func TestPublishCandidateLogsSendFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := &Negotiator{
		send: func(signaling.SignalPayload) error { return errors.New("socket closed") },
		log:  zap.New(core),
	}

	n.publishCandidate(pion.ICECandidateInit{Candidate: "candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host"})

	entries := logs.FilterMessage("send ICE candidate failed").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "socket closed", entries[0].ContextMap()["error"])
	}
}
