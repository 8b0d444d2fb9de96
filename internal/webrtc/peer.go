package webrtc

import (
	"encoding/json"
	"errors"
	"sync"

	pion "github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/BioHazard786/beamshare/internal/config"
	"github.com/BioHazard786/beamshare/internal/signaling"
	"github.com/BioHazard786/beamshare/internal/transfer"
)

// ChannelLabel is the data channel name browser peers listen for.
const ChannelLabel = "fileChannel"

var ErrUnexpectedSignal = errors.New("unexpected signal type")

// ICEServers builds the STUN and TURN list from the client configuration.
func ICEServers(cfg *config.Client) []pion.ICEServer {
	var servers []pion.ICEServer
	if stun := cfg.STUNServers(); stun != nil {
		servers = append(servers, pion.ICEServer{URLs: stun})
	}
	if turn := cfg.TURNServers(); turn != nil {
		username, password := cfg.TURNCredentials()
		servers = append(servers, pion.ICEServer{
			URLs:       turn,
			Username:   username,
			Credential: password,
		})
	}
	return servers
}

func NewPeerConnection(cfg *config.Client) (*pion.PeerConnection, error) {
	policy := pion.ICETransportPolicyAll
	if cfg.TURNServers() != nil && (cfg.ForceRelay || ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         ICEServers(cfg),
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, transfer.NewError("create peer connection", err)
	}
	return pc, nil
}

// CreateDataChannel opens the ordered, partially reliable channel the
// browser peer expects.
func CreateDataChannel(pc *pion.PeerConnection) (*pion.DataChannel, error) {
	ordered := true
	maxRetransmits := uint16(3)

	dc, err := pc.CreateDataChannel(ChannelLabel, &pion.DataChannelInit{
		Ordered:        &ordered,
		MaxRetransmits: &maxRetransmits,
	})
	if err != nil {
		return nil, transfer.NewError("create data channel", err)
	}
	return dc, nil
}

// Negotiator applies remote negotiation payloads to a peer connection and
// publishes local ones. Candidates that arrive before the remote description
// are held until it is set.
type Negotiator struct {
	pc   *pion.PeerConnection
	send func(signaling.SignalPayload) error
	log  *zap.Logger

	mu      sync.Mutex
	pending []pion.ICECandidateInit
}

// NewNegotiator wires local ICE candidates to send. failed is signalled once
// when ICE fails or closes.
func NewNegotiator(pc *pion.PeerConnection, send func(signaling.SignalPayload) error, failed chan<- struct{}, log *zap.Logger) *Negotiator {
	if log == nil {
		log = zap.NewNop()
	}
	n := &Negotiator{pc: pc, send: send, log: log}

	pc.OnICEConnectionStateChange(func(state pion.ICEConnectionState) {
		if state == pion.ICEConnectionStateFailed || state == pion.ICEConnectionStateClosed {
			select {
			case failed <- struct{}{}:
			default:
			}
		}
	})

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		n.publishCandidate(c.ToJSON())
	})
	return n
}

func (n *Negotiator) publishCandidate(c pion.ICECandidateInit) {
	data, err := json.Marshal(c)
	if err != nil {
		n.log.Warn("encode ICE candidate failed", zap.Error(err))
		return
	}
	if err := n.send(signaling.SignalPayload{Type: signaling.SignalCandidate, Candidate: data}); err != nil {
		n.log.Warn("send ICE candidate failed", zap.Error(err))
	}
}

// Offer creates the local offer and sends it.
func (n *Negotiator) Offer() error {
	offer, err := n.pc.CreateOffer(nil)
	if err != nil {
		return transfer.NewError("create offer", err)
	}
	if err := n.pc.SetLocalDescription(offer); err != nil {
		return transfer.NewError("set local description", err)
	}

	local := n.pc.LocalDescription()
	return n.send(signaling.SignalPayload{Type: signaling.SignalOffer, SDP: local.SDP})
}

// Apply handles one remote payload. An offer is answered immediately.
func (n *Negotiator) Apply(p signaling.SignalPayload) error {
	switch p.Type {
	case signaling.SignalOffer:
		if err := n.setRemote(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: p.SDP}); err != nil {
			return err
		}
		answer, err := n.pc.CreateAnswer(nil)
		if err != nil {
			return transfer.NewError("create answer", err)
		}
		if err := n.pc.SetLocalDescription(answer); err != nil {
			return transfer.NewError("set local description", err)
		}
		return n.send(signaling.SignalPayload{Type: signaling.SignalAnswer, SDP: n.pc.LocalDescription().SDP})

	case signaling.SignalAnswer:
		return n.setRemote(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: p.SDP})

	case signaling.SignalCandidate:
		if len(p.Candidate) == 0 {
			return nil
		}
		var ice pion.ICECandidateInit
		if err := json.Unmarshal(p.Candidate, &ice); err != nil {
			return transfer.NewError("parse ICE candidate", err)
		}
		return n.addCandidate(ice)

	default:
		return transfer.WrapError("handle signal", ErrUnexpectedSignal, p.Type)
	}
}

func (n *Negotiator) setRemote(desc pion.SessionDescription) error {
	if err := n.pc.SetRemoteDescription(desc); err != nil {
		return transfer.NewError("set remote description", err)
	}

	n.mu.Lock()
	pending := n.pending
	n.pending = nil
	n.mu.Unlock()

	for _, ice := range pending {
		if err := n.pc.AddICECandidate(ice); err != nil {
			return transfer.NewError("add ICE candidate", err)
		}
	}
	return nil
}

func (n *Negotiator) addCandidate(ice pion.ICECandidateInit) error {
	n.mu.Lock()
	if n.pc.RemoteDescription() == nil {
		n.pending = append(n.pending, ice)
		n.mu.Unlock()
		return nil
	}
	n.mu.Unlock()

	if err := n.pc.AddICECandidate(ice); err != nil {
		return transfer.NewError("add ICE candidate", err)
	}
	return nil
}
