package command

import (
	"context"

	pion "github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/BioHazard786/beamshare/internal/config"
	"github.com/BioHazard786/beamshare/internal/signaling"
	"github.com/BioHazard786/beamshare/internal/transfer"
	"github.com/BioHazard786/beamshare/internal/webrtc"
)

// session is one signaling connection to the broker.
type session struct {
	cfg     *config.Client
	log     *zap.Logger
	client  *signaling.Client
	handler *signaling.Handler
	id      string
}

func connect(ctx context.Context, cfg *config.Client, log *zap.Logger) (*session, error) {
	client := signaling.NewClient(cfg.WebSocketURL(), log)
	if err := client.Connect(ctx); err != nil {
		return nil, transfer.NewError("connect to server", err)
	}

	handler := signaling.NewHandler(client, log)
	go handler.Start()

	s := &session{cfg: cfg, log: log, client: client, handler: handler}
	id, err := await(ctx, s, "connect to server", handler.Connected)
	if err != nil {
		client.Close()
		return nil, err
	}
	s.id = id
	log.Debug("connected to broker", zap.String("client_id", id))
	return s, nil
}

func (s *session) Close() {
	s.client.Close()
}

// await waits for one event on ch while watching the broker for errors,
// shutdown and disconnection.
func await[T any](ctx context.Context, s *session, op string, ch <-chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case msg := <-s.handler.Error:
		return zero, brokerError(op, msg)
	case msg := <-s.handler.Shutdown:
		return zero, transfer.WrapError(op, ErrServerShutdown, msg)
	case <-s.handler.Closed:
		return zero, transfer.NewError(op, transfer.ErrConnectionLost)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// link is the peer connection to the other member of the room.
type link struct {
	pc     *pion.PeerConnection
	neg    *webrtc.Negotiator
	failed chan struct{}
	peer   string
}

func newLink(s *session, peer string) (*link, error) {
	pc, err := webrtc.NewPeerConnection(s.cfg)
	if err != nil {
		return nil, err
	}

	failed := make(chan struct{}, 1)
	neg := webrtc.NewNegotiator(pc, func(p signaling.SignalPayload) error {
		return s.client.SendSignal(peer, p)
	}, failed, s.log.Named("webrtc"))
	return &link{pc: pc, neg: neg, failed: failed, peer: peer}, nil
}

// relay applies the peer's negotiation payloads until ctx ends or the broker
// connection closes.
func (l *link) relay(ctx context.Context, s *session) {
	for {
		select {
		case ev := <-s.handler.Signal:
			if ev.From != l.peer {
				s.log.Debug("ignoring signal from another client", zap.String("client_id", ev.From))
				continue
			}
			if err := l.neg.Apply(ev.Payload); err != nil {
				s.log.Warn("apply signal failed", zap.String("kind", ev.Payload.Type), zap.Error(err))
			}
		case <-s.handler.Closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

// watch cancels the transfer when the peer leaves, ICE fails or the broker
// reports an error or shuts down. A broker error such as an unknown
// negotiation target is not retried.
func (l *link) watch(ctx context.Context, s *session, cancel context.CancelCauseFunc) {
	select {
	case <-s.handler.PeerLeft:
		cancel(ErrPeerLeft)
	case msg := <-s.handler.Error:
		cancel(brokerError("negotiate", msg))
	case <-l.failed:
		cancel(ErrNegotiationFailed)
	case msg := <-s.handler.Shutdown:
		cancel(transfer.WrapError("transfer", ErrServerShutdown, msg))
	case <-ctx.Done():
	}
}

func (l *link) Close() {
	l.pc.Close()
}
