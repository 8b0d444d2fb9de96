package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BioHazard786/beamshare/internal/files"
	"github.com/BioHazard786/beamshare/internal/signaling"
	"github.com/BioHazard786/beamshare/internal/transfer"
	"github.com/BioHazard786/beamshare/internal/ui"
	"github.com/BioHazard786/beamshare/internal/webrtc"
)

const (
	negotiationTimeout = 60 * time.Second
	flushTimeout       = 30 * time.Second
	flushPoll          = 50 * time.Millisecond

	// closeGrace gives the receiver time to finalize the last file before the
	// peer connection closes and resets it.
	closeGrace = 2 * time.Second
)

func newSendCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "send <file>...",
		Aliases: []string{"s"},
		Short:   "Send files to a receiver",
		Long: `Create a room and send files to the peer that joins it.

Examples:
  beamshare send report.pdf
  beamshare send --relay photo.jpg video.mp4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd.Context(), opts, args)
		},
	}
}

func runSend(ctx context.Context, opts *globalOptions, paths []string) error {
	infos, err := files.ValidateFiles(paths)
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Stdout)
	fmt.Fprintln(ui.Stdout, ui.NewFileTable(infos).View())

	cfg, err := opts.load()
	if err != nil {
		return err
	}
	log := opts.logger()

	sp := ui.NewConnectionSpinner(ui.Stdout, "Connecting to server...")
	sp.Start()
	s, err := connect(ctx, cfg, log)
	sp.Stop()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.client.SendMessage(&signaling.Message{
		Type:       signaling.TypeCreate,
		ClientType: signaling.ClientTypeCLI,
	}); err != nil {
		return transfer.NewError("create room", err)
	}
	role, err := await(ctx, s, "create room", s.handler.RoleAssigned)
	if err != nil {
		return err
	}
	fmt.Fprintln(ui.Stdout, ui.RoomBox(role.RoomID, cfg.RoomLink(role.RoomID)))
	fmt.Fprintln(ui.Stdout)

	sp = ui.NewWaitingSpinner(ui.Stdout, "Waiting for receiver to join...")
	sp.Start()
	peer, err := await(ctx, s, "wait for peer", s.handler.PeerJoined)
	if err != nil {
		sp.Fail("No receiver joined")
		return err
	}
	sp.Success(fmt.Sprintf("Receiver joined (%s)", peer.ClientType))
	log.Debug("peer joined", zap.String("client_id", peer.ClientID), zap.String("room_id", role.RoomID))

	return sendToPeer(ctx, s, peer, infos)
}

func sendToPeer(ctx context.Context, s *session, peer *signaling.PeerInfo, infos []files.FileInfo) error {
	l, err := newLink(s, peer.ClientID)
	if err != nil {
		return err
	}
	defer l.Close()

	dc, err := webrtc.CreateDataChannel(l.pc)
	if err != nil {
		return err
	}
	ch := webrtc.NewDataChannel(dc)
	codec := webrtc.SelectCodec(peer.ClientType)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	view := ui.NewTransferUI(
		ui.NewTransferModel(ui.ModeSend).OnCancel(func() { cancel(context.Canceled) }),
		ui.Stdout,
	)
	var current sync.Mutex
	idx := -1
	sender := transfer.NewSender(ch, codec, transfer.SenderConfig{
		OnProgress: func(p transfer.Progress) {
			current.Lock()
			i := idx
			current.Unlock()
			view.Progress(i, p)
		},
	})

	opened := make(chan struct{})
	ch.Bind(senderEvents(sender, opened, cancel, s.log))

	go l.relay(runCtx, s)
	go l.watch(runCtx, s, cancel)

	if err := l.neg.Offer(); err != nil {
		return err
	}

	sp := ui.NewConnectionSpinner(ui.Stdout, "Establishing peer connection...")
	sp.Start()
	select {
	case <-opened:
		sp.Success("Peer connection established")
	case <-runCtx.Done():
		sp.Fail("Peer connection failed")
		return transfer.NewError("connect to peer", context.Cause(runCtx))
	case <-time.After(negotiationTimeout):
		sp.Fail("Peer connection timed out")
		return transfer.NewError("connect to peer", context.DeadlineExceeded)
	}

	view.Start()
	start := time.Now()
	var total int64
	var sendErr error
	for _, info := range infos {
		i := view.AddFile(info.Name, info.Size)
		current.Lock()
		idx = i
		current.Unlock()
		view.Status("Sending %s", info.Name)

		if err := sendFile(runCtx, sender, info); err != nil {
			if cause := context.Cause(runCtx); cause != nil && errors.Is(err, runCtx.Err()) {
				err = transfer.NewFileError("send", info.Name, cause)
			}
			view.Fail(i, err)
			sendErr = err
			break
		}
		view.Done(i)
		total += info.Size
	}

	if sendErr == nil {
		view.Status("Waiting for receiver to finish...")
		sendErr = awaitFlush(runCtx, ch)
	}
	view.Stop()

	if sendErr != nil {
		return sendErr
	}
	ui.RenderSummary(ui.Stdout, "Send Summary", ui.TransferSummary{
		Status:   "Complete",
		Files:    len(infos),
		Total:    total,
		Duration: time.Since(start),
	})
	return nil
}

// senderEvents closes opened once the channel opens and aborts the sender
// when the channel closes or fails.
func senderEvents(sender *transfer.Sender, opened chan struct{}, cancel context.CancelCauseFunc, log *zap.Logger) webrtc.Events {
	var openOnce sync.Once
	return webrtc.Events{
		OnOpen: func() { openOnce.Do(func() { close(opened) }) },
		OnClose: func() {
			sender.Abort(transfer.ErrConnectionLost)
			cancel(transfer.ErrConnectionLost)
		},
		OnError: func(err error) {
			log.Warn("data channel error", zap.Error(err))
			cause := errors.Join(transfer.ErrConnectionLost, err)
			sender.Abort(cause)
			cancel(cause)
		},
	}
}

func sendFile(ctx context.Context, sender *transfer.Sender, info files.FileInfo) error {
	f, err := os.Open(info.Path)
	if err != nil {
		return transfer.NewFileError("open", info.Name, err)
	}
	defer f.Close()

	if err := sender.Begin(info.Metadata(), f); err != nil {
		return err
	}
	return sender.Run(ctx)
}

// awaitFlush waits for the channel buffer to empty and then for closeGrace.
func awaitFlush(ctx context.Context, ch transfer.Channel) error {
	deadline := time.Now().Add(flushTimeout)
	for ch.BufferedAmount() > 0 {
		if time.Now().After(deadline) {
			return transfer.NewError("flush", transfer.ErrDrainStalled)
		}
		select {
		case <-ctx.Done():
			return transfer.NewError("flush", context.Cause(ctx))
		case <-time.After(flushPoll):
		}
	}

	select {
	case <-ctx.Done():
	case <-time.After(closeGrace):
	}
	return nil
}
