package command

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BioHazard786/beamshare/internal/files"
	"github.com/BioHazard786/beamshare/internal/signaling"
	"github.com/BioHazard786/beamshare/internal/transfer"
	"github.com/BioHazard786/beamshare/internal/ui"
	"github.com/BioHazard786/beamshare/internal/webrtc"
)

func newReceiveCommand(opts *globalOptions) *cobra.Command {
	var (
		dir     string
		zipMode bool
	)

	cmd := &cobra.Command{
		Use:     "receive <room-code|url>",
		Aliases: []string{"r"},
		Short:   "Receive files from a sender",
		Long: `Join a sender's room and save the files it sends.

Examples:
  beamshare receive 482913
  beamshare receive https://beamshare.app/r/482913
  beamshare receive brave-otter-ramen --dir ~/Downloads`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roomID, err := parseRoomInput(args[0])
			if err != nil {
				return err
			}
			return runReceive(cmd.Context(), opts, roomID, dir, zipMode)
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "Directory to save received files")
	cmd.Flags().BoolVarP(&zipMode, "zip", "z", false, "Bundle received files into one zip archive")
	return cmd
}

func runReceive(ctx context.Context, opts *globalOptions, roomID, dir string, zipMode bool) error {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return transfer.NewError("resolve output directory", err)
	}

	cfg, err := opts.load()
	if err != nil {
		return err
	}
	log := opts.logger()

	saveDir := dir
	if zipMode {
		tmp, err := os.MkdirTemp("", "beamshare-receive-*")
		if err != nil {
			return transfer.NewError("create temp dir", err)
		}
		defer os.RemoveAll(tmp)
		saveDir = tmp
	}

	sp := ui.NewConnectionSpinner(ui.Stdout, "Connecting to server...")
	sp.Start()
	s, err := connect(ctx, cfg, log)
	sp.Stop()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.client.SendMessage(&signaling.Message{
		Type:       signaling.TypeJoin,
		RoomID:     roomID,
		ClientType: signaling.ClientTypeCLI,
	}); err != nil {
		return transfer.NewError("join room", err)
	}
	if _, err := await(ctx, s, "join room", s.handler.RoleAssigned); err != nil {
		return err
	}
	ui.PrintSuccessf("Joined room %s", roomID)

	sp = ui.NewWaitingSpinner(ui.Stdout, "Waiting for sender...")
	sp.Start()
	offer, err := await(ctx, s, "wait for sender", s.handler.Signal)
	if err != nil {
		sp.Fail("Sender did not connect")
		return err
	}
	if offer.Payload.Type != signaling.SignalOffer {
		sp.Fail("Sender did not connect")
		return transfer.WrapError("wait for sender", ErrUnexpectedOffer, offer.Payload.Type)
	}
	sp.Success(fmt.Sprintf("Sender connected (%s)", offer.ClientType))

	sum, err := receiveFromPeer(ctx, s, offer, saveDir)
	if err != nil {
		return err
	}

	if zipMode && sum.Files > 0 {
		target, err := bundle(saveDir, dir)
		if err != nil {
			return err
		}
		sum.Location = target
	}
	ui.RenderSummary(ui.Stdout, "Receive Summary", sum)
	return nil
}

// bundle zips everything in saveDir into a timestamped archive in dir.
func bundle(saveDir, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", transfer.NewError("create output dir", err)
	}
	target := files.UniqueFilename(filepath.Join(dir, fmt.Sprintf("beamshare-download-%d.zip", time.Now().UnixMilli())))

	sp := ui.NewWaitingSpinner(ui.Stdout, "Zipping files...")
	sp.Start()
	if err := files.ZipDirectory(saveDir, target); err != nil {
		sp.Fail("Zipping failed")
		return "", transfer.NewError("zip files", err)
	}
	sp.Success(fmt.Sprintf("Files zipped to %s", target))
	return target, nil
}

// receiveTally collects the outcome of every file in one session.
type receiveTally struct {
	mu       sync.Mutex
	current  int
	started  time.Time
	finished time.Time
	files    int
	bytes    int64
	lastErr  error
}

func (t *receiveTally) begin(idx int, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = idx
	if t.started.IsZero() {
		t.started = now
	}
}

func (t *receiveTally) index() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *receiveTally) complete(a *transfer.Artifact) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files++
	t.bytes += a.Size
	t.finished = a.ReceivedAt
}

func (t *receiveTally) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastErr = err
}

func (t *receiveTally) summary(dir string) (ui.TransferSummary, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	status := "Complete"
	if t.lastErr != nil {
		status = "Incomplete"
	}
	sum := ui.TransferSummary{
		Status:   status,
		Files:    t.files,
		Total:    t.bytes,
		Location: dir,
	}
	if !t.finished.IsZero() {
		sum.Duration = t.finished.Sub(t.started)
	}
	if t.files == 0 && t.lastErr != nil {
		return sum, t.lastErr
	}
	return sum, nil
}

func receiveFromPeer(ctx context.Context, s *session, offer *signaling.SignalEvent, dir string) (ui.TransferSummary, error) {
	l, err := newLink(s, offer.From)
	if err != nil {
		return ui.TransferSummary{}, err
	}
	defer l.Close()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	view := ui.NewTransferUI(
		ui.NewTransferModel(ui.ModeReceive).OnCancel(func() { cancel(context.Canceled) }),
		ui.Stdout,
	)
	tally := &receiveTally{current: -1}

	receiver := transfer.NewReceiver(webrtc.SelectCodec(offer.ClientType), transfer.ReceiverConfig{
		NewAssembler: files.NewDiskFactory(dir),
		OnMetadata: func(m transfer.Metadata) {
			tally.begin(view.AddFile(m.Name, m.Size), time.Now())
			view.Status("Receiving %s", m.Name)
		},
		OnProgress: func(p transfer.Progress) {
			view.Progress(tally.index(), p)
		},
		OnComplete: func(a *transfer.Artifact) {
			tally.complete(a)
			view.Done(tally.index())
			view.Status("Saved %s", filepath.Base(a.Path))
			s.log.Debug("file received", zap.String("path", a.Path), zap.Int64("size", a.Size))
		},
		OnFault: func(err error) {
			tally.fail(err)
			view.Fail(tally.index(), err)
			s.log.Warn("receive fault", zap.Error(err))
		},
		OnText: func(text string) {
			s.log.Info("peer message", zap.String("text", text))
		},
	})

	opened := make(chan struct{})
	var openOnce sync.Once
	l.pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() != webrtc.ChannelLabel {
			s.log.Debug("ignoring data channel", zap.String("label", dc.Label()))
			return
		}
		ch := webrtc.NewDataChannel(dc)
		ch.BindReceiver(receiver, cancel)
		dc.OnOpen(func() {
			receiver.Open()
			openOnce.Do(func() { close(opened) })
		})
	})

	if err := l.neg.Apply(offer.Payload); err != nil {
		return ui.TransferSummary{}, err
	}
	go l.relay(runCtx, s)
	go l.watch(runCtx, s, cancel)

	sp := ui.NewConnectionSpinner(ui.Stdout, "Establishing peer connection...")
	sp.Start()
	select {
	case <-opened:
		sp.Success("Peer connection established")
	case <-runCtx.Done():
		sp.Fail("Peer connection failed")
		return ui.TransferSummary{}, transfer.NewError("connect to peer", context.Cause(runCtx))
	case <-time.After(negotiationTimeout):
		sp.Fail("Peer connection timed out")
		return ui.TransferSummary{}, transfer.NewError("connect to peer", context.DeadlineExceeded)
	}

	view.Start()
	view.Status("Waiting for files...")
	<-runCtx.Done()
	view.Stop()

	cause := context.Cause(runCtx)
	if errors.Is(cause, context.Canceled) && ctx.Err() == nil {
		ui.PrintWarning("Transfer cancelled")
	}

	return tally.summary(dir)
}

// parseRoomInput accepts a bare room code or a room link.
func parseRoomInput(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("room code cannot be empty")
	}
	if strings.Contains(input, "://") || strings.Contains(input, "/") {
		return roomIDFromURL(input)
	}
	return input, nil
}

func roomIDFromURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", transfer.NewError("parse URL", err)
	}

	parts := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
	for i, part := range parts {
		if part == "r" && i+1 < len(parts) && parts[i+1] != "" {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("could not extract room code from URL: %s", raw)
}
