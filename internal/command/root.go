package command

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BioHazard786/beamshare/internal/config"
	"github.com/BioHazard786/beamshare/internal/logging"
	"github.com/BioHazard786/beamshare/internal/transfer"
	"github.com/BioHazard786/beamshare/internal/ui"
	"github.com/BioHazard786/beamshare/internal/version"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	domain   string
	stun     string
	turn     string
	turnUser string
	turnPass string
	relay    bool
	insecure bool

	log *zap.Logger
}

func (o *globalOptions) load() (*config.Client, error) {
	cfg, err := config.LoadClient(config.Options{
		Domain:     o.domain,
		STUNServer: o.stun,
		TURNServer: o.turn,
		TURNUser:   o.turnUser,
		TURNPass:   o.turnPass,
		Insecure:   o.insecure,
		ForceRelay: o.relay,
	})
	if err != nil {
		return nil, transfer.NewError("load config", err)
	}
	if cfg.ForceRelay && cfg.TURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}
	return cfg, nil
}

func (o *globalOptions) logger() *zap.Logger {
	if o.log == nil {
		o.log = logging.ForCLI()
	}
	return o.log
}

// NewRootCommand builds the beamshare command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "beamshare",
		Short: "Peer-to-peer file transfer over WebRTC",
		Long: `Beamshare sends files directly between two devices over a WebRTC data channel.
A broker introduces the peers; file data never passes through it. The other
side can be another beamshare CLI or a browser opening the room link.`,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.domain, "domain", "", "Broker domain (env DOMAIN)")
	flags.StringVar(&opts.stun, "stun", "", "STUN server (env STUN_SERVER)")
	flags.StringVar(&opts.turn, "turn", "", "TURN server (env TURN_SERVER)")
	flags.StringVar(&opts.turnUser, "turn-user", "", "TURN username (env TURN_USERNAME)")
	flags.StringVar(&opts.turnPass, "turn-pass", "", "TURN password (env TURN_PASSWORD)")
	flags.BoolVarP(&opts.relay, "relay", "r", false, "Force relay mode through TURN")
	flags.BoolVar(&opts.insecure, "insecure", false, "Use ws:// and http:// (env INSECURE)")

	root.AddCommand(
		newSendCommand(opts),
		newReceiveCommand(opts),
		newRoomCommand(opts),
	)
	return root
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
