package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BioHazard786/beamshare/internal/config"
	"github.com/BioHazard786/beamshare/internal/logging"
	"github.com/BioHazard786/beamshare/internal/server"
	"github.com/BioHazard786/beamshare/internal/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		address    string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "beamshare-server",
		Short:         "Signaling broker for beamshare peers",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(configPath)
			if err != nil {
				return err
			}
			if address != "" {
				cfg.Server.Address = address
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			log, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer log.Sync()

			if log.Core().Enabled(zap.DebugLevel) {
				gin.SetMode(gin.DebugMode)
			} else {
				gin.SetMode(gin.ReleaseMode)
			}

			srv, err := server.New(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("starting beamshare broker",
				zap.String("version", version.Version),
				zap.String("address", cfg.Server.Address),
				zap.String("code_style", cfg.Rooms.CodeStyle))
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the YAML config file")
	cmd.Flags().StringVar(&address, "address", "", "Listen address, overrides server.address")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level, overrides logging.level")
	return cmd
}
