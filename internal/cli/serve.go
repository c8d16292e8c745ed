package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/OSchengdu/swissK-agent/internal/daemon"
)

// NewServeCmd runs the task daemon.
func NewServeCmd(opts *Options) *cobra.Command {
	var addr, transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the task daemon (NDJSON and Connect transports)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if transport != "" {
				cfg.Server.Transport = transport
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := newLogger(cfg, false)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			server, err := daemon.NewServer(cfg, logger)
			if err != nil {
				return err
			}
			return server.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().StringVar(&transport, "transport", "", "connect or ndjson (overrides server.transport)")
	return cmd
}
