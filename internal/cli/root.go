package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OSchengdu/swissK-agent/internal/config"
	"github.com/OSchengdu/swissK-agent/internal/logging"
	"github.com/OSchengdu/swissK-agent/internal/version"
)

// Options holds global CLI options.
type Options struct {
	ConfigPath string
	LogLevel   string
}

// NewRootCmd constructs the base CLI command tree. Without a subcommand it
// starts the interactive chat.
func NewRootCmd() *cobra.Command {
	opts := &Options{}

	chat := NewChatCmd(opts)
	cmd := &cobra.Command{
		Use:           version.Name,
		Short:         "swissk – terminal client for a local Ollama endpoint",
		Version:       version.Full(),
		Args:          cobra.NoArgs,
		RunE:          chat.RunE,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.Flags().AddFlagSet(chat.Flags())

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "Path to config file (default: ./config.yaml, ./configs/config.yaml or ~/.swissk/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level")

	cmd.AddCommand(chat)
	cmd.AddCommand(NewAskCmd(opts))
	cmd.AddCommand(NewRunCmd(opts))
	cmd.AddCommand(NewServeCmd(opts))
	cmd.AddCommand(NewDoctorCmd(opts))
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig wraps config loading with shared options.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	return cfg, nil
}

// newLogger builds the configured logger. toFile forces file output so that
// terminal frontends stay clean.
func newLogger(cfg *config.Config, toFile bool) (*zap.Logger, error) {
	file := ""
	if toFile {
		file = cfg.Logging.File
	}
	logger, err := logging.New(cfg.Logging, file)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
