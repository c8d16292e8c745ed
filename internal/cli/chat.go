package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OSchengdu/swissK-agent/internal/history"
	"github.com/OSchengdu/swissK-agent/internal/llm/configbuilder"
	"github.com/OSchengdu/swissK-agent/internal/session"
	"github.com/OSchengdu/swissK-agent/internal/task"
	"github.com/OSchengdu/swissK-agent/internal/tui"
	"github.com/OSchengdu/swissK-agent/internal/worker"
)

// NewChatCmd starts the interactive terminal UI.
func NewChatCmd(opts *Options) *cobra.Command {
	var (
		sessionName string
		modeName    string
		historySize int
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if sessionName != "" {
				cfg.Session.Name = sessionName
			}
			if modeName != "" {
				cfg.Session.DefaultMode = modeName
			}
			mode, err := task.ParseMode(cfg.Session.DefaultMode)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg, true)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort

			store, err := history.Open(cfg.Session)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			defer store.Close()

			wopts, err := configbuilder.WorkerOptions(cfg, logger, nil)
			if err != nil {
				return err
			}
			handle := worker.Start(cmd.Context(), wopts)
			defer handle.Close()

			ctrl := session.New(handle, session.Options{
				Name:   cfg.Session.Name,
				Mode:   mode,
				Store:  store,
				Logger: logger,
			})
			if err := ctrl.Load(cmd.Context(), historySize); err != nil {
				logger.Warn("load history", zap.String("session", ctrl.Name()), zap.Error(err))
			}

			model := tui.New(ctrl, tui.Options{PollInterval: cfg.UI.PollInterval, HistoryLimit: historySize})
			logger.Info("chat started", zap.String("session", ctrl.Name()), zap.String("mode", mode.String()))
			_, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}

	cmd.Flags().StringVar(&sessionName, "session", "", "Session name (overrides session.name)")
	cmd.Flags().StringVar(&modeName, "mode", "", "Starting mode: text, image, rag or agent")
	cmd.Flags().IntVar(&historySize, "history", 50, "Stored exchanges to load for the session")
	return cmd
}
