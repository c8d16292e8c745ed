package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OSchengdu/swissK-agent/internal/history"
	"github.com/OSchengdu/swissK-agent/internal/llm/configbuilder"
	"github.com/OSchengdu/swissK-agent/internal/task"
	"github.com/OSchengdu/swissK-agent/internal/worker"
)

// NewAskCmd answers prompts once through a local worker and prints each
// result in order.
func NewAskCmd(opts *Options) *cobra.Command {
	var (
		modeName string
		save     bool
	)

	cmd := &cobra.Command{
		Use:   "ask \"<prompt>\" [more prompts...]",
		Short: "Answer one or more prompts without the interactive UI",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			mode, err := task.ParseMode(modeName)
			if err != nil {
				return err
			}
			for _, a := range args {
				if strings.TrimSpace(a) == "" {
					return fmt.Errorf("prompt cannot be empty")
				}
			}

			logger, err := newLogger(cfg, true)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort

			var store history.Store = history.NopStore{}
			if save {
				if store, err = history.Open(cfg.Session); err != nil {
					return fmt.Errorf("open history: %w", err)
				}
				defer store.Close()
			}

			wopts, err := configbuilder.WorkerOptions(cfg, logger, nil)
			if err != nil {
				return err
			}
			return ask(cmd, worker.Start(cmd.Context(), wopts), store, logger, cfg.Session.Name, mode, args)
		},
	}

	cmd.Flags().StringVar(&modeName, "mode", "text", "Mode: text, image, rag or agent")
	cmd.Flags().BoolVar(&save, "save", false, "Append exchanges to the session history")
	return cmd
}

var errFailedResult = errors.New("one or more prompts failed")

func ask(cmd *cobra.Command, handle *worker.Handle, store history.Store, logger *zap.Logger, sessionName string, mode task.Mode, prompts []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	for _, p := range prompts {
		if _, err := handle.Enqueue(p, mode); err != nil {
			return err
		}
	}
	handle.Close()

	failed := false
	out := cmd.OutOrStdout()
	for i, p := range prompts {
		res, ok := handle.Receive(ctx)
		if !ok {
			return fmt.Errorf("worker stopped after %d of %d results", i, len(prompts))
		}
		if len(prompts) > 1 {
			fmt.Fprintf(out, "[%d] %s\n", i+1, p)
		}
		fmt.Fprintln(out, res)
		if task.IsFailure(res) {
			failed = true
		}
		if err := store.Append(ctx, history.Entry{Session: sessionName, Input: p, Output: res, Mode: mode}); err != nil {
			logger.Warn("persist exchange", zap.String("session", sessionName), zap.Error(err))
		}
	}
	if failed {
		return errFailedResult
	}
	return nil
}
