package cli

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OSchengdu/swissK-agent/internal/llm/configbuilder"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	var ping bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Endpoint: %s (timeout %s)\n", cfg.Endpoint.BaseURL, cfg.Endpoint.Timeout)
			fmt.Fprintf(out, "Models: text=%s image=%s rag=%s\n", cfg.Models.Text, cfg.Models.Image, cfg.Models.Rag)
			fmt.Fprintf(out, "Agent: provider=%s model=%s max_steps=%d\n", cfg.Agent.Provider, cfg.Agent.Model, cfg.Agent.MaxSteps)
			reg, err := configbuilder.BuildRegistryFromConfig(cfg, zap.NewNop())
			if err != nil {
				return fmt.Errorf("agent routes: %w", err)
			}
			for _, route := range reg.Models() {
				fmt.Fprintf(out, "Agent route: %s\n", route)
			}
			fmt.Fprintf(out, "Session: %s, history store: %s, metrics: %v\n", cfg.Session.Name, cfg.Session.Store, cfg.Server.MetricsEnabled)

			if !ping {
				return nil
			}
			if err := pingEndpoint(cmd.Context(), cfg.Endpoint.BaseURL); err != nil {
				return fmt.Errorf("endpoint unreachable: %w", err)
			}
			fmt.Fprintln(out, "Endpoint reachable.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&ping, "ping", false, "Also check that the endpoint answers")
	return cmd
}

func pingEndpoint(ctx context.Context, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %s", resp.Status)
	}
	return nil
}
