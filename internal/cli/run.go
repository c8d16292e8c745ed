package cli

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/bufbuild/connect-go"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"

	"github.com/OSchengdu/swissK-agent/internal/rpc"
	"github.com/OSchengdu/swissK-agent/internal/rpc/connectjson"
	taskrpc "github.com/OSchengdu/swissK-agent/internal/rpc/tasks"
	"github.com/OSchengdu/swissK-agent/internal/task"
)

// NewRunCmd sends prompts to a running daemon and streams the answers.
func NewRunCmd(opts *Options) *cobra.Command {
	var (
		modeName  string
		sessionID string
		transport string
		addr      string
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "run \"<prompt>\" [more prompts...]",
		Short: "Send prompts to the daemon and stream the answers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if _, err := task.ParseMode(modeName); err != nil {
				return err
			}
			for _, a := range args {
				if strings.TrimSpace(a) == "" {
					return fmt.Errorf("prompt cannot be empty")
				}
			}
			if sessionID == "" {
				sessionID = "cli-" + uuid.NewString()
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if transport == "" {
				transport = cfg.Server.Transport
			}

			reqs := make([]rpc.TaskRequest, 0, len(args))
			for _, a := range args {
				reqs = append(reqs, rpc.TaskRequest{
					SessionID:     sessionID,
					CorrelationID: uuid.NewString(),
					Prompt:        a,
					Mode:          modeName,
				})
			}

			r := &eventRenderer{out: cmd.OutOrStdout(), quiet: quiet}
			baseURL := daemonURL(addr)
			switch strings.ToLower(strings.TrimSpace(transport)) {
			case "ndjson":
				for _, req := range reqs {
					if err := runNDJSON(cmd.Context(), baseURL+"/task", req, r); err != nil {
						return err
					}
				}
			default:
				if err := runConnect(cmd.Context(), baseURL+taskrpc.ConnectRunTaskProcedure, sessionID, reqs, r); err != nil {
					return err
				}
			}
			if r.failed {
				return errFailedResult
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modeName, "mode", "text", "Mode: text, image, rag or agent")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id sent to the daemon")
	cmd.Flags().StringVar(&transport, "transport", "", "connect or ndjson (overrides server.transport)")
	cmd.Flags().StringVar(&addr, "addr", "", "Daemon address (overrides server.addr)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print only final results, not streamed chunks")
	return cmd
}

func daemonURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func runNDJSON(ctx context.Context, url string, reqBody rpc.TaskRequest, r *eventRenderer) error {
	data, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var evt rpc.TaskEvent
		if err := json.Unmarshal(scanner.Bytes(), &evt); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := r.render(evt); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func runConnect(ctx context.Context, url, sessionID string, reqs []rpc.TaskRequest, r *eventRenderer) error {
	client := connect.NewClient[rpc.TaskStreamRequest, rpc.TaskEvent](buildH2CClient(), url, connect.WithCodec(connectjson.Codec{}))
	stream := client.CallBidiStream(ctx)

	for i := range reqs {
		if err := stream.Send(&rpc.TaskStreamRequest{SessionID: sessionID, Task: &reqs[i]}); err != nil {
			return err
		}
	}
	if err := stream.CloseRequest(); err != nil {
		return err
	}

	for {
		evt, err := stream.Receive()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := r.render(*evt); err != nil {
			return err
		}
	}
	return stream.CloseResponse()
}

// eventRenderer prints daemon events as they arrive.
type eventRenderer struct {
	out      io.Writer
	quiet    bool
	inChunks bool
	failed   bool
}

func (r *eventRenderer) render(evt rpc.TaskEvent) error {
	switch evt.Type {
	case rpc.EventChunk:
		if !r.quiet {
			fmt.Fprint(r.out, evt.Token)
			r.inChunks = true
		}
	case rpc.EventResult:
		if r.inChunks {
			fmt.Fprintln(r.out)
			r.inChunks = false
		}
		if evt.Failed {
			r.failed = true
		}
		fmt.Fprintln(r.out, evt.Result)
	case rpc.EventDone:
		if !r.quiet {
			fmt.Fprintln(r.out, "[done]")
		}
	case rpc.EventError:
		return fmt.Errorf("daemon error: %s", evt.Error)
	}
	return nil
}

func buildH2CClient() *http.Client {
	return &http.Client{
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		},
	}
}
