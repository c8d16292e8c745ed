package daemon

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/OSchengdu/swissK-agent/internal/config"
	"github.com/OSchengdu/swissK-agent/internal/rpc"
	taskrpc "github.com/OSchengdu/swissK-agent/internal/rpc/tasks"
	"github.com/OSchengdu/swissK-agent/internal/stream"
	"github.com/OSchengdu/swissK-agent/internal/worker"
)

type staticGenerator struct{ body string }

func (g staticGenerator) Generate(context.Context, string, string) (*stream.Lines, error) {
	return stream.NewLines(io.NopCloser(strings.NewReader(g.body))), nil
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *Server {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	runner := taskrpc.WorkerRunner{Options: worker.Options{
		Generator: staticGenerator{body: `{"response":"pong","done":true}` + "\n"},
	}}
	return NewServerWithRunner(cfg, nil, runner, nil)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"ok"`)
}

func TestTaskEndpointAndMetrics(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.Transport = "ndjson" })
	h := s.Handler()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/task", strings.NewReader(`{"prompt":"ping"}`)))
	require.Equal(t, http.StatusOK, rr.Code)

	var last rpc.TaskEvent
	var result string
	for _, line := range strings.Split(strings.TrimSpace(rr.Body.String()), "\n") {
		require.NoError(t, json.Unmarshal([]byte(line), &last))
		if last.Type == rpc.EventResult {
			result = last.Result
		}
	}
	require.Equal(t, "pong", result)
	require.Equal(t, rpc.EventDone, last.Type)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "swissk_tasks_total")
}

func TestMetricsDisabled(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Server.MetricsEnabled = false })
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
}

func TestToolsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tools", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "calc")
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("cannot open listener in sandbox: %v", err)
	}
	s := newTestServer(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
