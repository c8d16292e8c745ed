package tasks

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/OSchengdu/swissK-agent/internal/observability"
	"github.com/OSchengdu/swissK-agent/internal/rpc"
	"github.com/OSchengdu/swissK-agent/internal/stream"
	"github.com/OSchengdu/swissK-agent/internal/task"
)

// Handler answers one task per request and streams NDJSON events.
type Handler struct {
	runner  Runner
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewHandler constructs a handler instance.
func NewHandler(runner Runner, metrics *observability.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{runner: runner, metrics: metrics, logger: logger}
}

// ServeHTTP handles POST /task: chunk events while the answer streams in, one
// result event, then done.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.metrics.RecordTransportError("ndjson", "method_not_allowed")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.metrics.IncActiveSessions("ndjson")
	defer h.metrics.DecActiveSessions("ndjson")

	var req rpc.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.RecordTransportError("ndjson", "decode")
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}
	t, err := newTask(&req, newSessionID())
	if err != nil {
		h.metrics.RecordTransportError("ndjson", "invalid_task")
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)

	out := &eventWriter{w: bufio.NewWriter(w), flusher: flusher}
	defer out.close()

	step := 0
	handle := h.runner.Start(r.Context(), func(tk task.Task, ev stream.Event) {
		if ev.Kind != stream.TextChunk {
			return
		}
		step++
		out.write(chunkEvent(req.SessionID, tk, ev.Text, step))
	})
	defer handle.Close()

	if err := handle.Submit(t); err != nil {
		out.write(rpc.TaskEvent{Type: rpc.EventError, SessionID: req.SessionID, CorrelationID: t.ID, Error: err.Error()})
		return
	}

	result, ok := handle.Receive(r.Context())
	if !ok {
		h.metrics.RecordTransportError("ndjson", "client_gone")
		h.logger.Debug("client left before result", zap.String("correlation_id", t.ID))
		return
	}
	out.write(resultEvent(req.SessionID, t, result))
	out.write(rpc.TaskEvent{Type: rpc.EventDone, SessionID: req.SessionID, CorrelationID: t.ID, Done: true})
}

// eventWriter serialises events onto the response. Writes after close are
// dropped, since the worker may still be finishing after the handler returns.
type eventWriter struct {
	mu      sync.Mutex
	w       *bufio.Writer
	flusher http.Flusher
	closed  bool
	err     error
}

func (e *eventWriter) write(ev rpc.TaskEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.err != nil {
		return
	}
	if e.err = json.NewEncoder(e.w).Encode(ev); e.err != nil {
		return
	}
	if e.err = e.w.Flush(); e.err != nil {
		return
	}
	e.flusher.Flush()
}

func (e *eventWriter) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}
