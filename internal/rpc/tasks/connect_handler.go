package tasks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/bufbuild/connect-go"
	"go.uber.org/zap"

	"github.com/OSchengdu/swissK-agent/internal/observability"
	"github.com/OSchengdu/swissK-agent/internal/rpc"
	"github.com/OSchengdu/swissK-agent/internal/rpc/connectjson"
	"github.com/OSchengdu/swissK-agent/internal/stream"
	"github.com/OSchengdu/swissK-agent/internal/task"
	"github.com/OSchengdu/swissK-agent/internal/worker"
)

const ConnectRunTaskProcedure = "/swissk.task.v1.TaskService/RunTask"

// NewConnectHandler builds a Connect bidi stream handler for RunTask. One
// stream is one session: tasks sent on it are answered in order.
func NewConnectHandler(runner Runner, metrics *observability.Metrics, logger *zap.Logger) (string, http.Handler) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &connectRunHandler{runner: runner, metrics: metrics, logger: logger}
	return ConnectRunTaskProcedure, connect.NewBidiStreamHandler(ConnectRunTaskProcedure, h.handle, connect.WithCodec(connectjson.Codec{}))
}

type connectRunHandler struct {
	runner  Runner
	metrics *observability.Metrics
	logger  *zap.Logger
}

type streamSession struct {
	mu     sync.Mutex
	id     string
	stream *connect.BidiStream[rpc.TaskStreamRequest, rpc.TaskEvent]
	step   int
}

func (s *streamSession) send(ev rpc.TaskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.Send(&ev)
}

func (s *streamSession) sessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

func (s *streamSession) adopt(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" {
		s.id = id
		if s.id == "" {
			s.id = newSessionID()
		}
	}
	return s.id
}

func (h *connectRunHandler) handle(ctx context.Context, st *connect.BidiStream[rpc.TaskStreamRequest, rpc.TaskEvent]) error {
	h.metrics.IncActiveSessions("connect")
	defer h.metrics.DecActiveSessions("connect")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess := &streamSession{stream: st}
	handle := h.runner.Start(ctx, func(t task.Task, ev stream.Event) {
		if ev.Kind != stream.TextChunk {
			return
		}
		sess.step++
		if err := sess.send(chunkEvent(sess.sessionID(), t, ev.Text, sess.step)); err != nil {
			h.logger.Debug("drop chunk", zap.String("correlation_id", t.ID), zap.Error(err))
		}
	})
	defer handle.Close()

	// Submitted tasks in order, so each result can be paired with its task.
	pending := worker.NewQueue[task.Task]()

	var (
		recvErr  error
		recvDone = make(chan struct{})
	)
	go func() {
		defer close(recvDone)
		defer handle.Close()
		for {
			msg, err := st.Receive()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					h.metrics.RecordTransportError("connect", "receive_stream")
				}
				cancel()
				return
			}
			if msg == nil {
				continue
			}
			if msg.Task != nil {
				id := sess.adopt(firstNonEmpty(msg.SessionID, msg.Task.SessionID))
				t, err := newTask(msg.Task, id)
				if err != nil {
					h.metrics.RecordTransportError("connect", "invalid_task")
					recvErr = connect.NewError(connect.CodeInvalidArgument, err)
					cancel()
					return
				}
				pending.Push(t)
				if err := handle.Submit(t); err != nil {
					return
				}
			}
			if msg.Close {
				return
			}
		}
	}()

	for {
		result, ok := handle.Receive(ctx)
		if !ok {
			break
		}
		t, _ := pending.TryPop()
		if err := sess.send(resultEvent(sess.sessionID(), t, result)); err != nil {
			h.metrics.RecordTransportError("connect", "send")
			return err
		}
	}

	<-recvDone
	if recvErr != nil {
		return recvErr
	}
	if err := ctx.Err(); err != nil {
		return connect.NewError(connect.CodeCanceled, err)
	}
	return sess.send(rpc.TaskEvent{Type: rpc.EventDone, SessionID: sess.sessionID(), Done: true})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
