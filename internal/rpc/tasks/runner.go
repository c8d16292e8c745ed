package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/OSchengdu/swissK-agent/internal/rpc"
	"github.com/OSchengdu/swissK-agent/internal/task"
	"github.com/OSchengdu/swissK-agent/internal/worker"
)

// Runner starts a worker dedicated to one daemon request.
type Runner interface {
	Start(ctx context.Context, observer worker.Observer) *worker.Handle
}

// WorkerRunner starts workers sharing one set of collaborators.
type WorkerRunner struct {
	Options worker.Options
}

// Start launches a worker that reports stream events to observer.
func (r WorkerRunner) Start(ctx context.Context, observer worker.Observer) *worker.Handle {
	opts := r.Options
	opts.Observer = observer
	return worker.Start(ctx, opts)
}

// newTask validates req and turns it into a task, filling missing ids.
func newTask(req *rpc.TaskRequest, sessionID string) (task.Task, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return task.Task{}, fmt.Errorf("prompt is required")
	}
	mode, err := task.ParseMode(req.Mode)
	if err != nil {
		return task.Task{}, err
	}
	if req.SessionID == "" {
		req.SessionID = sessionID
	}
	if req.CorrelationID == "" {
		req.CorrelationID = uuid.NewString()
	}
	return task.Task{ID: req.CorrelationID, Prompt: req.Prompt, Mode: mode}, nil
}

func newSessionID() string {
	return "session-" + uuid.NewString()
}

func chunkEvent(sessionID string, t task.Task, token string, step int) rpc.TaskEvent {
	return rpc.TaskEvent{
		Type:          rpc.EventChunk,
		SessionID:     sessionID,
		CorrelationID: t.ID,
		Mode:          t.Mode.String(),
		Token:         token,
		Step:          step,
	}
}

func resultEvent(sessionID string, t task.Task, result string) rpc.TaskEvent {
	return rpc.TaskEvent{
		Type:          rpc.EventResult,
		SessionID:     sessionID,
		CorrelationID: t.ID,
		Mode:          t.Mode.String(),
		Result:        result,
		Failed:        task.IsFailure(result),
	}
}
