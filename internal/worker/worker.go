package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/OSchengdu/swissK-agent/internal/llm/providers/ollama"
	"github.com/OSchengdu/swissK-agent/internal/observability"
	"github.com/OSchengdu/swissK-agent/internal/router"
	"github.com/OSchengdu/swissK-agent/internal/stream"
	"github.com/OSchengdu/swissK-agent/internal/task"
)

// ErrClosed is returned by Enqueue after the handle was closed.
var ErrClosed = errors.New("worker closed")

// State is the worker's coarse lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateDispatching
	StateAwaiting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	case StateAwaiting:
		return "awaiting"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Generator opens a streaming generation for one prompt.
type Generator interface {
	Generate(ctx context.Context, model, prompt string) (*stream.Lines, error)
}

// AgentRunner handles agent-mode prompts and always returns a result string.
type AgentRunner interface {
	Run(ctx context.Context, prompt string) string
}

// StoppedResult answers tasks still queued when the worker's context ends.
const StoppedResult = task.ErrorPrefix + "worker stopped"

// Observer sees every decoded stream event together with the task it belongs to.
// It runs on the worker goroutine.
type Observer func(t task.Task, ev stream.Event)

// Options wires a worker's collaborators.
type Options struct {
	Router    router.Router
	Generator Generator
	Agent     AgentRunner
	Metrics   *observability.Metrics
	Logger    *zap.Logger
	Observer  Observer
}

// Handle is the foreground side of a running worker. Enqueue and TryResult
// never block.
type Handle struct {
	in      *Queue[task.Task]
	metrics *observability.Metrics
	out     *Queue[string]
	state   *atomic.Int32
	done    chan struct{}
}

type worker struct {
	opts  Options
	in    *Queue[task.Task]
	out   *Queue[string]
	state *atomic.Int32
}

// Start launches a worker goroutine. It processes tasks one at a time in
// submission order and emits exactly one result per task. It stops after
// Close once every queued task has been answered, or when ctx is cancelled.
// Cancelling ctx does not abort a request already in flight.
func Start(ctx context.Context, opts Options) *Handle {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	opts.Router = router.New(opts.Router.Models)

	w := &worker{
		opts:  opts,
		in:    NewQueue[task.Task](),
		out:   NewQueue[string](),
		state: new(atomic.Int32),
	}
	h := &Handle{in: w.in, metrics: opts.Metrics, out: w.out, state: w.state, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		w.loop(ctx)
	}()
	return h
}

// Enqueue submits a prompt under mode and returns the task that was queued.
func (h *Handle) Enqueue(prompt string, mode task.Mode) (task.Task, error) {
	t := task.New(prompt, mode)
	return t, h.Submit(t)
}

// Submit queues a prepared task. It returns ErrClosed after Close or once
// the worker has stopped.
func (h *Handle) Submit(t task.Task) error {
	h.metrics.QueueDelta(1)
	if !h.in.Push(t) {
		h.metrics.QueueDelta(-1)
		return ErrClosed
	}
	return nil
}

// TryResult returns the next result if one is ready.
func (h *Handle) TryResult() (string, bool) {
	return h.out.TryPop()
}

// Receive blocks for the next result. It returns false when the worker has
// stopped with nothing left to deliver, or when ctx is done.
func (h *Handle) Receive(ctx context.Context) (string, bool) {
	return h.out.Pop(ctx)
}

// Pending returns the number of tasks not yet picked up.
func (h *Handle) Pending() int {
	return h.in.Len()
}

// State reports what the worker is doing right now.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Close stops accepting tasks. Queued tasks are still answered.
func (h *Handle) Close() {
	h.in.Close()
}

// Done is closed once the worker goroutine has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

func (w *worker) loop(ctx context.Context) {
	defer w.out.Close()
	defer w.setState(StateStopped)

	for {
		t, ok := w.in.Pop(ctx)
		if !ok {
			w.stop()
			return
		}
		w.opts.Metrics.QueueDelta(-1)
		w.out.Push(w.handle(ctx, t))
	}
}

// stop refuses further tasks and answers any still queued with
// StoppedResult, so every accepted task gets exactly one result.
func (w *worker) stop() {
	w.in.Close()
	for {
		t, ok := w.in.TryPop()
		if !ok {
			return
		}
		w.opts.Metrics.QueueDelta(-1)
		w.opts.Logger.Debug("task dropped on shutdown", zap.String("task_id", t.ID))
		w.out.Push(StoppedResult)
	}
}

func (w *worker) setState(s State) {
	w.state.Store(int32(s))
}

func (w *worker) handle(ctx context.Context, t task.Task) string {
	started := time.Now()
	logger := w.opts.Logger.With(zap.String("task_id", t.ID), zap.String("mode", t.Mode.String()))

	result, outcome := w.process(context.WithoutCancel(ctx), t, logger)
	w.setState(StateIdle)

	w.opts.Metrics.RecordTask(t.Mode.String(), outcome, time.Since(started))
	logger.Debug("task finished", zap.String("outcome", outcome), zap.Duration("elapsed", time.Since(started)))
	return result
}

func (w *worker) process(ctx context.Context, t task.Task, logger *zap.Logger) (result, outcome string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", zap.Any("panic", r))
			result, outcome = fmt.Sprintf("%sinternal failure: %v", task.ErrorPrefix, r), "panic"
		}
	}()

	w.setState(StateDispatching)
	d := w.opts.Router.Route(t.Mode, t.Prompt)

	switch d.Kind {
	case router.Immediate:
		return d.Message, "immediate"
	case router.Agent:
		if w.opts.Agent == nil {
			return task.ErrorPrefix + "agent is not configured", "error"
		}
		w.setState(StateAwaiting)
		res := w.opts.Agent.Run(ctx, d.Prompt)
		return res, outcomeOf(res)
	default:
		if w.opts.Generator == nil {
			return task.ErrorPrefix + "generator is not configured", "error"
		}
		w.setState(StateAwaiting)
		return w.generate(ctx, t, d, logger)
	}
}

func (w *worker) generate(ctx context.Context, t task.Task, d router.Decision, logger *zap.Logger) (string, string) {
	lines, err := w.opts.Generator.Generate(ctx, d.Model, d.Prompt)
	if err != nil {
		logger.Warn("generation request failed", zap.String("model", d.Model), zap.Error(err))
		res := failureResult(err)
		return res, outcomeOf(res)
	}
	defer lines.Close()

	var dec stream.Decoder
	if obs := w.opts.Observer; obs != nil {
		dec.Observer = func(ev stream.Event) { obs(t, ev) }
	}
	res := dec.Decode(lines)
	w.opts.Metrics.AddChunks(t.Mode.String(), res.Chunks)
	if n := lines.Skipped(); n > 0 {
		logger.Warn("oversized stream lines skipped", zap.Int("lines", n))
	}
	if !res.Failed {
		if err := lines.Err(); err != nil {
			logger.Warn("generation stream interrupted", zap.Int("chunks", res.Chunks), zap.Error(err))
			return task.RequestErrorPrefix + err.Error(), "request_error"
		}
	}
	return res.Text, outcomeOf(res.Text)
}

// failureResult renders a transport failure as a result string.
func failureResult(err error) string {
	var se *ollama.StatusError
	if errors.As(err, &se) {
		return task.HTTPErrorPrefix + se.Error()
	}
	return task.RequestErrorPrefix + err.Error()
}

func outcomeOf(result string) string {
	switch {
	case strings.HasPrefix(result, task.HTTPErrorPrefix):
		return "http_error"
	case strings.HasPrefix(result, task.RequestErrorPrefix):
		return "request_error"
	case task.IsFailure(result):
		return "error"
	default:
		return "ok"
	}
}
