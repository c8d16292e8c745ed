package session

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/OSchengdu/swissK-agent/internal/history"
	"github.com/OSchengdu/swissK-agent/internal/router"
	"github.com/OSchengdu/swissK-agent/internal/task"
)

var (
	// ErrBlank is returned when submitting whitespace-only input.
	ErrBlank = errors.New("input is blank")
	// ErrBusy is returned when a previous submission has no result yet.
	ErrBusy = errors.New("still waiting for the previous answer")
)

const (
	// DefaultName is the session used when none is configured.
	DefaultName = "default"
	// Placeholder is shown as the output of an exchange still in flight.
	Placeholder = "..."
	// QuotePrefix introduces a quote request: "quote:N".
	QuotePrefix = "quote:"
	// QuotedPrefix marks input that was expanded from a quote.
	QuotedPrefix = "(quoted) "
)

// Worker is the part of a worker handle the controller needs.
type Worker interface {
	Enqueue(prompt string, mode task.Mode) (task.Task, error)
	TryResult() (string, bool)
}

// Message is one exchange shown to the user.
type Message struct {
	Input  string
	Output string
	Mode   task.Mode
}

// Options configures a Controller.
type Options struct {
	Name   string
	Mode   task.Mode
	Store  history.Store
	Logger *zap.Logger
}

// Controller holds the foreground state of a chat session. It is driven from
// a single goroutine and is not safe for concurrent use.
type Controller struct {
	worker Worker
	store  history.Store
	logger *zap.Logger

	name      string
	mode      task.Mode
	history   []Message
	waiting   bool
	ragLoaded bool
}

// New returns a controller submitting to w.
func New(w Worker, opts Options) *Controller {
	if opts.Store == nil {
		opts.Store = history.NopStore{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Controller{
		worker: w,
		store:  opts.Store,
		logger: opts.Logger,
		mode:   opts.Mode,
	}
	c.SetSession(opts.Name)
	return c
}

func (c *Controller) Mode() task.Mode { return c.mode }

// CycleMode advances to the next mode and returns it.
func (c *Controller) CycleMode() task.Mode {
	c.mode = c.mode.Next()
	return c.mode
}

func (c *Controller) SetMode(m task.Mode) { c.mode = m }

func (c *Controller) Name() string { return c.name }

// SetSession switches to another session name and returns it. A blank name
// selects DefaultName; path separators become underscores.
func (c *Controller) SetSession(name string) string {
	name = history.SafeName(strings.TrimSpace(name))
	if name == "" {
		name = DefaultName
	}
	c.name = name
	return name
}

// Load replaces the visible history with the last n stored exchanges of the
// current session. It does nothing while a submission is in flight.
func (c *Controller) Load(ctx context.Context, n int) error {
	if c.waiting {
		return ErrBusy
	}
	entries, err := c.store.Recent(ctx, c.name, n)
	if err != nil {
		return err
	}
	c.history = c.history[:0]
	for _, e := range entries {
		c.history = append(c.history, Message{Input: e.Input, Output: e.Output, Mode: e.Mode})
	}
	return nil
}

func (c *Controller) Waiting() bool { return c.waiting }

func (c *Controller) RagLoaded() bool { return c.ragLoaded }

// History returns a copy of the exchanges, oldest first.
func (c *Controller) History() []Message {
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// Last returns the most recent exchange.
func (c *Controller) Last() (Message, bool) {
	if len(c.history) == 0 {
		return Message{}, false
	}
	return c.history[len(c.history)-1], true
}

// Submit enqueues input under the current mode and appends a placeholder
// exchange. Only one submission may be outstanding.
func (c *Controller) Submit(input string) error {
	if strings.TrimSpace(input) == "" {
		return ErrBlank
	}
	if c.waiting {
		return ErrBusy
	}
	if _, err := c.worker.Enqueue(input, c.mode); err != nil {
		return err
	}
	if strings.HasPrefix(input, router.RagLoadPrefix) {
		c.ragLoaded = true
	}
	c.waiting = true
	c.history = append(c.history, Message{Input: input, Output: Placeholder, Mode: c.mode})
	return nil
}

// Poll collects a ready result without blocking. The result replaces the
// placeholder of the latest exchange and is persisted best effort.
func (c *Controller) Poll(ctx context.Context) (string, bool) {
	res, ok := c.worker.TryResult()
	if !ok {
		return "", false
	}
	c.waiting = false
	if len(c.history) == 0 {
		c.history = append(c.history, Message{Mode: c.mode})
	}
	last := &c.history[len(c.history)-1]
	last.Output = res

	err := c.store.Append(ctx, history.Entry{Session: c.name, Input: last.Input, Output: res, Mode: last.Mode})
	if err != nil {
		c.logger.Warn("persist exchange", zap.String("session", c.name), zap.Error(err))
	}
	return res, true
}

// Quote returns the output of the n-th most recent exchange, 1-based.
func (c *Controller) Quote(n int) (string, bool) {
	if n <= 0 || n > len(c.history) {
		return "", false
	}
	return c.history[len(c.history)-n].Output, true
}

// ExpandQuote rewrites "quote:N" into the quoted output. It reports false
// when input is not a resolvable quote request.
func (c *Controller) ExpandQuote(input string) (string, bool) {
	if !strings.HasPrefix(input, QuotePrefix) {
		return input, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(input[len(QuotePrefix):]))
	if err != nil {
		return input, false
	}
	out, ok := c.Quote(n)
	if !ok {
		return input, false
	}
	return QuotedPrefix + out, true
}
