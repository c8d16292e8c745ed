package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/OSchengdu/swissK-agent/internal/llm/providers/ollama"
	"github.com/OSchengdu/swissK-agent/internal/observability"
	"github.com/OSchengdu/swissK-agent/internal/router"
	"github.com/OSchengdu/swissK-agent/internal/stream"
	"github.com/OSchengdu/swissK-agent/internal/task"
)

// echoServer answers every generation with the prompt split into two chunks.
func echoServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		var body struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/x-ndjson")
		fmt.Fprintf(w, "{\"response\":\"%s\"}\n", body.Model+"|")
		fmt.Fprintf(w, "{\"response\":%q}\n", body.Prompt+"  ")
		fmt.Fprint(w, "{\"done\":true}\n")
	}))
	t.Cleanup(srv.Close)
	return srv
}

func receive(t *testing.T, h *Handle) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, ok := h.Receive(ctx)
	require.True(t, ok, "expected a result")
	return res
}

func TestResultsArriveInSubmissionOrder(t *testing.T) {
	srv := echoServer(t, nil)
	h := Start(context.Background(), Options{Generator: ollama.NewProvider("ollama", srv.URL, 0)})
	defer h.Close()

	const n = 20
	for i := 0; i < n; i++ {
		_, err := h.Enqueue(fmt.Sprintf("p%d", i), task.ModeText)
		require.NoError(t, err)
	}
	for i := 0; i < n; i++ {
		require.Equal(t, fmt.Sprintf("%s|p%d", router.DefaultTextModel, i), receive(t, h))
	}
}

func TestModesRouteAndImmediateSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	srv := echoServer(t, &calls)
	h := Start(context.Background(), Options{
		Router:    router.New(router.Models{Text: "t", Image: "v", Rag: "r"}),
		Generator: ollama.NewProvider("ollama", srv.URL, 0),
	})
	defer h.Close()

	inputs := []struct {
		prompt string
		mode   task.Mode
		want   string
	}{
		{"hello", task.ModeImage, router.ImageUsageMessage},
		{"rag:load notes.md", task.ModeRag, router.RagLoadedMessage},
		{"image:/tmp/cat.png", task.ModeImage, "v|image:/tmp/cat.png"},
		{"what is x", task.ModeRag, "r|[RAG] what is x"},
		{"hi", task.ModeText, "t|hi"},
	}
	for _, in := range inputs {
		_, err := h.Enqueue(in.prompt, in.mode)
		require.NoError(t, err)
	}
	for _, in := range inputs {
		require.Equal(t, in.want, receive(t, h))
	}
	require.EqualValues(t, 3, calls.Load())
}

func TestHTTPErrorResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := Start(context.Background(), Options{Generator: ollama.NewProvider("ollama", srv.URL, 0)})
	defer h.Close()

	_, err := h.Enqueue("hi", task.ModeText)
	require.NoError(t, err)
	require.Equal(t, "HTTP Error: 500 Internal Server Error", receive(t, h))
}

func TestRequestErrorWhenEndpointUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h := Start(context.Background(), Options{Generator: ollama.NewProvider("ollama", url, time.Second)})
	defer h.Close()

	_, err := h.Enqueue("hi", task.ModeText)
	require.NoError(t, err)
	res := receive(t, h)
	require.True(t, strings.HasPrefix(res, task.RequestErrorPrefix), res)

	// the worker keeps serving after a failure
	_, err = h.Enqueue("image please", task.ModeImage)
	require.NoError(t, err)
	require.Equal(t, router.ImageUsageMessage, receive(t, h))
}

func TestUpstreamErrorDiscardsPartialText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "{\"response\":\"partial \"}\n{\"error\":\"model crashed\"}\n{\"response\":\"ignored\"}\n")
	}))
	defer srv.Close()

	h := Start(context.Background(), Options{Generator: ollama.NewProvider("ollama", srv.URL, 0)})
	defer h.Close()

	_, err := h.Enqueue("hi", task.ModeText)
	require.NoError(t, err)
	require.Equal(t, "Error: model crashed", receive(t, h))
}

type fakeGenerator struct {
	body string
	err  error
}

func (f fakeGenerator) Generate(ctx context.Context, model, prompt string) (*stream.Lines, error) {
	if f.err != nil {
		return nil, f.err
	}
	return stream.NewLines(io.NopCloser(strings.NewReader(f.body))), nil
}

type brokenReader struct{ sent bool }

func (b *brokenReader) Read(p []byte) (int, error) {
	if !b.sent {
		b.sent = true
		return copy(p, "{\"response\":\"half\"}\n"), nil
	}
	return 0, io.ErrUnexpectedEOF
}

type brokenGenerator struct{}

func (brokenGenerator) Generate(ctx context.Context, model, prompt string) (*stream.Lines, error) {
	return stream.NewLines(io.NopCloser(&brokenReader{})), nil
}

func TestInterruptedStreamIsRequestError(t *testing.T) {
	h := Start(context.Background(), Options{Generator: brokenGenerator{}})
	defer h.Close()

	_, err := h.Enqueue("hi", task.ModeText)
	require.NoError(t, err)
	require.Equal(t, "Request Error: unexpected EOF", receive(t, h))
}

func TestStreamWithoutDoneKeepsText(t *testing.T) {
	h := Start(context.Background(), Options{Generator: fakeGenerator{body: "{\"response\":\" a\"}\nnot json\n{\"response\":\"b \"}\n"}})
	defer h.Close()

	_, err := h.Enqueue("hi", task.ModeText)
	require.NoError(t, err)
	require.Equal(t, "ab", receive(t, h))
}

func TestOversizedFragmentIsSkipped(t *testing.T) {
	huge := `{"response":"` + strings.Repeat("z", stream.MaxLineBytes) + `"}`
	body := "{\"response\":\"kept\"}\n" + huge + "\n{\"done\":true}\n"
	h := Start(context.Background(), Options{Generator: fakeGenerator{body: body}})
	defer h.Close()

	_, err := h.Enqueue("hi", task.ModeText)
	require.NoError(t, err)
	require.Equal(t, "kept", receive(t, h))
}

type agentFunc func(ctx context.Context, prompt string) string

func (f agentFunc) Run(ctx context.Context, prompt string) string { return f(ctx, prompt) }

func TestAgentModeUsesRunner(t *testing.T) {
	h := Start(context.Background(), Options{
		Generator: fakeGenerator{err: io.EOF},
		Agent:     agentFunc(func(_ context.Context, p string) string { return "agent:" + p }),
	})
	defer h.Close()

	_, err := h.Enqueue("plan", task.ModeAgent)
	require.NoError(t, err)
	require.Equal(t, "agent:plan", receive(t, h))
}

func TestAgentPanicBecomesErrorResult(t *testing.T) {
	h := Start(context.Background(), Options{
		Agent: agentFunc(func(context.Context, string) string { panic("kaboom") }),
	})
	defer h.Close()

	_, err := h.Enqueue("x", task.ModeAgent)
	require.NoError(t, err)
	res := receive(t, h)
	require.True(t, strings.HasPrefix(res, task.ErrorPrefix))
	require.Contains(t, res, "kaboom")
}

func TestMissingAgentIsErrorResult(t *testing.T) {
	h := Start(context.Background(), Options{})
	defer h.Close()

	_, err := h.Enqueue("x", task.ModeAgent)
	require.NoError(t, err)
	require.Equal(t, "Error: agent is not configured", receive(t, h))
}

func TestCloseDrainsQueueAndStops(t *testing.T) {
	gate := make(chan struct{})
	var once sync.Once
	h := Start(context.Background(), Options{
		Agent: agentFunc(func(_ context.Context, p string) string {
			once.Do(func() { <-gate })
			return p
		}),
	})

	for _, p := range []string{"a", "b", "c"} {
		_, err := h.Enqueue(p, task.ModeAgent)
		require.NoError(t, err)
	}
	h.Close()
	_, err := h.Enqueue("late", task.ModeAgent)
	require.ErrorIs(t, err, ErrClosed)
	close(gate)

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	require.Equal(t, StateStopped, h.State())

	var got []string
	for {
		res, ok := h.TryResult()
		if !ok {
			break
		}
		got = append(got, res)
	}
	require.Equal(t, []string{"a", "b", "c"}, got)

	_, ok := h.Receive(context.Background())
	require.False(t, ok)
}

func TestTryResultDoesNotBlock(t *testing.T) {
	h := Start(context.Background(), Options{})
	defer h.Close()

	_, ok := h.TryResult()
	require.False(t, ok)
	require.Equal(t, 0, h.Pending())
}

func TestCancelledContextDoesNotAbortInFlightTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	h := Start(ctx, Options{
		Agent: agentFunc(func(c context.Context, p string) string {
			close(started)
			<-release
			if c.Err() != nil {
				return "cancelled"
			}
			return "finished"
		}),
	})

	_, err := h.Enqueue("x", task.ModeAgent)
	require.NoError(t, err)
	<-started
	cancel()
	close(release)

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	res, ok := h.TryResult()
	require.True(t, ok)
	require.Equal(t, "finished", res)
}

func TestCancelledWorkerRejectsNewTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := Start(ctx, Options{})
	cancel()

	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	_, err := h.Enqueue("hi", task.ModeText)
	require.ErrorIs(t, err, ErrClosed)
	_, ok := h.Receive(context.Background())
	require.False(t, ok)
}

func TestCancelledWorkerAnswersEveryAcceptedTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h := Start(ctx, Options{
		Agent: agentFunc(func(_ context.Context, p string) string {
			once.Do(func() {
				close(started)
				<-release
			})
			return p
		}),
	})

	accepted := 0
	for _, p := range []string{"a", "b", "c"} {
		if _, err := h.Enqueue(p, task.ModeAgent); err == nil {
			accepted++
		}
	}
	<-started
	cancel()
	close(release)
	<-h.Done()

	got := 0
	for {
		if _, ok := h.TryResult(); !ok {
			break
		}
		got++
	}
	require.Equal(t, accepted, got)
	_, err := h.Enqueue("late", task.ModeAgent)
	require.ErrorIs(t, err, ErrClosed)
}

func TestStopDrainsWithStoppedResult(t *testing.T) {
	w := &worker{
		opts: Options{Logger: zap.NewNop()},
		in:   NewQueue[task.Task](),
		out:  NewQueue[string](),
	}
	w.in.Push(task.New("a", task.ModeText))
	w.in.Push(task.New("b", task.ModeText))
	w.stop()

	require.False(t, w.in.Push(task.New("c", task.ModeText)))
	for i := 0; i < 2; i++ {
		res, ok := w.out.TryPop()
		require.True(t, ok)
		require.Equal(t, StoppedResult, res)
	}
	_, ok := w.out.TryPop()
	require.False(t, ok)
}

func TestQueueDepthGaugeTracksPending(t *testing.T) {
	m := observability.NewMetrics()
	release := make(chan struct{})
	var once sync.Once
	h := Start(context.Background(), Options{
		Metrics: m,
		Agent: agentFunc(func(_ context.Context, p string) string {
			once.Do(func() { <-release })
			return p
		}),
	})
	defer h.Close()

	for _, p := range []string{"a", "b", "c"} {
		_, err := h.Enqueue(p, task.ModeAgent)
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return h.State() == StateAwaiting }, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, 2, h.Pending())
	require.Equal(t, float64(h.Pending()), testutil.ToFloat64(m.QueueDepth))

	close(release)
	for _, want := range []string{"a", "b", "c"} {
		require.Equal(t, want, receive(t, h))
	}
	require.Equal(t, 0, h.Pending())
	require.Equal(t, float64(0), testutil.ToFloat64(m.QueueDepth))
}

func TestStateTransitions(t *testing.T) {
	release := make(chan struct{})
	h := Start(context.Background(), Options{
		Agent: agentFunc(func(_ context.Context, p string) string {
			<-release
			return p
		}),
	})
	require.Equal(t, StateIdle, h.State())

	_, err := h.Enqueue("x", task.ModeAgent)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return h.State() == StateAwaiting }, 5*time.Second, 5*time.Millisecond)

	close(release)
	require.Equal(t, "x", receive(t, h))
	require.Eventually(t, func() bool { return h.State() == StateIdle }, 5*time.Second, 5*time.Millisecond)

	_, err = h.Enqueue("hello", task.ModeImage)
	require.NoError(t, err)
	require.Equal(t, router.ImageUsageMessage, receive(t, h))
	require.Eventually(t, func() bool { return h.State() == StateIdle }, 5*time.Second, 5*time.Millisecond)

	h.Close()
	<-h.Done()
	require.Equal(t, StateStopped, h.State())
}

func TestMetricsAndObserver(t *testing.T) {
	m := observability.NewMetrics()
	var events []stream.Kind
	h := Start(context.Background(), Options{
		Generator: fakeGenerator{body: "{\"response\":\"a\"}\n{\"response\":\"b\",\"done\":true}\n"},
		Metrics:   m,
		Observer: func(tk task.Task, ev stream.Event) {
			require.Equal(t, "hi", tk.Prompt)
			events = append(events, ev.Kind)
		},
	})

	_, err := h.Enqueue("hi", task.ModeText)
	require.NoError(t, err)
	require.Equal(t, "ab", receive(t, h))
	h.Close()
	<-h.Done()

	require.Equal(t, []stream.Kind{stream.TextChunk, stream.TextChunk, stream.Done}, events)
	require.Equal(t, float64(2), testutil.ToFloat64(m.StreamChunks.WithLabelValues("text")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.Tasks.WithLabelValues("text", "ok")))
}

func TestFailureResult(t *testing.T) {
	require.Equal(t, "HTTP Error: 404 Not Found", failureResult(fmt.Errorf("wrapped: %w", &ollama.StatusError{Code: 404, Status: "404 Not Found"})))
	require.Equal(t, "Request Error: dial tcp: refused", failureResult(fmt.Errorf("dial tcp: refused")))
}

func TestOutcomeOf(t *testing.T) {
	require.Equal(t, "http_error", outcomeOf("HTTP Error: 500"))
	require.Equal(t, "request_error", outcomeOf("Request Error: x"))
	require.Equal(t, "error", outcomeOf("Error: x"))
	require.Equal(t, "ok", outcomeOf("fine"))
}
