package router

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/OSchengdu/swissK-agent/internal/task"
)

func TestRouteText(t *testing.T) {
	d := Route(task.ModeText, "2+2")
	require.Equal(t, Decision{Kind: Dispatch, Model: "qwen3:8b", Prompt: "2+2"}, d)
}

func TestRouteImage(t *testing.T) {
	for i := 0; i < 3; i++ {
		require.Equal(t, Decision{Kind: Immediate, Message: "Image mode: use 'image:/path'"}, Route(task.ModeImage, "foo"))
		require.Equal(t, Decision{Kind: Dispatch, Model: "qwen-vl:8b", Prompt: "image:/x.png"}, Route(task.ModeImage, "image:/x.png"))
	}
}

func TestRouteRag(t *testing.T) {
	require.Equal(t, Decision{Kind: Immediate, Message: "RAG doc loaded (simulated)."}, Route(task.ModeRag, "rag:load doc.pdf"))
	require.Equal(t, Decision{Kind: Dispatch, Model: "qwen3:8b", Prompt: "[RAG] what is in it"}, Route(task.ModeRag, "what is in it"))
	// "rag:load" without the trailing space is an ordinary query.
	require.Equal(t, Dispatch, Route(task.ModeRag, "rag:load").Kind)
}

func TestRouteAgent(t *testing.T) {
	require.Equal(t, Decision{Kind: Agent, Prompt: "compute 3*7"}, Route(task.ModeAgent, "compute 3*7"))
}

func TestRouterUsesConfiguredModels(t *testing.T) {
	r := New(Models{Text: "llama3", Image: "llava"})
	require.Equal(t, "llama3", r.Route(task.ModeText, "hi").Model)
	require.Equal(t, "llava", r.Route(task.ModeImage, "image:/a.png").Model)
	require.Equal(t, DefaultRagModel, r.Route(task.ModeRag, "q").Model)
}

func TestKindString(t *testing.T) {
	require.Equal(t, "immediate", Immediate.String())
	require.Equal(t, "dispatch", Dispatch.String())
	require.Equal(t, "agent", Agent.String())
}
