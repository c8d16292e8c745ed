// Package mock provides a scripted llm.Provider for agent tests.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/OSchengdu/swissK-agent/internal/llm"
)

// ErrScriptExhausted is returned once every scripted reply has been used.
var ErrScriptExhausted = errors.New("mock: no scripted reply left")

// Provider answers chat requests from Replies in order, or from ChatFn when
// set. With neither it answers "mock". Every request is recorded.
type Provider struct {
	NameValue string
	Replies   []llm.ChatResponse
	ChatFn    func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error)

	mu       sync.Mutex
	requests []llm.ChatRequest
}

// Reply builds a plain assistant answer.
func Reply(content string) llm.ChatResponse {
	return llm.ChatResponse{Message: llm.ChatMessage{Role: llm.RoleAssistant, Content: content}}
}

// ToolCall builds an assistant turn requesting a single tool call.
func ToolCall(id, name, args string) llm.ChatResponse {
	return llm.ChatResponse{
		Message: llm.ChatMessage{
			Role: llm.RoleAssistant,
			ToolCalls: []llm.ToolCall{{
				ID:       id,
				Type:     "function",
				Function: llm.ToolFunctionCall{Name: name, Arguments: []byte(args)},
			}},
		},
		FinishReason: "tool_calls",
	}
}

func (p *Provider) Name() string {
	if p.NameValue != "" {
		return p.NameValue
	}
	return "mock"
}

func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	p.mu.Lock()
	n := len(p.requests)
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.ChatFn != nil {
		return p.ChatFn(ctx, req)
	}
	if p.Replies != nil {
		if n >= len(p.Replies) {
			return llm.ChatResponse{}, ErrScriptExhausted
		}
		return p.Replies[n], nil
	}
	return Reply("mock"), nil
}

// Requests returns a copy of every request seen so far.
func (p *Provider) Requests() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]llm.ChatRequest(nil), p.requests...)
}
