package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Request captures the normalized model input produced by the policy and the
// dispatcher: one system prompt and a single user turn.
type Request struct {
	SystemPrompt string `json:"system_prompt"`
	Content      string `json:"content"`
	// Temperature is passed through when non-nil; providers use their default otherwise.
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"max_output_tokens,omitempty"`
	// SessionID partitions provider-side caching and memory per agent.
	SessionID string `json:"session_id,omitempty"`
	Stream    bool   `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"`
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "gemini", "mock"
}

// Model is the minimal interface required to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrEmptyResponse is returned by Complete when the model finished without text.
var ErrEmptyResponse = errors.New("model returned no text")

// Float returns a pointer to f, convenient for Request.Temperature.
func Float(f float64) *float64 { return &f }

// Send delivers r on out unless ctx ends first. It reports whether r was
// delivered; a producer must stop sending once it returns false.
func Send(ctx context.Context, out chan<- Response, r Response) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// Complete drains Generate and returns the final text. Partial chunks are
// concatenated when the provider never emits a final response.
func Complete(ctx context.Context, m Model, req Request) (string, error) {
	respCh, errCh := m.Generate(ctx, req)

	var (
		partial strings.Builder
		final   *Response
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partial.WriteString(r.Text)
				continue
			}
			rc := r
			final = &rc
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", err
			}
		}
	}

	text := partial.String()
	if final != nil {
		text = final.Text
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// Responses are matched by substring against the request content in
// registration order; Errors are matched the same way and take precedence.
type MockModel struct {
	info     Info
	mu       sync.Mutex
	rules    []mockRule
	fallback string
	requests []Request
}

type mockRule struct {
	match    string
	response string
	err      error
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: provider}}
}

// AddResponse registers a canned completion for requests whose system prompt
// or content contains match.
func (m *MockModel) AddResponse(match, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{match: match, response: response})
}

// AddError registers a failure for requests whose system prompt or content contains match.
func (m *MockModel) AddError(match string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{match: match, err: err})
}

// SetFallback sets the response used when no rule matches. When empty, the
// mock echoes the request content.
func (m *MockModel) SetFallback(response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = response
}

// Requests returns a copy of all requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockModel) resolve(req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	for _, r := range m.rules {
		if r.err == nil {
			continue
		}
		if strings.Contains(req.SystemPrompt, r.match) || strings.Contains(req.Content, r.match) {
			return "", r.err
		}
	}
	for _, r := range m.rules {
		if r.err != nil {
			continue
		}
		if strings.Contains(req.SystemPrompt, r.match) || strings.Contains(req.Content, r.match) {
			return r.response, nil
		}
	}
	if m.fallback != "" {
		return m.fallback, nil
	}
	return fmt.Sprintf("Mock response to: %s", req.Content), nil
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)
		if req.Content == "" {
			errCh <- fmt.Errorf("no content provided")
			return
		}
		full, err := m.resolve(req)
		if err != nil {
			errCh <- err
			return
		}
		if req.Stream {
			for _, r := range full {
				if !Send(ctx, respCh, Response{Partial: true, Text: string(r)}) {
					errCh <- ctx.Err()
					return
				}
			}
		}
		if !Send(ctx, respCh, Response{Text: full, FinishReason: "stop"}) {
			errCh <- ctx.Err()
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
