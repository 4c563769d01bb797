package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/paasplatform/deepagents/core"
)

// Request captures the normalized reasoner input for one step. The runner
// rebuilds it each iteration from the session's conversation state.
type Request struct {
	System   string            `json:"system"`
	Messages []core.Message    `json:"messages"`
	Tools    []core.Descriptor `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a step.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Step is one reasoner output. A step with no tool calls is a final answer;
// a step with tool calls continues the turn after the calls are executed.
type Step struct {
	Text       string          `json:"text"`
	ToolCalls  []core.ToolCall `json:"tool_calls,omitempty"`
	StopReason string          `json:"stop_reason,omitempty"`
	Usage      *TokenUsage     `json:"usage,omitempty"`
}

// Final reports whether the step ends the turn.
func (s *Step) Final() bool { return len(s.ToolCalls) == 0 }

// Info contains metadata about a reasoner implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "anthropic", "openai", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Reasoner is the minimal interface the runner drives.
type Reasoner interface {
	// Next produces one reasoning step for the given conversation state.
	Next(ctx context.Context, req Request) (*Step, error)

	// Info returns information about the reasoner implementation.
	Info() Info
}

// ParseSpec splits a "provider:model" spec string. A spec without a colon is
// treated as a bare model name with an empty provider.
func ParseSpec(spec string) (provider, name string, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return "", "", fmt.Errorf("empty model spec")
	}
	provider, name, found := strings.Cut(spec, ":")
	if !found {
		return "", spec, nil
	}
	if provider == "" || name == "" {
		return "", "", fmt.Errorf("malformed model spec %q: want provider:model", spec)
	}
	return provider, name, nil
}
