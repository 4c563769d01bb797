package core

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a conversational message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a tool invocation request surfaced by the reasoner. Unified
// across providers so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"` // JSON object of arguments
}

// ToolResult is the outcome of one executed tool call, fed back to the
// reasoner as conversational context. Failures are reported as data
// (IsError + Content), never as faults that abort the turn.
type ToolResult struct {
	CallID  string `json:"call_id"` // matches the originating ToolCall ID
	Name    string `json:"name"`
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Descriptor advertises a callable tool to the reasoner: name, natural
// language description and a JSON schema for its arguments.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Message is one record in a session's conversation history. Content carries
// plain text; assistant messages may additionally carry tool calls, and tool
// messages carry the matching results.
type Message struct {
	Role        string       `json:"role"`
	Content     string       `json:"content,omitempty"`
	ToolCalls   []ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []ToolResult `json:"tool_results,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// NewUserMessage creates a user-authored text message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text, Timestamp: time.Now().UTC()}
}

// NewAssistantMessage creates an assistant message carrying text and any tool
// calls emitted alongside it.
func NewAssistantMessage(text string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls, Timestamp: time.Now().UTC()}
}

// NewToolMessage creates a tool-role message carrying results for previously
// emitted tool calls.
func NewToolMessage(results []ToolResult) Message {
	return Message{Role: RoleTool, ToolResults: results, Timestamp: time.Now().UTC()}
}
