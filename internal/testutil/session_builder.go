package testutil

import (
	"github.com/paasplatform/deepagents/core"
)

// SessionBuilder helps construct sessions with fluent chaining for tests.
// Example:
//
//	sess := NewSessionBuilder("sess-1").State("k","v").User("hi").Build()
type SessionBuilder struct {
	id       string
	workDir  string
	state    map[string]any
	messages []core.Message
}

// NewSessionBuilder creates a new builder for a session with the given id.
// Use chainable methods (WorkDir, State, User, Assistant, Message) then call
// Build.
func NewSessionBuilder(id string) *SessionBuilder {
	return &SessionBuilder{id: id, workDir: "/work", state: map[string]any{}}
}

// WorkDir sets the session working directory (chainable).
func (b *SessionBuilder) WorkDir(dir string) *SessionBuilder {
	b.workDir = dir
	return b
}

// State sets or overwrites a state key/value pair on the resulting session (chainable).
func (b *SessionBuilder) State(key string, val any) *SessionBuilder {
	b.state[key] = val
	return b
}

// User appends a user text message to the history (chainable).
func (b *SessionBuilder) User(text string) *SessionBuilder {
	return b.Message(core.NewUserMessage(text))
}

// Assistant appends an assistant text message to the history (chainable).
func (b *SessionBuilder) Assistant(text string) *SessionBuilder {
	return b.Message(core.NewAssistantMessage(text, nil))
}

// Message appends an arbitrary message to the history (chainable).
func (b *SessionBuilder) Message(m core.Message) *SessionBuilder {
	b.messages = append(b.messages, m)
	return b
}

// Build returns a *core.Session with pre-populated state and history.
func (b *SessionBuilder) Build() *core.Session {
	s := core.NewSession(b.id, b.workDir)

	for k, v := range b.state {
		s.SetState(k, v)
	}
	for _, m := range b.messages {
		s.AddMessage(m)
	}

	return s
}
