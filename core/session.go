package core

import (
	"sync"
	"time"
)

// Session is the conversational container for one continuous run of the
// orchestrator. It owns the message history plus mutable key/value state and
// is safe for concurrent access. Sessions are explicitly constructed and
// passed, never ambient, so multiple sessions can run in the same process
// without interference.
//
// Contract:
//   - State and history mutations update the Updated timestamp
//   - History returns a defensive copy to avoid external mutation
//   - Clone performs deep copies of maps/slices for safe divergence
type Session struct {
	ID       string            `json:"id"`
	WorkDir  string            `json:"work_dir"`
	State    map[string]any    `json:"state"`
	Messages []Message         `json:"messages"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Metadata map[string]string `json:"metadata"`
	mu       sync.RWMutex
}

// NewSession creates a new session rooted at the given working directory.
func NewSession(id, workDir string) *Session {
	now := time.Now()
	return &Session{ID: id, WorkDir: workDir, State: map[string]any{}, Messages: []Message{}, Created: now, Updated: now, Metadata: map[string]string{}}
}

// GetState returns the value and existence flag for a state key.
func (s *Session) GetState(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.State[key]
	return v, ok
}

// SetState sets a key/value pair in session state updating the Updated timestamp.
func (s *Session) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State[key] = value
	s.Updated = time.Now()
}

// AddMessage appends a message to the history updating the Updated timestamp.
func (s *Session) AddMessage(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Messages = append(s.Messages, m)
	s.Updated = time.Now()
}

// History returns a defensive copy of the full message slice.
func (s *Session) History() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]Message, len(s.Messages))
	copy(msgs, s.Messages)
	return msgs
}

// Clone returns a deep copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, WorkDir: s.WorkDir, State: make(map[string]any, len(s.State)), Messages: make([]Message, len(s.Messages)), Created: s.Created, Updated: s.Updated, Metadata: make(map[string]string, len(s.Metadata))}
	for k, v := range s.State {
		clone.State[k] = v
	}
	copy(clone.Messages, s.Messages)
	for k, v := range s.Metadata {
		clone.Metadata[k] = v
	}
	return clone
}
