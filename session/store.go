// Package session provides a volatile registry of sessions keyed by id. The
// runner records each completed run here so transcripts stay inspectable
// after the loop moves on to a fresh context; nothing is persisted across
// process restarts.
package session

import (
	"sort"
	"sync"

	"github.com/paasplatform/deepagents/core"
)

// Store is a process-local session registry safe for concurrent access.
// Sessions are cloned on the way in and out so callers never share mutable
// state through the store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*core.Session)}
}

// Put records a session under its own id, replacing any previous record.
func (s *Store) Put(sess *core.Session) {
	if sess == nil {
		return
	}
	clone := sess.Clone()
	s.mu.Lock()
	s.sessions[clone.ID] = clone
	s.mu.Unlock()
}

// Get returns a clone of the recorded session.
func (s *Store) Get(id string) (*core.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	return sess.Clone(), true
}

// IDs returns the recorded session ids, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Delete removes a recorded session. Unknown ids are a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of recorded sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
