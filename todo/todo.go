// Package todo implements the session work list: an ordered set of items the
// reasoner replaces wholesale each time it reorganizes its plan. Items carry
// no identity across replacements; the list is rendered into turn context.
package todo

import (
	"fmt"
	"strings"
	"sync"

	"github.com/paasplatform/deepagents/core"
)

// Tracker is a concurrency-safe core.TodoTracker.
type Tracker struct {
	mu    sync.RWMutex
	items []core.TodoItem
}

var _ core.TodoTracker = (*Tracker)(nil)

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Replace implements core.TodoTracker. The incoming slice is copied; later
// mutation by the caller does not affect the tracker.
func (t *Tracker) Replace(items []core.TodoItem) {
	cp := make([]core.TodoItem, len(items))
	copy(cp, items)
	t.mu.Lock()
	t.items = cp
	t.mu.Unlock()
}

// Current implements core.TodoTracker. The returned slice is a copy.
func (t *Tracker) Current() []core.TodoItem {
	t.mu.RLock()
	defer t.mu.RUnlock()
	cp := make([]core.TodoItem, len(t.items))
	copy(cp, t.items)
	return cp
}

// Render produces the checklist form of the current list for inclusion in
// reasoning context. An empty list renders as an empty string.
func (t *Tracker) Render() string {
	items := t.Current()
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Current work list:\n")
	for i, item := range items {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, item.Status, item.Description)
	}
	return b.String()
}
