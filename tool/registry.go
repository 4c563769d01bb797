package tool

import (
	"fmt"
	"sort"
	"sync"

	"github.com/paasplatform/deepagents/core"
)

// Registry is the closed dispatch table for tools. The runner resolves every
// tool call against it; a name that is not registered is an execution error
// surfaced to the reasoner, never a silent no-op.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get looks a tool up by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns advertisement shapes for every registered tool, sorted
// by name for deterministic request construction.
func (r *Registry) Descriptors() []core.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Descriptor(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Subset returns a new registry restricted to the named tools. Unknown names
// are skipped; an empty names list returns the full registry.
func (r *Registry) Subset(names []string) *Registry {
	if len(names) == 0 {
		return r
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub := &Registry{tools: make(map[string]Tool, len(names))}
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			sub.tools[name] = t
		}
	}
	return sub
}

// Without returns a new registry excluding the named tools.
func (r *Registry) Without(names ...string) *Registry {
	excluded := make(map[string]struct{}, len(names))
	for _, n := range names {
		excluded[n] = struct{}{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub := &Registry{tools: make(map[string]Tool, len(r.tools))}
	for name, t := range r.tools {
		if _, skip := excluded[name]; !skip {
			sub.tools[name] = t
		}
	}
	return sub
}
