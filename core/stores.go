package core

import "context"

// MemoryStore provides persistent memory documents merged into reasoning
// context at turn start. Snapshot concatenates project-scope documents before
// user-scope documents in a deterministic order; Commit applies a
// single-occurrence edit through the filesystem adapter and takes effect
// starting the next turn's snapshot.
type MemoryStore interface {
	Snapshot(ctx context.Context) (string, error)
	Commit(ctx context.Context, path, match, replacement string) error
}

// SkillScope identifies where a skill entry was discovered.
type SkillScope string

const (
	// SkillScopeProject marks skills under the working directory. Project
	// entries take precedence over user entries of the same name.
	SkillScopeProject SkillScope = "project"
	// SkillScopeUser marks skills under the user's home directory.
	SkillScopeUser SkillScope = "user"
)

// SkillEntry is one catalog row surfaced to the reasoner. Full instructions
// are fetched lazily via Resolve, never eagerly loaded.
type SkillEntry struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	Scope       SkillScope `json:"scope"`
}

// SkillIndex catalogs available capability documents. List is computed once
// per session; Resolve fetches a skill's full text on demand.
type SkillIndex interface {
	List() []SkillEntry
	Resolve(ctx context.Context, name string) (string, error)
}

// TodoStatus is the lifecycle state of a single todo item.
type TodoStatus string

const (
	// TodoPending marks work not yet started.
	TodoPending TodoStatus = "pending"
	// TodoInProgress marks work currently underway. By convention at most
	// one item is in_progress at a time; this is not enforced.
	TodoInProgress TodoStatus = "in_progress"
	// TodoCompleted marks finished work.
	TodoCompleted TodoStatus = "completed"
)

// TodoItem is one entry in the session's work list.
type TodoItem struct {
	Description string     `json:"description"`
	Status      TodoStatus `json:"status"`
}

// TodoTracker holds the ordered work list. Replace swaps the entire list as
// a value; no per-item identity survives across calls.
type TodoTracker interface {
	Replace(items []TodoItem)
	Current() []TodoItem
}
