package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for the runtime's failure taxonomy. Typed errors below wrap
// these so callers can branch with errors.Is while still receiving context.
var (
	// ErrSandboxUnavailable is returned for any operation routed to a sandbox
	// binding that is not in the ready state. Operations are never silently
	// downgraded to local execution.
	ErrSandboxUnavailable = errors.New("sandbox unavailable")

	// ErrEditNotFound is returned when an edit's match string does not occur
	// in the target resource.
	ErrEditNotFound = errors.New("edit match not found")

	// ErrEditAmbiguous is returned when an edit's match string occurs more
	// than once in the target resource.
	ErrEditAmbiguous = errors.New("edit match is ambiguous")
)

// AttachError reports a failed attach to an explicitly requested sandbox
// instance. Attach failures are surfaced, never converted into a fresh
// create, since the caller's intent to reuse instance state would otherwise
// be silently violated.
type AttachError struct {
	Provider   string
	InstanceID string
	Err        error
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("attach to %s instance %q failed: %v", e.Provider, e.InstanceID, e.Err)
}

func (e *AttachError) Unwrap() error { return e.Err }

// SetupScriptError reports a setup script that exited nonzero. The owning
// binding transitions to failed and rejects all further operations.
type SetupScriptError struct {
	Script   string
	ExitCode int
	Output   string
}

func (e *SetupScriptError) Error() string {
	return fmt.Sprintf("setup script %q exited with code %d", e.Script, e.ExitCode)
}

// EditError reports an edit_file operation that matched zero or multiple
// times. The target resource is left unmodified.
type EditError struct {
	Path    string
	Matches int
}

func (e *EditError) Error() string {
	if e.Matches == 0 {
		return fmt.Sprintf("edit of %s: match string not found", e.Path)
	}
	return fmt.Sprintf("edit of %s: match string occurs %d times, expected exactly one", e.Path, e.Matches)
}

// Unwrap maps the match count onto the corresponding sentinel so callers can
// use errors.Is(err, ErrEditNotFound) / errors.Is(err, ErrEditAmbiguous).
func (e *EditError) Unwrap() error {
	if e.Matches == 0 {
		return ErrEditNotFound
	}
	return ErrEditAmbiguous
}

// SubagentError is the structured failure result of a dispatched subagent.
// It is caught at the dispatcher boundary and returned to the parent as
// data; it never propagates as a fault that crashes the parent turn.
type SubagentError struct {
	TaskID  string
	Message string
}

func (e *SubagentError) Error() string {
	return fmt.Sprintf("subagent task %s failed: %s", e.TaskID, e.Message)
}
