// Package core provides the foundational domain types, interfaces and
// execution contexts used by the deepagents runtime. It defines the core
// abstractions for:
//
//   - Sessions (stateful conversational containers with message history)
//   - Messages (user / assistant / tool records with tool call payloads)
//   - ToolContext (scoped execution context handed to tool implementations)
//   - Pluggable stores for persistent memory, skills and todo state
//   - The shared error taxonomy for sandbox, edit and subagent failures
//
// The package intentionally keeps implementation concerns (filesystem
// backends, sandbox routing, concrete tools) out of scope, exposing small
// interfaces to enable custom backends and extensions.
package core
