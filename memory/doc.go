// Package memory implements the persistent memory store: markdown documents
// under a project root and a user root, merged into reasoning context at turn
// start. Documents are read and edited through the fsys Backend, so memory
// follows the session into a sandbox when one is active. Snapshots are cached
// and invalidated by commits and, optionally, by filesystem watch events.
package memory
