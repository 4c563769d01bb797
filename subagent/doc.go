// Package subagent dispatches isolated child reasoning tasks. A dispatcher
// hands each task to an injected runner that executes a fresh reasoner loop
// to completion; the child's failures, panics included, are converted into
// failure results at the dispatch boundary and never tear down the parent.
package subagent
