// Package runner drives the reasoning loop. A Turn snapshots memory, skills
// and the work list once, then alternates reasoner steps with tool execution
// until the reasoner produces a final answer; a step limiter guards against
// runaway tool-call loops. Loop layers the autonomous iteration mode on top:
// fresh context every iteration, the filesystem as the only carry-over.
package runner
