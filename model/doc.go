// Package model defines the reasoner boundary: a single-step interface the
// runner drives in a loop. Each step receives the full conversation state and
// returns text plus any tool calls; provider adapters for Anthropic and
// OpenAI live in subpackages, and a scripted mock supports deterministic
// tests.
package model
