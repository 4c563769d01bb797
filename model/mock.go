package model

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a scripted in-memory Reasoner for tests. Steps are returned in the
// order they were enqueued; an exhausted script fails the call so a runaway
// loop surfaces as a test failure instead of a hang.
type Mock struct {
	mu    sync.Mutex
	steps []Step
	// Requests records a copy of every request for assertions.
	Requests []Request
}

var _ Reasoner = (*Mock)(nil)

// NewMock constructs an empty scripted reasoner.
func NewMock(steps ...Step) *Mock {
	return &Mock{steps: steps}
}

// Enqueue appends steps to the script.
func (m *Mock) Enqueue(steps ...Step) *Mock {
	m.mu.Lock()
	m.steps = append(m.steps, steps...)
	m.mu.Unlock()
	return m
}

// Next implements Reasoner.
func (m *Mock) Next(ctx context.Context, req Request) (*Step, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	if len(m.steps) == 0 {
		return nil, fmt.Errorf("mock reasoner script exhausted after %d steps", len(m.Requests)-1)
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	return &step, nil
}

// Info implements Reasoner.
func (m *Mock) Info() Info {
	return Info{Name: "mock", Provider: "mock", SupportsTools: true}
}
