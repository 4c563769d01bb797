package core

import (
	"context"
	"fmt"

	"github.com/paasplatform/deepagents/logging"
)

// ToolContext provides a constrained, auditable surface for tool
// implementations invoked during a turn. It correlates the invocation with
// its session, turn and originating tool call.
type ToolContext struct {
	ctx     context.Context
	session *Session
	turnID  string
	callID  string

	*loggerAdapter
}

// NewToolContext constructs a tool context bound to a session, turn and
// unique tool call identifier.
func NewToolContext(ctx context.Context, sess *Session, turnID, callID string, logger logging.Logger) *ToolContext {
	return &ToolContext{
		ctx:           ctx,
		session:       sess,
		turnID:        turnID,
		callID:        callID,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Context returns the cancellation context associated with the invocation.
func (tc *ToolContext) Context() context.Context { return tc.ctx }

// Session returns the owning session.
func (tc *ToolContext) Session() *Session { return tc.session }

// SessionID returns the session ID associated with the invocation.
func (tc *ToolContext) SessionID() string {
	if tc.session == nil {
		return ""
	}
	return tc.session.ID
}

// TurnID returns the turn ID associated with the invocation.
func (tc *ToolContext) TurnID() string { return tc.turnID }

// CallID returns the tool call ID associated with the invocation.
func (tc *ToolContext) CallID() string { return tc.callID }

// Logger returns the logger associated with the invocation.
func (tc *ToolContext) Logger() logging.Logger { return tc.loggerAdapter.Logger() }

// Validate performs a structural sanity check of the context.
func (tc *ToolContext) Validate() error {
	if tc.ctx == nil || tc.session == nil || tc.callID == "" {
		return fmt.Errorf("invalid ToolContext")
	}
	return nil
}
