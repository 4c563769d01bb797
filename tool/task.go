package tool

import (
	"fmt"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/subagent"
)

// taskTool dispatches an isolated child task. The child starts from a fresh
// context and returns only its final answer; its intermediate work never
// enters the parent's history.
type taskTool struct {
	dispatcher *subagent.Dispatcher
}

// NewTaskTool constructs the subagent dispatch tool.
func NewTaskTool(dispatcher *subagent.Dispatcher) Tool {
	return &taskTool{dispatcher: dispatcher}
}

func (t *taskTool) Name() string { return "task" }

func (t *taskTool) Description() string {
	return "Delegate a self-contained task to a subagent. The subagent works in isolation and returns a single final answer; include everything it needs in the prompt."
}

func (t *taskTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": map[string]any{"type": "string", "description": "Short task summary for progress reporting"},
			"prompt":      map[string]any{"type": "string", "description": "Complete, self-contained task prompt"},
			"instructions": map[string]any{
				"type":        "string",
				"description": "Optional system framing for the subagent",
			},
		},
		"required": []string{"description", "prompt"},
	}
}

func (t *taskTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	prompt := stringArg(args, "prompt")
	if prompt == "" {
		return nil, NewToolError(t.Name(), "prompt must be non-empty", "VALIDATION_ERROR")
	}

	res := t.dispatcher.Spawn(tc.Context(), subagent.Task{
		Description:  stringArg(args, "description"),
		Instructions: stringArg(args, "instructions"),
		Input:        prompt,
	})
	if res.Err != nil {
		return nil, fmt.Errorf("subagent %s: %w", res.TaskID, res.Err)
	}
	return res.Output, nil
}
