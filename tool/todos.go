package tool

import (
	"fmt"

	"github.com/paasplatform/deepagents/core"
)

// NewWriteTodosTool returns the work-list tool. A call replaces the entire
// list; the reasoner resubmits every item each time it reorganizes the plan.
func NewWriteTodosTool(tracker core.TodoTracker) Tool {
	return NewFunctionTool(
		"write_todos",
		"Replace the work list with the provided items. Submit the full list each time; items not included are dropped.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"todos": map[string]any{
					"type":        "array",
					"description": "The complete work list",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"description": map[string]any{"type": "string"},
							"status":      map[string]any{"type": "string", "enum": []string{"pending", "in_progress", "completed"}},
						},
						"required": []string{"description", "status"},
					},
				},
			},
			"required": []string{"todos"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			raw, _ := args["todos"].([]any)
			items := make([]core.TodoItem, 0, len(raw))
			for i, entry := range raw {
				m, ok := entry.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("todo %d: expected object, got %T", i, entry)
				}
				desc, _ := m["description"].(string)
				if desc == "" {
					return nil, fmt.Errorf("todo %d: description must be non-empty", i)
				}
				status := core.TodoStatus(stringArg(m, "status"))
				switch status {
				case core.TodoPending, core.TodoInProgress, core.TodoCompleted:
				default:
					return nil, fmt.Errorf("todo %d: invalid status %q", i, status)
				}
				items = append(items, core.TodoItem{Description: desc, Status: status})
			}
			tracker.Replace(items)
			return fmt.Sprintf("work list updated (%d items)", len(items)), nil
		},
	)
}
