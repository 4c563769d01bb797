package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/logging"
	"github.com/paasplatform/deepagents/model"
	"github.com/paasplatform/deepagents/session"
	"github.com/paasplatform/deepagents/subagent"
	"github.com/paasplatform/deepagents/todo"
	"github.com/paasplatform/deepagents/tool"
)

// -------------------- Test Helpers --------------------

func newEchoTool() tool.Tool {
	return tool.NewFunctionTool(
		"echo",
		"Echo the given text",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return "echo: " + args["text"].(string), nil
		},
	)
}

func newFailingTool(name string) tool.Tool {
	return tool.NewFunctionTool(
		name,
		"Always fails",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			return nil, fmt.Errorf("boom")
		},
	)
}

func newTestRunner(t *testing.T, reasoner model.Reasoner, tools []tool.Tool, optFns ...func(o *Options)) *Runner {
	t.Helper()
	registry, err := tool.NewRegistry(tools...)
	require.NoError(t, err)
	sess := core.NewSession("sess-1", t.TempDir())
	return New(reasoner, registry, sess, optFns...)
}

func subagentTask(input, instructions string) subagent.Task {
	return subagent.Task{ID: "task-1", Input: input, Instructions: instructions}
}

func finalStep(text string) model.Step {
	return model.Step{Text: text}
}

func callStep(calls ...core.ToolCall) model.Step {
	return model.Step{ToolCalls: calls}
}

func call(id, name, args string) core.ToolCall {
	return core.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

type stubMemory struct{ snapshot string }

func (s stubMemory) Snapshot(ctx context.Context) (string, error) { return s.snapshot, nil }
func (s stubMemory) Commit(ctx context.Context, path, match, replacement string) error {
	return nil
}

type stubSkills struct{ entries []core.SkillEntry }

func (s stubSkills) List() []core.SkillEntry { return s.entries }
func (s stubSkills) Resolve(ctx context.Context, name string) (string, error) {
	return "", fmt.Errorf("unknown skill %q", name)
}

// -------------------- Turn Tests --------------------

func TestTurnFinalAnswer(t *testing.T) {
	mock := model.NewMock(finalStep("done"))
	r := newTestRunner(t, mock, []tool.Tool{newEchoTool()})

	answer, err := r.Turn(context.Background(), "do the thing")
	require.NoError(t, err)
	assert.Equal(t, "done", answer)

	history := r.Session().History()
	require.Len(t, history, 2)
	assert.Equal(t, core.RoleUser, history[0].Role)
	assert.Equal(t, "do the thing", history[0].Content)
	assert.Equal(t, core.RoleAssistant, history[1].Role)

	require.Len(t, mock.Requests, 1)
	assert.Contains(t, mock.Requests[0].System, "engineering agent")
	require.Len(t, mock.Requests[0].Tools, 1)
	assert.Equal(t, "echo", mock.Requests[0].Tools[0].Name)
}

func TestTurnExecutesToolCalls(t *testing.T) {
	mock := model.NewMock(
		callStep(call("fc-1", "echo", `{"text":"hi"}`)),
		finalStep("all done"),
	)
	r := newTestRunner(t, mock, []tool.Tool{newEchoTool()})

	answer, err := r.Turn(context.Background(), "say hi")
	require.NoError(t, err)
	assert.Equal(t, "all done", answer)

	history := r.Session().History()
	require.Len(t, history, 4) // user, assistant(call), tool, assistant(final)
	assert.Equal(t, core.RoleTool, history[2].Role)
	require.Len(t, history[2].ToolResults, 1)
	res := history[2].ToolResults[0]
	assert.Equal(t, "fc-1", res.CallID)
	assert.Equal(t, "echo", res.Name)
	assert.Equal(t, "echo: hi", res.Content)
	assert.False(t, res.IsError)

	// The second request carries the tool result back to the reasoner.
	require.Len(t, mock.Requests, 2)
	last := mock.Requests[1].Messages[len(mock.Requests[1].Messages)-1]
	assert.Equal(t, core.RoleTool, last.Role)
}

func TestTurnUnknownToolBecomesErrorResult(t *testing.T) {
	mock := model.NewMock(
		callStep(call("fc-1", "nope", `{}`)),
		finalStep("recovered"),
	)
	r := newTestRunner(t, mock, []tool.Tool{newEchoTool()})

	answer, err := r.Turn(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)

	res := r.Session().History()[2].ToolResults[0]
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, `unknown tool "nope"`)
}

func TestTurnToolFailureIsDataNotFault(t *testing.T) {
	mock := model.NewMock(
		callStep(call("fc-1", "bomb", `{}`)),
		finalStep("recovered"),
	)
	r := newTestRunner(t, mock, []tool.Tool{newFailingTool("bomb")})

	answer, err := r.Turn(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)

	res := r.Session().History()[2].ToolResults[0]
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "boom")
	assert.Contains(t, res.Content, "EXECUTION_ERROR")
}

func TestTurnInvalidArgumentsBecomeErrorResult(t *testing.T) {
	mock := model.NewMock(
		callStep(call("fc-1", "echo", `not json`)),
		finalStep("recovered"),
	)
	r := newTestRunner(t, mock, []tool.Tool{newEchoTool()})

	_, err := r.Turn(context.Background(), "go")
	require.NoError(t, err)

	res := r.Session().History()[2].ToolResults[0]
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, "invalid tool arguments")
}

func TestTurnStepLimit(t *testing.T) {
	mock := model.NewMock(
		callStep(call("fc-1", "echo", `{"text":"a"}`)),
		callStep(call("fc-2", "echo", `{"text":"b"}`)),
		callStep(call("fc-3", "echo", `{"text":"c"}`)),
	)
	r := newTestRunner(t, mock, []tool.Tool{newEchoTool()}, WithMaxSteps(2))

	_, err := r.Turn(context.Background(), "loop forever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded max reasoner steps")
}

func TestTurnCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := model.NewMock(finalStep("never"))
	r := newTestRunner(t, mock, []tool.Tool{newEchoTool()})

	_, err := r.Turn(ctx, "go")
	require.ErrorIs(t, err, context.Canceled)
}

func TestTurnSystemContext(t *testing.T) {
	tracker := todo.NewTracker()
	tracker.Replace([]core.TodoItem{{Description: "ship it", Status: core.TodoInProgress}})

	mock := model.NewMock(finalStep("ok"))
	r := newTestRunner(t, mock, []tool.Tool{newEchoTool()},
		WithMemory(stubMemory{snapshot: "remember the port is 8080"}),
		WithSkills(stubSkills{entries: []core.SkillEntry{
			{Name: "deploy", Description: "Release procedure", Location: "skills/deploy/SKILL.md"},
		}}),
		WithTodos(tracker),
	)

	_, err := r.Turn(context.Background(), "go")
	require.NoError(t, err)

	system := mock.Requests[0].System
	assert.Contains(t, system, "# Memory")
	assert.Contains(t, system, "remember the port is 8080")
	assert.Contains(t, system, "deploy: Release procedure")
	assert.Contains(t, system, "Current work list:")
	assert.Contains(t, system, "[in_progress] ship it")
}

func TestTurnRecordsTranscript(t *testing.T) {
	store := session.NewStore()
	mock := model.NewMock(finalStep("done"))
	r := newTestRunner(t, mock, []tool.Tool{newEchoTool()}, WithSessions(store))

	_, err := r.Turn(context.Background(), "go")
	require.NoError(t, err)

	got, ok := store.Get(r.Session().ID)
	require.True(t, ok)
	assert.Len(t, got.History(), 2)
}

func TestTurnInstructionTemplate(t *testing.T) {
	mock := model.NewMock(finalStep("ok"))
	r := newTestRunner(t, mock, []tool.Tool{newEchoTool()},
		WithInstructions("Workspace: {{.WorkDir}} ({{.SessionID}})"),
	)

	_, err := r.Turn(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "Workspace: "+r.Session().WorkDir+" (sess-1)", mock.Requests[0].System)
}

func TestTurnOnTextCallback(t *testing.T) {
	var got string
	mock := model.NewMock(finalStep("final words"))
	r := newTestRunner(t, mock, []tool.Tool{newEchoTool()},
		WithOnText(func(text string) { got = text }),
	)

	_, err := r.Turn(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "final words", got)
}

func TestTaskCallsRunConcurrently(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	running := 0
	peak := 0

	taskStub := tool.NewFunctionTool(
		"task",
		"Fake dispatch",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			if running == 2 {
				close(release)
			}
			mu.Unlock()
			<-release
			mu.Lock()
			running--
			mu.Unlock()
			return "child done", nil
		},
	)

	mock := model.NewMock(
		callStep(call("fc-1", "task", `{}`), call("fc-2", "task", `{}`)),
		finalStep("done"),
	)
	r := newTestRunner(t, mock, []tool.Tool{taskStub})

	_, err := r.Turn(context.Background(), "fan out")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, peak)

	results := r.Session().History()[2].ToolResults
	require.Len(t, results, 2)
	assert.Equal(t, "fc-1", results[0].CallID)
	assert.Equal(t, "fc-2", results[1].CallID)
}

type toolCallRecorder struct {
	logging.NoOpLogger
	mu    sync.Mutex
	calls []string
}

func (l *toolCallRecorder) LogToolCall(tool string, _ time.Duration, success bool, _ error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf("%s:%t", tool, success))
}

func TestTurnEmitsToolCallRecords(t *testing.T) {
	rec := &toolCallRecorder{}
	mock := model.NewMock(
		callStep(call("fc-1", "echo", `{"text":"hi"}`), call("fc-2", "bomb", `{}`)),
		finalStep("done"),
	)
	r := newTestRunner(t, mock, []tool.Tool{newEchoTool(), newFailingTool("bomb")},
		WithLogger(rec),
	)

	_, err := r.Turn(context.Background(), "go")
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"echo:true", "bomb:false"}, rec.calls)
}

// -------------------- ChildRunner Tests --------------------

func TestChildRunnerNarrowsToolsAndContext(t *testing.T) {
	taskStub := tool.NewFunctionTool("task", "Fake dispatch",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) { return "", nil },
	)

	mock := model.NewMock(finalStep("child answer"))
	parent := newTestRunner(t, mock, []tool.Tool{newEchoTool(), taskStub})

	child := parent.ChildRunner()
	out, err := child.Run(context.Background(), subagentTask("research the topic", "You are a researcher."))
	require.NoError(t, err)
	assert.Equal(t, "child answer", out)

	req := mock.Requests[len(mock.Requests)-1]
	assert.Equal(t, "You are a researcher.", req.System)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "echo", req.Tools[0].Name)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "research the topic", req.Messages[0].Content)
}

func TestChildRunnerExcludesParentWorkList(t *testing.T) {
	taskStub := tool.NewFunctionTool("task", "Fake dispatch",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) { return "", nil },
	)
	todosStub := tool.NewFunctionTool("write_todos", "Fake work list",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(tc *core.ToolContext, args map[string]any) (any, error) { return "", nil },
	)

	mock := model.NewMock(finalStep("child answer"))
	parent := newTestRunner(t, mock, []tool.Tool{newEchoTool(), taskStub, todosStub})

	_, err := parent.ChildRunner().Run(context.Background(), subagentTask("go", ""))
	require.NoError(t, err)

	req := mock.Requests[len(mock.Requests)-1]
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "echo", req.Tools[0].Name)
}

func TestChildRunnerDefaultsInstructions(t *testing.T) {
	mock := model.NewMock(finalStep("child answer"))
	parent := newTestRunner(t, mock, []tool.Tool{newEchoTool()})

	_, err := parent.ChildRunner().Run(context.Background(), subagentTask("go", ""))
	require.NoError(t, err)

	req := mock.Requests[len(mock.Requests)-1]
	assert.Contains(t, req.System, "engineering agent")
}

// -------------------- Output Rendering Tests --------------------

func TestRenderOutput(t *testing.T) {
	assert.Equal(t, "", renderOutput(nil))
	assert.Equal(t, "plain", renderOutput("plain"))
	assert.Equal(t, `{"a":1}`, renderOutput(map[string]int{"a": 1}))
	assert.Equal(t, "42", renderOutput(42))
}
