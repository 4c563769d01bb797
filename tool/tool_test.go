package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/internal/util"
	"github.com/paasplatform/deepagents/logging"
)

func testToolContext(t *testing.T) *core.ToolContext {
	t.Helper()
	sess := core.NewSession("sess-1", t.TempDir())
	return core.NewToolContext(context.Background(), sess, "turn-1", "fc-1", logging.NoOpLogger{})
}

// -------------------- Schema & Validation Tests --------------------

type sampleSchema struct {
	A string `json:"a" description:"Field A"`
	B *int   `json:"b" description:"Optional pointer field"`
	C int    `json:"c,omitempty" description:"Omit empty field"`
}

func TestCreateSchema(t *testing.T) {
	schema := util.CreateSchema(sampleSchema{})
	props, ok := schema["properties"].(map[string]any)
	assert.True(t, ok)
	assert.Contains(t, props, "a")
	assert.Contains(t, props, "b")
	assert.Contains(t, props, "c")
	// Required only includes non-pointer, non-omitempty exported fields
	req, _ := schema["required"].([]string)
	assert.ElementsMatch(t, []string{"a"}, req)
}

func TestValidateParameters(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"x": map[string]any{"type": "integer"},
		},
		"required": []string{"x"},
	}

	// Success
	err := util.ValidateParameters(map[string]any{"x": 5}, schema)
	assert.NoError(t, err)

	// Missing required
	err = util.ValidateParameters(map[string]any{}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Equal(t, "x", vErr.Field)
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}

	// Wrong type
	err = util.ValidateParameters(map[string]any{"x": "not-int"}, schema)
	assert.Error(t, err)
	if vErr, ok := err.(*ValidationError); ok {
		assert.Contains(t, vErr.Message, "expected type integer")
	} else {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestValidateParametersDecodedRequired(t *testing.T) {
	// Schemas decoded from JSON carry []any required lists.
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"x": map[string]any{"type": "string"}},
		"required":   []any{"x"},
	}
	assert.Error(t, util.ValidateParameters(map[string]any{}, schema))
	assert.NoError(t, util.ValidateParameters(map[string]any{"x": "v"}, schema))
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}

	sumTool := NewFunctionTool("sum", "Add numbers", params, func(_ *core.ToolContext, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})

	result, err := sumTool.Call(testToolContext(t), map[string]any{"a": 2.0, "b": 3.0})
	assert.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
		},
		"required": []string{"a"},
	}
	tTool := NewFunctionTool("test", "Test", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return 0, nil
	})
	_, err := tTool.Call(testToolContext(t), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	execTool := NewFunctionTool("fail", "Fails", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})
	_, err := execTool.Call(testToolContext(t), map[string]any{})
	assert.Error(t, err)
	toolErr, ok := err.(*ToolError)
	assert.True(t, ok)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
}

func TestFunctionTool_PreservesToolError(t *testing.T) {
	params := map[string]any{"type": "object", "properties": map[string]any{}}
	custom := NewToolError("custom", "denied", "PERMISSION_DENIED")
	failTool := NewFunctionTool("custom", "Custom code", params, func(_ *core.ToolContext, _ map[string]any) (any, error) {
		return nil, custom
	})
	_, err := failTool.Call(testToolContext(t), map[string]any{})
	require.Error(t, err)
	toolErr, ok := err.(*ToolError)
	require.True(t, ok)
	assert.Equal(t, "PERMISSION_DENIED", toolErr.Code)
}

// -------------------- Registry Tests --------------------

func staticTool(name string) Tool {
	return NewFunctionTool(name, "tool "+name,
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ *core.ToolContext, _ map[string]any) (any, error) { return name, nil },
	)
}

func TestRegistryRegisterAndGet(t *testing.T) {
	r, err := NewRegistry(staticTool("alpha"), staticTool("beta"))
	require.NoError(t, err)

	got, ok := r.Get("alpha")
	require.True(t, ok)
	assert.Equal(t, "alpha", got.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r, err := NewRegistry(staticTool("alpha"))
	require.NoError(t, err)
	assert.Error(t, r.Register(staticTool("alpha")))

	_, err = NewRegistry(staticTool("x"), staticTool("x"))
	assert.Error(t, err)
}

func TestRegistryDescriptorsSorted(t *testing.T) {
	r, err := NewRegistry(staticTool("zeta"), staticTool("alpha"), staticTool("mid"))
	require.NoError(t, err)

	descs := r.Descriptors()
	require.Len(t, descs, 3)
	assert.Equal(t, "alpha", descs[0].Name)
	assert.Equal(t, "mid", descs[1].Name)
	assert.Equal(t, "zeta", descs[2].Name)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}

func TestRegistrySubset(t *testing.T) {
	r, err := NewRegistry(staticTool("a"), staticTool("b"), staticTool("c"))
	require.NoError(t, err)

	sub := r.Subset([]string{"a", "c", "unknown"})
	assert.Equal(t, []string{"a", "c"}, sub.Names())

	// Empty subset means everything.
	assert.Equal(t, []string{"a", "b", "c"}, r.Subset(nil).Names())
}

func TestRegistryWithout(t *testing.T) {
	r, err := NewRegistry(staticTool("a"), staticTool("task"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, r.Without("task").Names())
}

// -------------------- ToolError Formatting --------------------

func TestToolErrorFormatting(t *testing.T) {
	err := NewToolError("demo", "something failed", "E123")
	assert.Contains(t, err.Error(), "E123")
	assert.Contains(t, err.Error(), "demo")

	bare := &ToolError{Tool: "demo", Message: "plain"}
	assert.NotContains(t, bare.Error(), "[")
}
