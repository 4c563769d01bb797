package fsys

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paasplatform/deepagents/core"
)

func newTestBackend(t *testing.T) *Local {
	t.Helper()
	return NewLocal(t.TempDir())
}

// -------------------- Read / Write Tests --------------------

func TestLocal_WriteThenRead_RoundTrip(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.WriteFile(ctx, "notes.md", "hi"))

	res, err := b.ReadFile(ctx, "notes.md", 0, 0)
	require.NoError(t, err)
	require.Len(t, res.Lines, 1)
	assert.Equal(t, "hi", res.Lines[0].Text)
	assert.Equal(t, 1, res.Lines[0].Number)
	assert.False(t, res.Truncated)
}

func TestLocal_WriteCreatesParentDirs(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.WriteFile(ctx, "a/b/c.txt", "nested"))

	res, err := b.ReadFile(ctx, "a/b/c.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "nested", res.Lines[0].Text)
}

func TestLocal_ReadPagination(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	var sb strings.Builder
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}
	require.NoError(t, b.WriteFile(ctx, "big.txt", sb.String()))

	res, err := b.ReadFile(ctx, "big.txt", 5, 10)
	require.NoError(t, err)
	require.Len(t, res.Lines, 10)
	assert.Equal(t, 6, res.Lines[0].Number)
	assert.Equal(t, "line 6", res.Lines[0].Text)
	assert.Equal(t, 20, res.TotalLines)
	assert.True(t, res.Truncated)
}

func TestLocal_ReadOffsetPastEnd(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.WriteFile(ctx, "short.txt", "only\n"))

	res, err := b.ReadFile(ctx, "short.txt", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, res.Lines)
	assert.Equal(t, 1, res.TotalLines)
}

func TestLocal_ReadMissingFile(t *testing.T) {
	b := newTestBackend(t)
	_, err := b.ReadFile(context.Background(), "nope.txt", 0, 0)
	assert.Error(t, err)
}

// -------------------- Edit Tests --------------------

func TestLocal_Edit_SingleMatch(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.WriteFile(ctx, "f.txt", "hello world"))
	require.NoError(t, b.EditFile(ctx, "f.txt", "world", "there"))

	res, err := b.ReadFile(ctx, "f.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello there", res.Lines[0].Text)
}

func TestLocal_Edit_NoMatchLeavesFileUntouched(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.WriteFile(ctx, "f.txt", "hello world"))

	err := b.EditFile(ctx, "f.txt", "missing", "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEditNotFound)

	res, err := b.ReadFile(ctx, "f.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Lines[0].Text)
}

func TestLocal_Edit_AmbiguousMatchLeavesFileUntouched(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.WriteFile(ctx, "f.txt", "aa bb aa"))

	err := b.EditFile(ctx, "f.txt", "aa", "cc")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEditAmbiguous)

	var editErr *core.EditError
	require.True(t, errors.As(err, &editErr))
	assert.Equal(t, 2, editErr.Matches)

	res, err := b.ReadFile(ctx, "f.txt", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "aa bb aa", res.Lines[0].Text)
}

// -------------------- List / Glob / Grep Tests --------------------

func TestLocal_ListDir(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.WriteFile(ctx, "z.txt", "z"))
	require.NoError(t, b.WriteFile(ctx, "a.txt", "a"))
	require.NoError(t, os.Mkdir(filepath.Join(b.Root(), "sub"), 0o755))

	entries, err := b.ListDir(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	// Sorted by name.
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, "sub", entries[1].Name)
	assert.True(t, entries[1].IsDir)
	assert.Equal(t, "z.txt", entries[2].Name)
}

func TestLocal_Glob(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.WriteFile(ctx, "main.go", "package main"))
	require.NoError(t, b.WriteFile(ctx, "sub/util.go", "package sub"))
	require.NoError(t, b.WriteFile(ctx, "sub/data.txt", "x"))

	var matches []string
	for p, err := range b.Glob(ctx, "**/*.go") {
		require.NoError(t, err)
		matches = append(matches, filepath.Base(p))
	}
	assert.ElementsMatch(t, []string{"main.go", "util.go"}, matches)
}

func TestLocal_Glob_Restartable(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.WriteFile(ctx, "one.txt", "1"))

	seq := b.Glob(ctx, "*.txt")
	for range 2 {
		var count int
		for _, err := range seq {
			require.NoError(t, err)
			count++
		}
		assert.Equal(t, 1, count)
	}
}

func TestLocal_Grep(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	require.NoError(t, b.WriteFile(ctx, "a.txt", "alpha\nbeta\ngamma beta\n"))
	require.NoError(t, b.WriteFile(ctx, "b.txt", "delta\n"))

	var matches []GrepMatch
	for m, err := range b.Grep(ctx, "beta", "") {
		require.NoError(t, err)
		matches = append(matches, m)
	}
	require.Len(t, matches, 2)
	assert.Equal(t, 2, matches[0].Line)
	assert.Equal(t, "beta", matches[0].Text)
}

func TestLocal_Grep_InvalidPattern(t *testing.T) {
	b := newTestBackend(t)

	var gotErr error
	for _, err := range b.Grep(context.Background(), "(", "") {
		gotErr = err
	}
	assert.Error(t, gotErr)
}

// -------------------- Window Tests --------------------

func TestWindow_TruncatesLongLines(t *testing.T) {
	long := strings.Repeat("x", MaxLineLength+10)
	res := Window([]string{long}, 0, 0)
	require.Len(t, res.Lines, 1)
	assert.Len(t, res.Lines[0].Text, MaxLineLength+3) // trailing "..."
}

func TestReadResult_Format(t *testing.T) {
	res := &ReadResult{
		Lines:      []Line{{Number: 1, Text: "first"}, {Number: 2, Text: "second"}},
		TotalLines: 5,
		Truncated:  true,
	}
	out := res.Format()
	assert.Contains(t, out, "1\tfirst")
	assert.Contains(t, out, "2\tsecond")
	assert.Contains(t, out, "3 more lines")
}
