package tool

import (
	"fmt"
	"strings"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/fsys"
)

// maxSequenceResults caps glob and grep output so a pathological pattern
// cannot flood the reasoning context.
const maxSequenceResults = 500

// FilesystemTools returns the builtin file tools bound to a backend. The
// backend is usually the sandbox router, so the same tools operate locally
// or remotely depending on the session.
func FilesystemTools(backend fsys.Backend) []Tool {
	return []Tool{
		NewReadFileTool(backend),
		NewWriteFileTool(backend),
		NewEditFileTool(backend),
		NewListDirTool(backend),
		NewGlobTool(backend),
		NewGrepTool(backend),
	}
}

// NewReadFileTool returns the paginated file reader.
func NewReadFileTool(backend fsys.Backend) Tool {
	return NewFunctionTool(
		"read_file",
		"Read a file, returning numbered lines. Use offset and limit to page through large files.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":   map[string]any{"type": "string", "description": "File path, absolute or relative to the working directory"},
				"offset": map[string]any{"type": "integer", "description": "0-based first line to return"},
				"limit":  map[string]any{"type": "integer", "description": "Maximum number of lines to return"},
			},
			"required": []string{"path"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			path := stringArg(args, "path")
			res, err := backend.ReadFile(tc.Context(), path, intArg(args, "offset"), intArg(args, "limit"))
			if err != nil {
				return nil, err
			}
			if len(res.Lines) == 0 && res.TotalLines == 0 {
				return "(empty file)", nil
			}
			return res.Format(), nil
		},
	)
}

// NewWriteFileTool returns the whole-file writer.
func NewWriteFileTool(backend fsys.Backend) Tool {
	return NewFunctionTool(
		"write_file",
		"Create or overwrite a file with the given content. Parent directories are created as needed.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string", "description": "File path"},
				"content": map[string]any{"type": "string", "description": "Full file content"},
			},
			"required": []string{"path", "content"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			path := stringArg(args, "path")
			if err := backend.WriteFile(tc.Context(), path, stringArg(args, "content")); err != nil {
				return nil, err
			}
			return fmt.Sprintf("wrote %s", path), nil
		},
	)
}

// NewEditFileTool returns the single-occurrence editor. The match must occur
// exactly once; zero or multiple occurrences leave the file untouched and
// report the failure so the reasoner can supply more context.
func NewEditFileTool(backend fsys.Backend) Tool {
	return NewFunctionTool(
		"edit_file",
		"Replace a unique string in a file. Fails without modifying the file when the string is absent or ambiguous; include surrounding context to disambiguate.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":        map[string]any{"type": "string", "description": "File path"},
				"match":       map[string]any{"type": "string", "description": "Exact string to replace; must occur exactly once"},
				"replacement": map[string]any{"type": "string", "description": "Replacement string"},
			},
			"required": []string{"path", "match", "replacement"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			path := stringArg(args, "path")
			err := backend.EditFile(tc.Context(), path, stringArg(args, "match"), stringArg(args, "replacement"))
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("edited %s", path), nil
		},
	)
}

// NewListDirTool returns the directory lister.
func NewListDirTool(backend fsys.Backend) Tool {
	return NewFunctionTool(
		"ls",
		"List the entries of a directory. Directories are marked with a trailing slash.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{"type": "string", "description": "Directory path; empty means the working directory"},
			},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			entries, err := backend.ListDir(tc.Context(), stringArg(args, "path"))
			if err != nil {
				return nil, err
			}
			if len(entries) == 0 {
				return "(empty directory)", nil
			}
			var b strings.Builder
			for _, e := range entries {
				b.WriteString(e.Name)
				if e.IsDir {
					b.WriteByte('/')
				}
				b.WriteByte('\n')
			}
			return b.String(), nil
		},
	)
}

// NewGlobTool returns the pattern matcher.
func NewGlobTool(backend fsys.Backend) Tool {
	return NewFunctionTool(
		"glob",
		"Find files matching a glob pattern. Supports ** for matching across directories.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{"type": "string", "description": "Glob pattern, e.g. src/**/*.go"},
			},
			"required": []string{"pattern"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			var b strings.Builder
			count := 0
			for p, err := range backend.Glob(tc.Context(), stringArg(args, "pattern")) {
				if err != nil {
					return nil, err
				}
				if count >= maxSequenceResults {
					fmt.Fprintf(&b, "... (results truncated at %d)\n", maxSequenceResults)
					break
				}
				b.WriteString(p)
				b.WriteByte('\n')
				count++
			}
			if count == 0 {
				return "(no matches)", nil
			}
			return b.String(), nil
		},
	)
}

// NewGrepTool returns the content searcher.
func NewGrepTool(backend fsys.Backend) Tool {
	return NewFunctionTool(
		"grep",
		"Search file contents for a regular expression. Returns path:line:text matches.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{"type": "string", "description": "Regular expression"},
				"path":    map[string]any{"type": "string", "description": "File or directory to search; empty means the working directory"},
			},
			"required": []string{"pattern"},
		},
		func(tc *core.ToolContext, args map[string]any) (any, error) {
			var b strings.Builder
			count := 0
			for m, err := range backend.Grep(tc.Context(), stringArg(args, "pattern"), stringArg(args, "path")) {
				if err != nil {
					return nil, err
				}
				if count >= maxSequenceResults {
					fmt.Fprintf(&b, "... (results truncated at %d)\n", maxSequenceResults)
					break
				}
				fmt.Fprintf(&b, "%s:%d:%s\n", m.Path, m.Line, m.Text)
				count++
			}
			if count == 0 {
				return "(no matches)", nil
			}
			return b.String(), nil
		},
	)
}

// stringArg extracts a string argument, defaulting to "".
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg extracts an integer argument, tolerating the float64 form JSON
// decoding produces.
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
