// Package fsys defines the uniform filesystem surface used by tools, the
// memory store and the skill index. A Backend services read / write / edit /
// list / glob / grep operations over a hierarchical namespace of text
// resources; the local implementation works on the host disk while the
// sandbox router forwards the same operations to a remote instance. Callers
// are backend-agnostic: every implementation produces the same result shapes.
package fsys

import (
	"context"
	"fmt"
	"iter"
	"strings"
)

const (
	// DefaultReadLimit is the number of lines returned by ReadFile when no
	// explicit limit is given.
	DefaultReadLimit = 500

	// MaxLineLength is the per-line truncation threshold for ReadFile output.
	MaxLineLength = 2000
)

// Backend is the uniform operation surface over a tree of text resources.
// Paths are absolute, or relative to the backend's working directory. All
// operations are synchronous from the caller's perspective regardless of
// whether they are serviced locally or remotely.
type Backend interface {
	// ReadFile returns a bounded window of lines for pagination over large
	// resources. offset is the 0-based first line; limit caps the window
	// size (0 means DefaultReadLimit).
	ReadFile(ctx context.Context, path string, offset, limit int) (*ReadResult, error)

	// WriteFile creates or replaces the resource at path, creating parent
	// directories as needed.
	WriteFile(ctx context.Context, path, content string) error

	// EditFile replaces the single occurrence of match with replacement.
	// Zero or multiple occurrences fail with a core.EditError and leave the
	// resource unmodified.
	EditFile(ctx context.Context, path, match, replacement string) error

	// ListDir returns the immediate entries of a directory, sorted by name.
	ListDir(ctx context.Context, path string) ([]Entry, error)

	// Glob returns a lazy, finite sequence of paths matching pattern.
	// The sequence is restartable: ranging over it again re-evaluates.
	Glob(ctx context.Context, pattern string) iter.Seq2[string, error]

	// Grep returns a lazy, finite sequence of line matches for the regular
	// expression pattern under path (a file or directory; empty means the
	// working directory).
	Grep(ctx context.Context, pattern, path string) iter.Seq2[GrepMatch, error]
}

// Line is a single numbered line of file content. Number is 1-based.
type Line struct {
	Number int
	Text   string
}

// ReadResult is a window into a file produced by ReadFile.
type ReadResult struct {
	Lines      []Line
	TotalLines int
	Truncated  bool // window ends before the last line of the file
}

// Format renders the window in cat -n style for inclusion in reasoning
// context.
func (r *ReadResult) Format() string {
	var b strings.Builder
	for _, ln := range r.Lines {
		fmt.Fprintf(&b, "%6d\t%s\n", ln.Number, ln.Text)
	}
	if r.Truncated {
		fmt.Fprintf(&b, "... (%d more lines)\n", r.TotalLines-lastNumber(r.Lines))
	}
	return b.String()
}

func lastNumber(lines []Line) int {
	if len(lines) == 0 {
		return 0
	}
	return lines[len(lines)-1].Number
}

// Entry is one directory listing row.
type Entry struct {
	Name  string
	IsDir bool
	Size  int64
}

// GrepMatch is one matching line produced by Grep.
type GrepMatch struct {
	Path string
	Line int
	Text string
}

// Window slices full file lines into a ReadResult honoring offset / limit
// semantics shared by all backends. Lines longer than MaxLineLength are
// truncated.
func Window(lines []string, offset, limit int) *ReadResult {
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	if offset < 0 {
		offset = 0
	}
	res := &ReadResult{TotalLines: len(lines)}
	if offset >= len(lines) {
		return res
	}
	end := offset + limit
	if end > len(lines) {
		end = len(lines)
	}
	for i := offset; i < end; i++ {
		text := lines[i]
		if len(text) > MaxLineLength {
			text = text[:MaxLineLength] + "..."
		}
		res.Lines = append(res.Lines, Line{Number: i + 1, Text: text})
	}
	res.Truncated = end < len(lines)
	return res
}

// SplitLines splits file content into lines without a trailing phantom line
// for content ending in a newline.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
