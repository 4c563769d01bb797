package fsys

import (
	"context"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/paasplatform/deepagents/core"
)

// Local is a Backend serving operations from the host disk. Relative paths
// are resolved against Root; absolute paths are used as-is.
type Local struct {
	root string
}

var _ Backend = (*Local)(nil)

// NewLocal constructs a local backend rooted at the given working directory.
func NewLocal(root string) *Local {
	return &Local{root: root}
}

// Root returns the working directory relative paths resolve against.
func (l *Local) Root() string { return l.root }

func (l *Local) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.root, path)
}

// ReadFile implements Backend.
func (l *Local) ReadFile(ctx context.Context, path string, offset, limit int) (*ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(l.resolve(path))
	if err != nil {
		return nil, err
	}
	return Window(SplitLines(string(data)), offset, limit), nil
}

// WriteFile implements Backend.
func (l *Local) WriteFile(ctx context.Context, path, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	return os.WriteFile(full, []byte(content), 0o644)
}

// EditFile implements Backend. The resource is left untouched unless the
// match occurs exactly once.
func (l *Local) EditFile(ctx context.Context, path, match, replacement string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := l.resolve(path)
	data, err := os.ReadFile(full)
	if err != nil {
		return err
	}
	content := string(data)
	if n := strings.Count(content, match); n != 1 {
		return &core.EditError{Path: path, Matches: n}
	}
	edited := strings.Replace(content, match, replacement, 1)
	return os.WriteFile(full, []byte(edited), 0o644)
}

// ListDir implements Backend.
func (l *Local) ListDir(ctx context.Context, path string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		path = "."
	}
	entries, err := os.ReadDir(l.resolve(path))
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		}
		out = append(out, Entry{Name: e.Name(), IsDir: e.IsDir(), Size: size})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Glob implements Backend. Patterns support ** for matching across
// directory boundaries.
func (l *Local) Glob(ctx context.Context, pattern string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		base, rest := splitGlobBase(pattern)
		root := l.resolve(base)
		walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(root, p)
			if relErr != nil {
				return nil
			}
			if rest == "" || matchGlob(rest, filepath.ToSlash(rel)) {
				if !yield(p, nil) {
					return fs.SkipAll
				}
			}
			return nil
		})
		if walkErr != nil && walkErr != fs.SkipAll {
			yield("", walkErr)
		}
	}
}

// Grep implements Backend.
func (l *Local) Grep(ctx context.Context, pattern, path string) iter.Seq2[GrepMatch, error] {
	return func(yield func(GrepMatch, error) bool) {
		re, err := regexp.Compile(pattern)
		if err != nil {
			yield(GrepMatch{}, fmt.Errorf("invalid grep pattern: %w", err))
			return
		}
		if path == "" {
			path = "."
		}
		root := l.resolve(path)
		info, err := os.Stat(root)
		if err != nil {
			yield(GrepMatch{}, err)
			return
		}
		if !info.IsDir() {
			grepFile(re, root, yield)
			return
		}
		_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if d.IsDir() {
				return nil
			}
			if !grepFile(re, p, yield) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

// grepFile yields matches from a single file; returns false if iteration
// should stop.
func grepFile(re *regexp.Regexp, path string, yield func(GrepMatch, error) bool) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	for i, line := range SplitLines(string(data)) {
		if re.MatchString(line) {
			if !yield(GrepMatch{Path: path, Line: i + 1, Text: line}, nil) {
				return false
			}
		}
	}
	return true
}
