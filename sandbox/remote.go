package sandbox

import (
	"context"
	"fmt"
	"iter"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/fsys"
)

// RemoteWorkDir is the directory relative paths resolve against inside a
// sandbox instance.
const RemoteWorkDir = "/workspace"

// remoteBackend marshals fsys operations onto a sandbox binding: reads via
// file download, writes via upload, edit via download-modify-upload, and
// list / glob / grep via shell commands. Results are unmarshaled back into
// the shapes the local backend produces so callers stay provider-agnostic.
type remoteBackend struct {
	binding *Binding
}

func (r *remoteBackend) resolve(p string) string {
	if path.IsAbs(p) {
		return p
	}
	return path.Join(RemoteWorkDir, p)
}

// fetchFile downloads one file from the instance, mapping per-file error
// conditions onto Go errors.
func fetchFile(ctx context.Context, inst Instance, p string) ([]byte, error) {
	files, err := inst.DownloadFiles(ctx, []string{p})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no response for %s", p)
	}
	if files[0].Err != "" {
		return nil, mapDownloadErr(p, files[0].Err)
	}
	return files[0].Content, nil
}

func (r *remoteBackend) download(ctx context.Context, p string) ([]byte, error) {
	var content []byte
	err := r.binding.run("download", func(inst Instance) error {
		data, fetchErr := fetchFile(ctx, inst, r.resolve(p))
		if fetchErr != nil {
			return fetchErr
		}
		content = data
		return nil
	})
	return content, err
}

func mapDownloadErr(p, cond string) error {
	switch cond {
	case ErrCondFileNotFound:
		return fmt.Errorf("%s: %w", p, os.ErrNotExist)
	case ErrCondIsDirectory:
		return fmt.Errorf("%s: is a directory", p)
	case ErrCondPermissionDenied:
		return fmt.Errorf("%s: %w", p, os.ErrPermission)
	default:
		return fmt.Errorf("%s: %s", p, cond)
	}
}

// ReadFile downloads the file and windows it exactly like the local backend.
func (r *remoteBackend) ReadFile(ctx context.Context, p string, offset, limit int) (*fsys.ReadResult, error) {
	data, err := r.download(ctx, p)
	if err != nil {
		return nil, err
	}
	return fsys.Window(fsys.SplitLines(string(data)), offset, limit), nil
}

// WriteFile uploads the content, creating parent directories remotely. The
// mkdir and the upload hold the binding as one critical section.
func (r *remoteBackend) WriteFile(ctx context.Context, p, content string) error {
	full := r.resolve(p)
	return r.binding.run("write", func(inst Instance) error {
		if dir := path.Dir(full); dir != "/" {
			if _, err := inst.Execute(ctx, "mkdir -p "+shellQuote(dir), 0); err != nil {
				return err
			}
		}
		return inst.UploadFiles(ctx, []FileUpload{{Path: full, Content: []byte(content)}})
	})
}

// EditFile downloads, verifies a single occurrence, and uploads the edited
// content. The remote resource is untouched on ambiguous or absent matches.
// Download, check and upload hold the binding for the whole sequence so a
// concurrent editor's stale download can never overwrite this edit.
func (r *remoteBackend) EditFile(ctx context.Context, p, match, replacement string) error {
	full := r.resolve(p)
	return r.binding.run("edit", func(inst Instance) error {
		data, err := fetchFile(ctx, inst, full)
		if err != nil {
			return err
		}
		content := string(data)
		if n := strings.Count(content, match); n != 1 {
			return &core.EditError{Path: p, Matches: n}
		}
		edited := strings.Replace(content, match, replacement, 1)
		return inst.UploadFiles(ctx, []FileUpload{{Path: full, Content: []byte(edited)}})
	})
}

// ListDir shells out to ls; a trailing slash marks directories.
func (r *remoteBackend) ListDir(ctx context.Context, p string) ([]fsys.Entry, error) {
	if p == "" {
		p = RemoteWorkDir
	}
	res, err := r.binding.Execute(ctx, "ls -pA -- "+shellQuote(r.resolve(p)), 0)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("ls %s: %s", p, strings.TrimSpace(res.Output))
	}
	var entries []fsys.Entry
	for _, line := range fsys.SplitLines(res.Output) {
		name, isDir := strings.CutSuffix(line, "/")
		if name == "" {
			continue
		}
		entries = append(entries, fsys.Entry{Name: name, IsDir: isDir})
	}
	return entries, nil
}

// Glob expands the pattern with bash globstar inside the instance and yields
// the resulting paths lazily. The pattern reaches the shell only as a
// single-quoted assignment; with IFS cleared the unquoted expansion stays one
// word, so the pattern can glob but never parse as shell syntax.
func (r *remoteBackend) Glob(ctx context.Context, pattern string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		cmd := fmt.Sprintf(
			`cd %s && shopt -s globstar nullglob && IFS= && p=%s && for f in $p; do printf '%%s\n' "$f"; done`,
			shellQuote(RemoteWorkDir), shellQuote(pattern),
		)
		res, err := r.binding.Execute(ctx, cmd, 0)
		if err != nil {
			yield("", err)
			return
		}
		if res.ExitCode != 0 {
			yield("", fmt.Errorf("glob %s: %s", pattern, strings.TrimSpace(res.Output)))
			return
		}
		for _, line := range fsys.SplitLines(res.Output) {
			if !yield(path.Join(RemoteWorkDir, line), nil) {
				return
			}
		}
	}
}

// Grep shells out to grep -rn and parses path:line:text records lazily.
func (r *remoteBackend) Grep(ctx context.Context, pattern, p string) iter.Seq2[fsys.GrepMatch, error] {
	return func(yield func(fsys.GrepMatch, error) bool) {
		if p == "" {
			p = RemoteWorkDir
		}
		cmd := "grep -rn -E -- " + shellQuote(pattern) + " " + shellQuote(r.resolve(p))
		res, err := r.binding.Execute(ctx, cmd, 0)
		if err != nil {
			yield(fsys.GrepMatch{}, err)
			return
		}
		// grep exits 1 on no matches; only >1 is a real failure.
		if res.ExitCode > 1 {
			yield(fsys.GrepMatch{}, fmt.Errorf("grep %s: %s", pattern, strings.TrimSpace(res.Output)))
			return
		}
		for _, line := range fsys.SplitLines(res.Output) {
			parts := strings.SplitN(line, ":", 3)
			if len(parts) != 3 {
				continue
			}
			lineNo, convErr := strconv.Atoi(parts[1])
			if convErr != nil {
				continue
			}
			if !yield(fsys.GrepMatch{Path: parts[0], Line: lineNo, Text: parts[2]}, nil) {
				return
			}
		}
	}
}

// shellQuote wraps s in single quotes, escaping embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
