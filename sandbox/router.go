package sandbox

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"os/exec"
	"time"

	"github.com/paasplatform/deepagents/fsys"
	"github.com/paasplatform/deepagents/logging"
)

// Router selects the execution target for filesystem and shell operations.
// With no binding configured every operation forwards verbatim to the local
// backend; with a binding each operation is marshaled onto the remote
// instance and unmarshaled back into the same result shape the local backend
// would have produced. A binding that is not ready fails the operation with
// core.ErrSandboxUnavailable; execution targets are never switched
// mid-session without the caller's intent.
type Router struct {
	local   *fsys.Local
	binding *Binding
	logger  logging.Logger

	// writeObservers run after every successful WriteFile or EditFile with
	// the path that changed. Registered right after construction, before the
	// router sees traffic.
	writeObservers []func(path string)
}

var _ fsys.Backend = (*Router)(nil)

// RouterOptions configures a Router.
type RouterOptions struct {
	// Binding is the active sandbox binding, or nil for local execution.
	Binding *Binding
	// Logger used for routing decisions and local shell execution.
	Logger logging.Logger
}

// NewRouter constructs a Router over the given local backend.
func NewRouter(local *fsys.Local, optFns ...func(o *RouterOptions)) *Router {
	opts := RouterOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Router{local: local, binding: opts.Binding, logger: logger}
}

// WithBinding routes operations to the given sandbox binding.
func WithBinding(b *Binding) func(o *RouterOptions) {
	return func(o *RouterOptions) { o.Binding = b }
}

// WithRouterLogger sets the router logger.
func WithRouterLogger(l logging.Logger) func(o *RouterOptions) {
	return func(o *RouterOptions) { o.Logger = l }
}

// ObserveWrites registers fn to run after every successful write or edit.
// The memory store uses this to drop its snapshot cache when a document
// changes mid-session, on either execution target. Not safe to call once the
// router is handling operations.
func (r *Router) ObserveWrites(fn func(path string)) {
	r.writeObservers = append(r.writeObservers, fn)
}

func (r *Router) notifyWrite(path string) {
	for _, fn := range r.writeObservers {
		fn(path)
	}
}

// Sandboxed reports whether operations are routed to a sandbox binding.
func (r *Router) Sandboxed() bool { return r.binding != nil }

// Binding returns the active binding, or nil for local execution.
func (r *Router) Binding() *Binding { return r.binding }

// remote returns the remote backend view of the binding.
func (r *Router) remote() *remoteBackend { return &remoteBackend{binding: r.binding} }

// ReadFile implements fsys.Backend.
func (r *Router) ReadFile(ctx context.Context, path string, offset, limit int) (*fsys.ReadResult, error) {
	if r.binding == nil {
		return r.local.ReadFile(ctx, path, offset, limit)
	}
	return r.remote().ReadFile(ctx, path, offset, limit)
}

// WriteFile implements fsys.Backend.
func (r *Router) WriteFile(ctx context.Context, path, content string) error {
	var err error
	if r.binding == nil {
		err = r.local.WriteFile(ctx, path, content)
	} else {
		err = r.remote().WriteFile(ctx, path, content)
	}
	if err == nil {
		r.notifyWrite(path)
	}
	return err
}

// EditFile implements fsys.Backend.
func (r *Router) EditFile(ctx context.Context, path, match, replacement string) error {
	var err error
	if r.binding == nil {
		err = r.local.EditFile(ctx, path, match, replacement)
	} else {
		err = r.remote().EditFile(ctx, path, match, replacement)
	}
	if err == nil {
		r.notifyWrite(path)
	}
	return err
}

// ListDir implements fsys.Backend.
func (r *Router) ListDir(ctx context.Context, path string) ([]fsys.Entry, error) {
	if r.binding == nil {
		return r.local.ListDir(ctx, path)
	}
	return r.remote().ListDir(ctx, path)
}

// Glob implements fsys.Backend.
func (r *Router) Glob(ctx context.Context, pattern string) iter.Seq2[string, error] {
	if r.binding == nil {
		return r.local.Glob(ctx, pattern)
	}
	return r.remote().Glob(ctx, pattern)
}

// Grep implements fsys.Backend.
func (r *Router) Grep(ctx context.Context, pattern, path string) iter.Seq2[fsys.GrepMatch, error] {
	if r.binding == nil {
		return r.local.Grep(ctx, pattern, path)
	}
	return r.remote().Grep(ctx, pattern, path)
}

// ExecCommand runs a shell command on the active execution target. Locally
// the command runs under bash in the working directory; sandboxed it runs
// inside the bound instance. Stderr is appended to stdout in both cases so
// callers receive one merged transcript.
func (r *Router) ExecCommand(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	if r.binding != nil {
		return r.binding.Execute(ctx, command, timeout)
	}
	return r.execLocal(ctx, command, timeout)
}

func (r *Router) execLocal(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	if timeout <= 0 {
		timeout = DefaultExecTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(cmdCtx, "bash", "-c", command)
	cmd.Dir = r.local.Root()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, err
		}
	}

	output := stdout.String()
	if s := stderr.String(); s != "" {
		if output != "" {
			output += "\n" + s
		} else {
			output = s
		}
	}

	r.logger.Debug("shell.local", "command", command, "exit_code", exitCode, "duration", time.Since(start))
	return &ExecResult{Output: output, ExitCode: exitCode}, nil
}
