package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/logging"
)

// State is the liveness state of a Binding.
type State int

const (
	// StateConnecting means the binding has not finished create-or-attach
	// plus setup. Operations fail with core.ErrSandboxUnavailable.
	StateConnecting State = iota
	// StateReady means the instance is usable.
	StateReady
	// StateFailed means attach or setup failed; all operations fail fast.
	StateFailed
	// StateClosed means the binding was released. The remote instance may
	// keep running for reuse by id.
	StateClosed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// setupScriptPath is where the setup script lands inside the instance.
const setupScriptPath = "/tmp/.deepagents-setup.sh"

// BindingOptions configures a Binding.
type BindingOptions struct {
	// InstanceID requests attach to an existing instance. Empty creates a
	// fresh one.
	InstanceID string
	// SetupScript is the script content executed exactly once when the
	// binding transitions into ready. A nonzero exit fails the binding.
	SetupScript string
	// Logger used for binding lifecycle and operation logging.
	Logger logging.Logger
}

// Binding owns one sandbox instance for a session: it performs
// create-or-attach, runs the setup script exactly once, tracks liveness, and
// serializes every operation so concurrent subagents never interleave work
// against the same instance.
type Binding struct {
	provider Provider
	opts     BindingOptions

	mu       sync.Mutex // serializes operations against the instance
	stateMu  sync.RWMutex
	state    State
	instance Instance

	connectOnce sync.Once
	connectErr  error

	logger logging.Logger
}

// NewBinding constructs an unconnected binding. Call Connect before use.
func NewBinding(provider Provider, optFns ...func(o *BindingOptions)) *Binding {
	opts := BindingOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Binding{provider: provider, opts: opts, state: StateConnecting, logger: logger}
}

// WithInstanceID requests attach-or-create against an existing instance id.
func WithInstanceID(id string) func(o *BindingOptions) {
	return func(o *BindingOptions) { o.InstanceID = id }
}

// WithSetupScript sets the script content run once at readiness.
func WithSetupScript(script string) func(o *BindingOptions) {
	return func(o *BindingOptions) { o.SetupScript = script }
}

// WithLogger sets the binding logger.
func WithLogger(l logging.Logger) func(o *BindingOptions) {
	return func(o *BindingOptions) { o.Logger = l }
}

// State returns the current liveness state.
func (b *Binding) State() State {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.state
}

func (b *Binding) setState(s State) {
	b.stateMu.Lock()
	b.state = s
	b.stateMu.Unlock()
}

// InstanceID returns the live instance identifier, or empty if not connected.
func (b *Binding) InstanceID() string {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	if b.instance == nil {
		return ""
	}
	return b.instance.ID()
}

// Provider returns the provider name backing this binding.
func (b *Binding) Provider() string { return b.provider.Name() }

// Connect performs create-or-attach and runs the setup script. It is
// idempotent: concurrent and repeated calls observe the first outcome. A
// setup script exiting nonzero moves the binding to failed; no further
// operations are attempted against it.
func (b *Binding) Connect(ctx context.Context) error {
	b.connectOnce.Do(func() {
		b.connectErr = b.connect(ctx)
	})
	return b.connectErr
}

func (b *Binding) connect(ctx context.Context) error {
	start := time.Now()
	inst, err := b.provider.CreateOrAttach(ctx, b.opts.InstanceID)
	if err != nil {
		b.setState(StateFailed)
		b.logger.Error("sandbox.connect.failed", "provider", b.provider.Name(), "instance_id", b.opts.InstanceID, "error", err.Error())
		return err
	}

	b.stateMu.Lock()
	b.instance = inst
	b.stateMu.Unlock()

	if b.opts.SetupScript != "" {
		if err := b.runSetup(ctx, inst); err != nil {
			b.setState(StateFailed)
			return err
		}
	}

	b.setState(StateReady)
	b.logger.Info("sandbox.connect.ready", "provider", b.provider.Name(), "instance_id", inst.ID(), "duration", time.Since(start))
	return nil
}

func (b *Binding) runSetup(ctx context.Context, inst Instance) error {
	if err := inst.UploadFiles(ctx, []FileUpload{{Path: setupScriptPath, Content: []byte(b.opts.SetupScript)}}); err != nil {
		return fmt.Errorf("uploading setup script: %w", err)
	}
	res, err := inst.Execute(ctx, "bash "+setupScriptPath, 0)
	if err != nil {
		return fmt.Errorf("running setup script: %w", err)
	}
	if res.ExitCode != 0 {
		b.logger.Error("sandbox.setup.failed", "instance_id", inst.ID(), "exit_code", res.ExitCode)
		return &core.SetupScriptError{Script: setupScriptPath, ExitCode: res.ExitCode, Output: res.Output}
	}
	return nil
}

// ready returns the instance if the binding is usable, or a
// core.ErrSandboxUnavailable wrapper naming the current state.
func (b *Binding) ready() (Instance, error) {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	if b.state != StateReady {
		return nil, fmt.Errorf("binding is %s: %w", b.state, core.ErrSandboxUnavailable)
	}
	return b.instance, nil
}

// run executes fn against the instance while holding the operation mutex.
// Compound operations pass a multi-step fn so their primitives stay one
// critical section: a concurrent caller can never slip work between the
// steps of another caller's sequence.
func (b *Binding) run(op string, fn func(inst Instance) error) error {
	inst, err := b.ready()
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	start := time.Now()
	err = fn(inst)
	b.logOp(op, start, err)
	return err
}

// Execute runs a shell command on the instance. Calls are serialized: two
// concurrent callers never interleave their commands' output.
func (b *Binding) Execute(ctx context.Context, command string, timeout time.Duration) (*ExecResult, error) {
	var res *ExecResult
	err := b.run("execute", func(inst Instance) error {
		var execErr error
		res, execErr = inst.Execute(ctx, command, timeout)
		return execErr
	})
	return res, err
}

// UploadFiles places files into the instance, serialized with all other
// operations on this binding.
func (b *Binding) UploadFiles(ctx context.Context, files []FileUpload) error {
	return b.run("upload", func(inst Instance) error {
		return inst.UploadFiles(ctx, files)
	})
}

// DownloadFiles fetches files from the instance, serialized with all other
// operations on this binding.
func (b *Binding) DownloadFiles(ctx context.Context, paths []string) ([]FileDownload, error) {
	var out []FileDownload
	err := b.run("download", func(inst Instance) error {
		var dlErr error
		out, dlErr = inst.DownloadFiles(ctx, paths)
		return dlErr
	})
	return out, err
}

func (b *Binding) logOp(op string, start time.Time, err error) {
	if sl, ok := b.logger.(logging.SandboxOpLogger); ok {
		sl.LogSandboxOp(b.provider.Name(), b.InstanceID(), op, time.Since(start), err)
		return
	}
	if err != nil {
		b.logger.Error("sandbox.op.failed", "provider", b.provider.Name(), "operation", op, "duration", time.Since(start), "error", err.Error())
		return
	}
	b.logger.Debug("sandbox.op", "provider", b.provider.Name(), "operation", op, "duration", time.Since(start))
}

// Close releases the binding. The remote instance is not terminated so it
// can be reused later by id.
func (b *Binding) Close() {
	b.setState(StateClosed)
}
