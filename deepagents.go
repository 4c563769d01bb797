// Package deepagents provides a high-level façade over the agent runtime:
// the reasoning loop, the tool layer, sandboxed execution, persistent memory,
// skills and the session work list. Most applications interact with this
// package by:
//  1. Creating an Agent via New() (choosing model, working directory and
//     optionally a sandbox provider)
//  2. Running a single turn with Run() or the autonomous loop with Loop()
//  3. Releasing resources with Close()
//
// The façade wires the underlying packages together while keeping setup
// ergonomics concise. All defaults are safe for local development; remote
// execution is opt-in per sandbox provider.
package deepagents

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/paasplatform/deepagents/config"
	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/fsys"
	"github.com/paasplatform/deepagents/logging"
	"github.com/paasplatform/deepagents/memory"
	"github.com/paasplatform/deepagents/model"
	anthropicmodel "github.com/paasplatform/deepagents/model/anthropic"
	openaimodel "github.com/paasplatform/deepagents/model/openai"
	"github.com/paasplatform/deepagents/runner"
	"github.com/paasplatform/deepagents/sandbox"
	"github.com/paasplatform/deepagents/sandbox/daytona"
	"github.com/paasplatform/deepagents/sandbox/modal"
	"github.com/paasplatform/deepagents/sandbox/runloop"
	"github.com/paasplatform/deepagents/session"
	"github.com/paasplatform/deepagents/skill"
	"github.com/paasplatform/deepagents/subagent"
	"github.com/paasplatform/deepagents/todo"
	"github.com/paasplatform/deepagents/tool"
)

// Options configures an Agent.
type Options struct {
	// Model is the reasoner spec in provider:model form. Required unless
	// Reasoner is set.
	Model string
	// ModelParams carries provider parameters ("temperature", "max_tokens").
	ModelParams map[string]any
	// Reasoner overrides model resolution entirely. Used by tests and
	// embedders with their own adapter.
	Reasoner model.Reasoner

	// WorkDir is the agent's working directory. Defaults to the current
	// directory.
	WorkDir string

	// Sandbox selects the remote execution provider: "none" (default),
	// "modal", "daytona" or "runloop".
	Sandbox string
	// SandboxID attaches to an existing instance instead of creating one.
	SandboxID string
	// SandboxSetup is a local path to a script run once inside a fresh
	// sandbox.
	SandboxSetup string

	// ShellAllowList names the commands the execute tool may run. Empty
	// disables shell execution.
	ShellAllowList []string

	// MaxSteps caps reasoner steps per turn. 0 means unlimited.
	MaxSteps int
	// MaxConcurrentSubagents caps parallel subagent runs. 0 uses the
	// dispatcher default.
	MaxConcurrentSubagents int

	// Instructions overrides the base system framing.
	Instructions string
	// OnText receives answer text as it is produced. For providers with a
	// streaming path it also receives incremental deltas.
	OnText func(text string)

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// WithModel sets the reasoner spec.
func WithModel(spec string) func(o *Options) {
	return func(o *Options) { o.Model = spec }
}

// WithModelParams sets provider parameters.
func WithModelParams(params map[string]any) func(o *Options) {
	return func(o *Options) { o.ModelParams = params }
}

// WithReasoner injects a reasoner directly, bypassing model resolution.
func WithReasoner(r model.Reasoner) func(o *Options) {
	return func(o *Options) { o.Reasoner = r }
}

// WithWorkDir sets the working directory.
func WithWorkDir(dir string) func(o *Options) {
	return func(o *Options) { o.WorkDir = dir }
}

// WithSandbox selects a sandbox provider, optionally attaching to an
// existing instance.
func WithSandbox(provider, instanceID string) func(o *Options) {
	return func(o *Options) { o.Sandbox = provider; o.SandboxID = instanceID }
}

// WithSandboxSetup sets the local path of the sandbox setup script.
func WithSandboxSetup(path string) func(o *Options) {
	return func(o *Options) { o.SandboxSetup = path }
}

// WithShellAllowList enables the execute tool for the named commands.
func WithShellAllowList(commands []string) func(o *Options) {
	return func(o *Options) { o.ShellAllowList = commands }
}

// WithMaxSteps caps reasoner steps per turn.
func WithMaxSteps(n int) func(o *Options) {
	return func(o *Options) { o.MaxSteps = n }
}

// WithMaxConcurrentSubagents caps parallel subagent runs.
func WithMaxConcurrentSubagents(n int) func(o *Options) {
	return func(o *Options) { o.MaxConcurrentSubagents = n }
}

// WithInstructions overrides the base system framing.
func WithInstructions(instructions string) func(o *Options) {
	return func(o *Options) { o.Instructions = instructions }
}

// WithOnText sets the answer text callback.
func WithOnText(fn func(text string)) func(o *Options) {
	return func(o *Options) { o.OnText = fn }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// Agent is the assembled runtime: one session, one tool registry, one
// execution target.
type Agent struct {
	runner   *runner.Runner
	router   *sandbox.Router
	mem      *memory.Store
	todos    *todo.Tracker
	session  *core.Session
	sessions *session.Store
	logger   logging.Logger
}

// New assembles an agent. When a sandbox provider is configured the binding
// is connected (and its setup script run) before New returns; a failed
// connect fails construction rather than silently falling back to local
// execution.
func New(ctx context.Context, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		Sandbox:  "none",
		MaxSteps: runner.DefaultMaxSteps,
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		workDir = wd
	}

	reasoner := opts.Reasoner
	if reasoner == nil {
		r, err := NewReasoner(opts.Model, opts.ModelParams, opts.OnText)
		if err != nil {
			return nil, err
		}
		reasoner = r
	}

	local := fsys.NewLocal(workDir)
	routerOpts := []func(o *sandbox.RouterOptions){sandbox.WithRouterLogger(opts.Logger)}

	if opts.Sandbox != "" && opts.Sandbox != "none" {
		provider, err := sandboxProvider(opts.Sandbox)
		if err != nil {
			return nil, err
		}
		var setupScript string
		if opts.SandboxSetup != "" {
			content, err := os.ReadFile(opts.SandboxSetup)
			if err != nil {
				return nil, fmt.Errorf("read setup script %s: %w", opts.SandboxSetup, err)
			}
			setupScript = string(content)
		}
		binding := sandbox.NewBinding(provider,
			sandbox.WithInstanceID(opts.SandboxID),
			sandbox.WithSetupScript(setupScript),
			sandbox.WithLogger(opts.Logger),
		)
		if err := binding.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect %s sandbox: %w", opts.Sandbox, err)
		}
		routerOpts = append(routerOpts, sandbox.WithBinding(binding))
	}

	router := sandbox.NewRouter(local, routerOpts...)

	mem := memory.New(router, workDir, memory.WithLogger(opts.Logger))
	// Mid-session edits land through the router, including inside a sandbox
	// where the local watcher sees nothing.
	router.ObserveWrites(mem.Observe)
	if err := mem.Watch(); err != nil {
		opts.Logger.Warn("memory watcher unavailable", "error", err)
	}

	skills, err := skill.Load(ctx, router, workDir, skill.WithLogger(opts.Logger))
	if err != nil {
		return nil, fmt.Errorf("load skills: %w", err)
	}

	tracker := todo.NewTracker()

	tools := tool.FilesystemTools(router)
	tools = append(tools,
		tool.NewExecuteTool(router, opts.ShellAllowList),
		tool.NewWriteTodosTool(tracker),
	)
	registry, err := tool.NewRegistry(tools...)
	if err != nil {
		return nil, err
	}

	sessions := session.NewStore()
	sess := core.NewSession(core.NewID(), workDir)
	run := runner.New(reasoner, registry, sess,
		runner.WithMaxSteps(opts.MaxSteps),
		runner.WithInstructions(opts.Instructions),
		runner.WithMemory(mem),
		runner.WithSkills(skills),
		runner.WithTodos(tracker),
		runner.WithOnText(opts.OnText),
		runner.WithSessions(sessions),
		runner.WithLogger(opts.Logger),
	)

	dispatcherOpts := []func(o *subagent.Options){subagent.WithLogger(opts.Logger)}
	if opts.MaxConcurrentSubagents > 0 {
		dispatcherOpts = append(dispatcherOpts, subagent.WithMaxConcurrent(opts.MaxConcurrentSubagents))
	}
	dispatcher := subagent.NewDispatcher(run.ChildRunner(), dispatcherOpts...)

	// Registered late: the dispatcher needs the runner, the runner needs the
	// registry. The registry pointer is shared, so the runner sees the tool.
	if err := registry.Register(tool.NewTaskTool(dispatcher)); err != nil {
		return nil, err
	}

	return &Agent{
		runner:   run,
		router:   router,
		mem:      mem,
		todos:    tracker,
		session:  sess,
		sessions: sessions,
		logger:   opts.Logger,
	}, nil
}

// Run executes one full reasoning turn and returns the final answer.
func (a *Agent) Run(ctx context.Context, userText string) (string, error) {
	return a.runner.Turn(ctx, userText)
}

// Loop runs the autonomous iteration mode. It returns the number of
// iterations started.
func (a *Agent) Loop(ctx context.Context, task string, maxIterations int) (int, error) {
	return a.runner.Loop(ctx, task, maxIterations)
}

// Session returns the agent's session.
func (a *Agent) Session() *core.Session { return a.session }

// Todos returns the agent's work list.
func (a *Agent) Todos() *todo.Tracker { return a.todos }

// Sessions returns the registry of completed run transcripts, including
// subagent runs and loop iterations.
func (a *Agent) Sessions() *session.Store { return a.sessions }

// SandboxInstanceID returns the live sandbox instance id, or empty for local
// execution.
func (a *Agent) SandboxInstanceID() string {
	if b := a.router.Binding(); b != nil {
		return b.InstanceID()
	}
	return ""
}

// Close releases the agent's resources. A remote sandbox instance is not
// terminated; it stays reusable by id.
func (a *Agent) Close() error {
	if b := a.router.Binding(); b != nil {
		b.Close()
	}
	return a.mem.Close()
}

// NewReasoner resolves a provider:model spec into a reasoner. A bare model
// name is accepted when the provider is recognizable from the name. streamFn,
// when non-nil, receives incremental output on providers with a streaming
// path.
func NewReasoner(spec string, params map[string]any, streamFn func(string)) (model.Reasoner, error) {
	provider, name, err := model.ParseSpec(spec)
	if err != nil {
		return nil, err
	}
	if provider == "" {
		provider = inferProvider(name)
		if provider == "" {
			return nil, fmt.Errorf("model spec %q needs a provider prefix (anthropic: or openai:)", spec)
		}
	}

	switch provider {
	case "anthropic":
		optFns := []func(o *anthropicmodel.Options){anthropicmodel.WithModel(name)}
		if t, ok := floatParam(params, "temperature"); ok {
			optFns = append(optFns, anthropicmodel.WithTemperature(t))
		}
		if n, ok := intParam(params, "max_tokens"); ok {
			optFns = append(optFns, anthropicmodel.WithMaxTokens(n))
		}
		return anthropicmodel.New(optFns...), nil

	case "openai":
		optFns := []func(o *openaimodel.Options){openaimodel.WithModel(name)}
		if t, ok := floatParam(params, "temperature"); ok {
			optFns = append(optFns, openaimodel.WithTemperature(t))
		}
		if n, ok := intParam(params, "max_tokens"); ok {
			optFns = append(optFns, openaimodel.WithMaxCompletionTokens(n))
		}
		if streamFn != nil {
			optFns = append(optFns, openaimodel.WithStreamHandler(streamFn))
		}
		return openaimodel.New(optFns...), nil

	default:
		return nil, fmt.Errorf("unsupported model provider %q", provider)
	}
}

// inferProvider guesses the provider from a bare model name.
func inferProvider(name string) string {
	switch {
	case strings.HasPrefix(name, "claude"):
		return "anthropic"
	case strings.HasPrefix(name, "gpt"), strings.HasPrefix(name, "o1"), strings.HasPrefix(name, "o3"), strings.HasPrefix(name, "o4"):
		return "openai"
	default:
		return ""
	}
}

func floatParam(params map[string]any, key string) (float64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func intParam(params map[string]any, key string) (int64, bool) {
	v, ok := params[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	default:
		return 0, false
	}
}

// sandboxProvider maps a provider name to its adapter.
func sandboxProvider(name string) (sandbox.Provider, error) {
	switch name {
	case "modal":
		return modal.New(), nil
	case "daytona":
		return daytona.New(), nil
	case "runloop":
		return runloop.New(), nil
	default:
		return nil, fmt.Errorf("unknown sandbox provider %q", name)
	}
}

// ApplySettings folds persisted settings into façade options. Explicit
// options set by the caller keep precedence because option functions run
// after this one.
func ApplySettings(s *config.Settings) func(o *Options) {
	return func(o *Options) {
		if s == nil {
			return
		}
		if s.Sandbox.Provider != "" {
			o.Sandbox = s.Sandbox.Provider
		}
		o.SandboxID = s.Sandbox.InstanceID
		o.SandboxSetup = s.Sandbox.SetupScript
		if len(s.ShellAllowList) > 0 {
			o.ShellAllowList = append([]string(nil), s.ShellAllowList...)
		}
		if s.MaxSteps > 0 {
			o.MaxSteps = s.MaxSteps
		}
		if s.MaxConcurrentSubagents > 0 {
			o.MaxConcurrentSubagents = s.MaxConcurrentSubagents
		}
	}
}
