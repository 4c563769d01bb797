package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/internal/util"
	"github.com/paasplatform/deepagents/logging"
	"github.com/paasplatform/deepagents/model"
	"github.com/paasplatform/deepagents/session"
	"github.com/paasplatform/deepagents/subagent"
	"github.com/paasplatform/deepagents/tool"
)

// DefaultMaxSteps caps reasoner steps per turn when no explicit limit is
// configured.
const DefaultMaxSteps = 50

const defaultInstructions = `You are a capable engineering agent working inside a session workspace.

Use the available tools to inspect and modify files, run shell commands, and
keep your plan current with write_todos. Delegate self-contained work to a
subagent with the task tool. When the work is done, reply with your final
answer and stop calling tools.`

// WorkList is the todo surface the runner renders into turn context.
// todo.Tracker satisfies it.
type WorkList interface {
	core.TodoTracker
	Render() string
}

// Options configures a Runner.
type Options struct {
	// MaxSteps caps reasoner steps per turn. 0 means unlimited.
	MaxSteps int
	// Instructions is the base system framing. Go template markers are
	// expanded against {WorkDir, SessionID}. Defaults to a general
	// engineering-agent prompt.
	Instructions string
	// Memory supplies the persistent memory snapshot for turn context.
	Memory core.MemoryStore
	// Skills supplies the capability catalog listed in turn context.
	Skills core.SkillIndex
	// Todos supplies the work list rendered into turn context.
	Todos WorkList
	// OnText receives final answer text as it is produced. Optional.
	OnText func(text string)
	// Sessions records completed run transcripts. Optional.
	Sessions *session.Store
	// Logger receives turn and tool events. Defaults to logging.NoOpLogger.
	Logger logging.Logger
}

// WithMaxSteps overrides the per-turn step limit.
func WithMaxSteps(n int) func(o *Options) {
	return func(o *Options) { o.MaxSteps = n }
}

// WithInstructions overrides the base system framing.
func WithInstructions(instructions string) func(o *Options) {
	return func(o *Options) { o.Instructions = instructions }
}

// WithMemory wires the persistent memory store.
func WithMemory(m core.MemoryStore) func(o *Options) {
	return func(o *Options) { o.Memory = m }
}

// WithSkills wires the skill index.
func WithSkills(s core.SkillIndex) func(o *Options) {
	return func(o *Options) { o.Skills = s }
}

// WithTodos wires the work list.
func WithTodos(w WorkList) func(o *Options) {
	return func(o *Options) { o.Todos = w }
}

// WithOnText sets the final-text callback.
func WithOnText(fn func(text string)) func(o *Options) {
	return func(o *Options) { o.OnText = fn }
}

// WithSessions wires the transcript registry.
func WithSessions(store *session.Store) func(o *Options) {
	return func(o *Options) { o.Sessions = store }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// Runner alternates reasoner steps with tool execution until the reasoner
// produces a final answer. It owns no global state; everything it touches is
// reachable from its session.
type Runner struct {
	reasoner model.Reasoner
	registry *tool.Registry
	session  *core.Session
	opts     Options
}

// New creates a runner over a reasoner, tool registry and session.
func New(reasoner model.Reasoner, registry *tool.Registry, session *core.Session, optFns ...func(o *Options)) *Runner {
	opts := Options{
		MaxSteps:     DefaultMaxSteps,
		Instructions: defaultInstructions,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Instructions == "" {
		opts.Instructions = defaultInstructions
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Runner{reasoner: reasoner, registry: registry, session: session, opts: opts}
}

// Session returns the runner's session.
func (r *Runner) Session() *core.Session { return r.session }

// Turn runs one full reasoning turn for the given user input and returns the
// final answer text. Memory, skills and the work list are snapshotted once at
// turn start; changes committed mid-turn take effect from the next turn.
func (r *Runner) Turn(ctx context.Context, userText string) (string, error) {
	turnID := core.NewID()
	limiter := core.NewStepLimiter(r.opts.MaxSteps)
	system := r.buildSystem(ctx)

	if r.opts.Sessions != nil {
		defer r.opts.Sessions.Put(r.session)
	}

	r.session.AddMessage(core.NewUserMessage(userText))
	r.opts.Logger.Debug("turn started", "session_id", r.session.ID, "turn_id", turnID)

	for {
		if err := limiter.Increment(); err != nil {
			return "", fmt.Errorf("turn %s: %w", turnID, err)
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		step, err := r.reasoner.Next(ctx, model.Request{
			System:   system,
			Messages: r.session.History(),
			Tools:    r.registry.Descriptors(),
		})
		if err != nil {
			return "", fmt.Errorf("reasoner step: %w", err)
		}

		r.session.AddMessage(core.NewAssistantMessage(step.Text, step.ToolCalls))

		if step.Final() {
			if r.opts.OnText != nil && step.Text != "" {
				r.opts.OnText(step.Text)
			}
			r.opts.Logger.Debug("turn finished", "turn_id", turnID, "steps", limiter.Count())
			return step.Text, nil
		}

		results := r.executeCalls(ctx, turnID, step.ToolCalls)
		r.session.AddMessage(core.NewToolMessage(results))
	}
}

// executeCalls runs one step's tool calls and returns results in issuance
// order. Subagent dispatch calls run concurrently with each other and with
// the rest of the batch; all other tools run inline in order.
func (r *Runner) executeCalls(ctx context.Context, turnID string, calls []core.ToolCall) []core.ToolResult {
	results := make([]core.ToolResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		if call.Name != "task" {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.executeCall(ctx, turnID, call)
		}()
	}
	for i, call := range calls {
		if call.Name == "task" {
			continue
		}
		results[i] = r.executeCall(ctx, turnID, call)
	}
	wg.Wait()

	return results
}

// executeCall resolves and runs a single tool call. Failures become error
// results fed back to the reasoner; they never abort the turn.
func (r *Runner) executeCall(ctx context.Context, turnID string, call core.ToolCall) core.ToolResult {
	result := core.ToolResult{CallID: call.ID, Name: call.Name}

	t, ok := r.registry.Get(call.Name)
	if !ok {
		result.IsError = true
		result.Content = fmt.Sprintf("unknown tool %q", call.Name)
		return result
	}

	args := map[string]any{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			result.IsError = true
			result.Content = fmt.Sprintf("invalid tool arguments: %v", err)
			return result
		}
	}

	toolCtx := core.NewToolContext(ctx, r.session, turnID, call.ID, r.opts.Logger)
	start := time.Now()
	output, err := t.Call(toolCtx, args)
	if tl, ok := r.opts.Logger.(logging.ToolCallLogger); ok {
		tl.LogToolCall(call.Name, time.Since(start), err == nil, err)
	}
	if err != nil {
		result.IsError = true
		result.Content = err.Error()
		return result
	}

	result.Content = renderOutput(output)
	return result
}

// renderOutput converts a tool's return value into result text.
func renderOutput(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// buildSystem assembles the turn's system context: base instructions, the
// memory snapshot, the skill catalog and the current work list. Assembled
// once per turn.
func (r *Runner) buildSystem(ctx context.Context) string {
	instructions, err := util.RenderTemplate(r.opts.Instructions, map[string]any{
		"WorkDir":   r.session.WorkDir,
		"SessionID": r.session.ID,
	})
	if err != nil {
		r.opts.Logger.Warn("instruction template failed", "error", err)
		instructions = r.opts.Instructions
	}
	sections := []string{instructions}

	if r.opts.Memory != nil {
		snapshot, err := r.opts.Memory.Snapshot(ctx)
		if err != nil {
			r.opts.Logger.Warn("memory snapshot failed", "error", err)
		} else if snapshot != "" {
			sections = append(sections, "# Memory\n\n"+snapshot)
		}
	}

	if r.opts.Skills != nil {
		if catalog := renderSkills(r.opts.Skills.List()); catalog != "" {
			sections = append(sections, catalog)
		}
	}

	if r.opts.Todos != nil {
		if list := r.opts.Todos.Render(); list != "" {
			sections = append(sections, list)
		}
	}

	return strings.Join(sections, "\n\n")
}

// renderSkills formats the skill catalog. Full instructions stay on disk
// until the reasoner reads a skill's document.
func renderSkills(entries []core.SkillEntry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("# Skills\n\nRead a skill's document before using it:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- %s: %s (%s)\n", e.Name, e.Description, e.Location)
	}
	return strings.TrimRight(b.String(), "\n")
}

// ChildRunner adapts this runner into a subagent executor. Each child gets a
// fresh session at the same working directory, the parent's tool set minus
// dispatch and the parent's work-list mutator (narrowed further when the
// task names tools), and shares the memory store and skill index. Children
// do not see or touch the parent's history or work list.
func (r *Runner) ChildRunner() subagent.Runner {
	return subagent.RunnerFunc(func(ctx context.Context, task subagent.Task) (string, error) {
		registry := r.registry.Without("task", "write_todos")
		if len(task.Tools) > 0 {
			registry = registry.Subset(task.Tools)
		}

		instructions := task.Instructions
		if instructions == "" {
			instructions = r.opts.Instructions
		}

		child := New(r.reasoner, registry, core.NewSession(core.NewID(), r.session.WorkDir),
			WithMaxSteps(r.opts.MaxSteps),
			WithInstructions(instructions),
			WithMemory(r.opts.Memory),
			WithSkills(r.opts.Skills),
			WithSessions(r.opts.Sessions),
			WithLogger(r.opts.Logger),
		)
		return child.Turn(ctx, task.Input)
	})
}
