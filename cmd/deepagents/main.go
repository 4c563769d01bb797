// Command deepagents runs an autonomous agent loop over a task: each
// iteration starts from fresh context and the working directory carries the
// work forward. Interrupting with Ctrl+C stops the loop and exits 130.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paasplatform/deepagents"
	"github.com/paasplatform/deepagents/config"
	"github.com/paasplatform/deepagents/logging"
)

// exitInterrupted is the conventional exit code for SIGINT.
const exitInterrupted = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(exitInterrupted)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type flags struct {
	iterations     int
	model          string
	modelParams    string
	workDir        string
	sandbox        string
	sandboxID      string
	sandboxSetup   string
	shellAllowList string
	noStream       bool
	verbose        bool
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "deepagents \"task\"",
		Short: "Run an autonomous agent loop over a task",
		Long: `Run an autonomous agent loop over a task. Each iteration starts from
fresh context; the working directory is the agent's memory between
iterations. Stop anytime with Ctrl+C.`,
		Example: `  deepagents "Build a REST API" --iterations 5
  deepagents "Create a CLI tool" --model anthropic:claude-sonnet-4-5-20250929
  deepagents "Build an app" --sandbox modal --sandbox-id my-sandbox
  deepagents "Build an app" --shell-allow-list recommended
  deepagents "Build an app" --model-params '{"temperature": 0.5}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], &f)
		},
	}

	cmd.Flags().IntVar(&f.iterations, "iterations", 0, "max iterations (0 = unlimited)")
	cmd.Flags().StringVar(&f.model, "model", "", "model spec in provider:model form")
	cmd.Flags().StringVar(&f.modelParams, "model-params", "", `JSON model parameters (e.g. '{"temperature": 0.5}')`)
	cmd.Flags().StringVar(&f.workDir, "work-dir", "", "working directory for the agent (default: current directory)")
	cmd.Flags().StringVar(&f.sandbox, "sandbox", "", "sandbox provider (modal, daytona, runloop)")
	cmd.Flags().StringVar(&f.sandboxID, "sandbox-id", "", "existing sandbox instance id to reuse")
	cmd.Flags().StringVar(&f.sandboxSetup, "sandbox-setup", "", "path to a setup script run inside the sandbox")
	cmd.Flags().StringVar(&f.shellAllowList, "shell-allow-list", "", `comma-separated shell commands, or "recommended"`)
	cmd.Flags().BoolVar(&f.noStream, "no-stream", false, "disable streaming output")
	cmd.Flags().BoolVar(&f.verbose, "verbose", false, "enable debug logging")

	return cmd
}

func run(ctx context.Context, task string, f *flags) error {
	settings, err := config.Load("")
	if err != nil {
		return err
	}

	workDir := f.workDir
	if workDir != "" {
		abs, err := filepath.Abs(workDir)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return fmt.Errorf("create working directory: %w", err)
		}
		workDir = abs
	} else {
		if workDir, err = os.Getwd(); err != nil {
			return err
		}
	}

	spec, err := settings.ResolveModel(f.model)
	if err != nil {
		return err
	}
	settings.RememberModel(spec)
	if err := config.Save(settings, ""); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: could not save config:", err)
	}

	var modelParams map[string]any
	if f.modelParams != "" {
		if err := json.Unmarshal([]byte(f.modelParams), &modelParams); err != nil {
			return fmt.Errorf("parse --model-params: %w", err)
		}
	}

	level := logging.LogLevelWarn
	if f.verbose {
		level = logging.LogLevelDebug
	}
	logger := logging.NewSlogLogger(level, "text", false)

	var onText func(string)
	if !f.noStream {
		onText = func(text string) { fmt.Print(text) }
	}

	optFns := []func(o *deepagents.Options){
		deepagents.ApplySettings(settings),
		deepagents.WithModel(spec),
		deepagents.WithModelParams(modelParams),
		deepagents.WithWorkDir(workDir),
		deepagents.WithOnText(onText),
		deepagents.WithLogger(logger),
	}
	if f.sandbox != "" {
		optFns = append(optFns, deepagents.WithSandbox(f.sandbox, f.sandboxID))
	}
	if f.sandboxSetup != "" {
		optFns = append(optFns, deepagents.WithSandboxSetup(f.sandboxSetup))
	}
	if f.shellAllowList != "" {
		optFns = append(optFns, deepagents.WithShellAllowList(config.ParseShellAllowList(f.shellAllowList)))
	}

	agent, err := deepagents.New(ctx, optFns...)
	if err != nil {
		return err
	}
	defer agent.Close()

	printBanner(task, spec, workDir, f, agent)

	iterations, loopErr := agent.Loop(ctx, task, f.iterations)

	fmt.Printf("\n\nFinished after %d iteration(s)\n", iterations)
	if list := agent.Todos().Render(); list != "" {
		fmt.Println()
		fmt.Print(list)
	}
	return loopErr
}

func printBanner(task, spec, workDir string, f *flags, agent *deepagents.Agent) {
	fmt.Println("deepagents")
	fmt.Println("  Task:", task)
	if f.iterations == 0 {
		fmt.Println("  Iterations: unlimited (Ctrl+C to stop)")
	} else {
		fmt.Println("  Iterations:", f.iterations)
	}
	fmt.Println("  Model:", spec)
	if id := agent.SandboxInstanceID(); id != "" {
		fmt.Printf("  Sandbox: %s (id: %s)\n", f.sandbox, id)
	}
	fmt.Println("  Working directory:", workDir)
	fmt.Println()
}
