package tool

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/shlex"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/sandbox"
)

// executeTool runs shell commands on the session's execution target behind a
// command allow-list. An empty allow-list refuses every command; "*" allows
// everything.
type executeTool struct {
	router    *sandbox.Router
	allowList []string
}

// NewExecuteTool constructs the shell tool. allowList holds permitted
// executable names (the first token of the command line); pass "*" to allow
// any command.
func NewExecuteTool(router *sandbox.Router, allowList []string) Tool {
	return &executeTool{router: router, allowList: allowList}
}

func (t *executeTool) Name() string { return "execute" }

func (t *executeTool) Description() string {
	return "Run a shell command and return its merged stdout/stderr output and exit code. Only allow-listed commands are permitted."
}

func (t *executeTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string", "description": "Shell command line to run"},
			"timeout": map[string]any{"type": "integer", "description": "Timeout in seconds; 0 uses the default"},
		},
		"required": []string{"command"},
	}
}

func (t *executeTool) Call(tc *core.ToolContext, args map[string]any) (any, error) {
	command := strings.TrimSpace(stringArg(args, "command"))
	if command == "" {
		return nil, NewToolError(t.Name(), "command must be non-empty", "VALIDATION_ERROR")
	}
	if err := t.checkAllowed(command); err != nil {
		return nil, err
	}

	timeout := time.Duration(intArg(args, "timeout")) * time.Second
	res, err := t.router.ExecCommand(tc.Context(), command, timeout)
	if err != nil {
		return nil, err
	}

	output := res.Output
	if res.Truncated {
		output += "\n(output truncated)"
	}
	if res.ExitCode != 0 {
		output += fmt.Sprintf("\n(exit code %d)", res.ExitCode)
	}
	if output == "" {
		output = "(no output)"
	}
	return output, nil
}

// controlOperators splits a command line into the simple commands joined by
// ; | & && ||. The split is quote-unaware, which can only over-split and
// reject; it never lets a chained command through unchecked.
var controlOperators = regexp.MustCompile(`[;|&]+`)

// checkAllowed verifies every simple command in the line against the
// allow-list, not just the first.
func (t *executeTool) checkAllowed(command string) error {
	if len(t.allowList) == 0 {
		return NewToolError(t.Name(), "shell execution is disabled: allow-list is empty", "PERMISSION_DENIED")
	}
	allowed := make(map[string]struct{}, len(t.allowList))
	for _, a := range t.allowList {
		if a == "*" {
			return nil
		}
		allowed[a] = struct{}{}
	}

	if strings.Contains(command, "$(") || strings.Contains(command, "`") {
		return NewToolError(t.Name(), "command substitution is not permitted", "PERMISSION_DENIED")
	}

	for _, segment := range controlOperators.Split(command, -1) {
		tokens, err := shlex.Split(strings.TrimSpace(segment))
		if err != nil {
			return NewToolError(t.Name(), fmt.Sprintf("unparseable command: %v", err), "VALIDATION_ERROR")
		}
		if len(tokens) == 0 {
			continue
		}
		name := tokens[0]
		if idx := strings.LastIndex(name, "/"); idx >= 0 {
			name = name[idx+1:]
		}
		if _, ok := allowed[name]; !ok {
			return NewToolError(t.Name(), fmt.Sprintf("command %q is not on the allow-list", name), "PERMISSION_DENIED")
		}
	}
	return nil
}
