// Package config loads and persists CLI settings: the default and recently
// used model specs, the shell allow-list and sandbox selection. Settings live
// in ~/.deepagents/config.toml; a missing file loads as defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// File locations under the user's home directory.
const (
	Dir  = ".deepagents"
	File = "config.toml"
)

// maxRecentModels caps the recent-model history.
const maxRecentModels = 5

// recommendedShellCommands is the builtin allow-list the literal value
// "recommended" expands to. Inspection and local build commands only; nothing
// that reaches the network except git.
var recommendedShellCommands = []string{
	"cat", "diff", "echo", "find", "git", "grep", "head", "ls",
	"mkdir", "pwd", "rg", "sed", "sort", "tail", "touch", "wc",
}

// Models holds model selection state.
type Models struct {
	// Default is the preferred model spec in provider:model form.
	Default string `toml:"default" mapstructure:"default"`
	// Recent lists previously used specs, most recent first.
	Recent []string `toml:"recent" mapstructure:"recent"`
}

// Sandbox holds the remote execution selection.
type Sandbox struct {
	// Provider names the sandbox provider ("none", "modal", "daytona",
	// "runloop").
	Provider string `toml:"provider" mapstructure:"provider"`
	// InstanceID is an existing instance to attach to. Empty means create.
	InstanceID string `toml:"instance_id" mapstructure:"instance_id"`
	// SetupScript is a script path run once inside a fresh sandbox.
	SetupScript string `toml:"setup_script" mapstructure:"setup_script"`
}

// Settings is the persisted CLI configuration.
type Settings struct {
	Models  Models  `toml:"models" mapstructure:"models"`
	Sandbox Sandbox `toml:"sandbox" mapstructure:"sandbox"`
	// ShellAllowList names the commands the execute tool may run. Empty
	// disables shell execution.
	ShellAllowList []string `toml:"shell_allow_list" mapstructure:"shell_allow_list"`
	// MaxSteps caps reasoner steps per turn. 0 means unlimited.
	MaxSteps int `toml:"max_steps" mapstructure:"max_steps"`
	// MaxConcurrentSubagents caps parallel subagent runs. 0 uses the
	// dispatcher default.
	MaxConcurrentSubagents int `toml:"max_concurrent_subagents" mapstructure:"max_concurrent_subagents"`
}

// DefaultPath returns the config file path under the user's home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, Dir, File), nil
}

// Load reads settings from the given path. An empty path means DefaultPath;
// a missing file loads as zero-value settings without error.
func Load(path string) (*Settings, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Settings{Sandbox: Sandbox{Provider: "none"}}, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if s.Sandbox.Provider == "" {
		s.Sandbox.Provider = "none"
	}
	return &s, nil
}

// Save writes settings to the given path, creating parent directories. An
// empty path means DefaultPath.
func Save(s *Settings, path string) error {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// RememberModel records a model spec as most recently used, deduplicating
// and trimming the history.
func (s *Settings) RememberModel(spec string) {
	if spec == "" {
		return
	}
	recent := []string{spec}
	for _, r := range s.Models.Recent {
		if r != spec {
			recent = append(recent, r)
		}
	}
	if len(recent) > maxRecentModels {
		recent = recent[:maxRecentModels]
	}
	s.Models.Recent = recent
}

// ResolveModel picks the model spec to use: an explicit flag wins, then the
// configured default, then the most recent, then auto-detection from API key
// environment variables.
func (s *Settings) ResolveModel(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if s.Models.Default != "" {
		return s.Models.Default, nil
	}
	if len(s.Models.Recent) > 0 {
		return s.Models.Recent[0], nil
	}
	if os.Getenv("ANTHROPIC_API_KEY") != "" {
		return "anthropic:claude-sonnet-4-5-20250929", nil
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return "openai:gpt-4o", nil
	}
	return "", fmt.Errorf("no model configured: pass --model, set [models].default, or export ANTHROPIC_API_KEY / OPENAI_API_KEY")
}

// ParseShellAllowList parses the CLI flag form of the allow-list: a comma
// separated command list, or "recommended" for the builtin safe set. "*"
// passes through and allows everything.
func ParseShellAllowList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if raw == "recommended" {
		out := make([]string, len(recommendedShellCommands))
		copy(out, recommendedShellCommands)
		return out
	}
	seen := map[string]struct{}{}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		cmd := strings.TrimSpace(part)
		if cmd == "" {
			continue
		}
		if _, dup := seen[cmd]; dup {
			continue
		}
		seen[cmd] = struct{}{}
		out = append(out, cmd)
	}
	sort.Strings(out)
	return out
}
