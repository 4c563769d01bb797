package skill

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/fsys"
	"github.com/paasplatform/deepagents/logging"
)

// Dir is the skills subdirectory under a project or user configuration root.
const Dir = ".deepagents/skills"

// Document is the filename every skill directory must contain.
const Document = "SKILL.md"

// resolveReadLimit bounds a resolved skill document.
const resolveReadLimit = 10000

// frontmatter is the YAML header of a SKILL.md.
type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// Options configures index discovery.
type Options struct {
	// UserRoot is the user-scope skills directory. Defaults to
	// ~/.deepagents/skills; empty disables the user scope.
	UserRoot string
	// Logger receives discovery events. Defaults to logging.NoOpLogger.
	Logger logging.Logger
}

// WithUserRoot overrides the user-scope skills directory.
func WithUserRoot(root string) func(o *Options) {
	return func(o *Options) { o.UserRoot = root }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// Index is a core.SkillIndex discovered once at load time. Entries are sorted
// by name; a project-scope entry silently shadows a user-scope entry of the
// same name.
type Index struct {
	backend fsys.Backend
	entries []core.SkillEntry
	byName  map[string]core.SkillEntry
	logger  logging.Logger
}

var _ core.SkillIndex = (*Index)(nil)

// Load scans the project and user skill roots and builds the catalog.
// Malformed skill directories are skipped with a warning, never fatal.
func Load(ctx context.Context, backend fsys.Backend, workDir string, optFns ...func(o *Options)) (*Index, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	if home, err := os.UserHomeDir(); err == nil {
		opts.UserRoot = filepath.Join(home, Dir)
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	idx := &Index{
		backend: backend,
		byName:  make(map[string]core.SkillEntry),
		logger:  opts.Logger,
	}

	roots := []struct {
		dir   string
		scope core.SkillScope
	}{
		{filepath.Join(workDir, Dir), core.SkillScopeProject},
		{opts.UserRoot, core.SkillScopeUser},
	}
	for _, root := range roots {
		if root.dir == "" {
			continue
		}
		if err := idx.scan(ctx, root.dir, root.scope); err != nil {
			return nil, fmt.Errorf("scanning skills under %s: %w", root.dir, err)
		}
	}

	idx.entries = make([]core.SkillEntry, 0, len(idx.byName))
	for _, e := range idx.byName {
		idx.entries = append(idx.entries, e)
	}
	sort.Slice(idx.entries, func(i, j int) bool { return idx.entries[i].Name < idx.entries[j].Name })
	return idx, nil
}

func (i *Index) scan(ctx context.Context, root string, scope core.SkillScope) error {
	entries, err := i.backend.ListDir(ctx, root)
	if err != nil {
		// A missing root is the common case, not a failure.
		i.logger.Debug("skill root not readable", "root", root, "error", err)
		return nil
	}
	for _, e := range entries {
		if !e.IsDir {
			continue
		}
		location := filepath.Join(root, e.Name, Document)
		fm, err := i.readFrontmatter(ctx, location)
		if err != nil {
			i.logger.Warn("skipping malformed skill", "location", location, "error", err)
			continue
		}
		if fm.Name == "" {
			fm.Name = e.Name
		}
		if existing, ok := i.byName[fm.Name]; ok && existing.Scope == core.SkillScopeProject {
			// Project scope wins name collisions.
			continue
		}
		i.byName[fm.Name] = core.SkillEntry{
			Name:        fm.Name,
			Description: fm.Description,
			Location:    location,
			Scope:       scope,
		}
	}
	return nil
}

func (i *Index) readFrontmatter(ctx context.Context, location string) (*frontmatter, error) {
	content, err := i.readAll(ctx, location)
	if err != nil {
		return nil, err
	}
	header, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}
	var fm frontmatter
	if err := yaml.Unmarshal([]byte(header), &fm); err != nil {
		return nil, fmt.Errorf("parsing frontmatter: %w", err)
	}
	return &fm, nil
}

// List implements core.SkillIndex. The returned slice is a copy.
func (i *Index) List() []core.SkillEntry {
	out := make([]core.SkillEntry, len(i.entries))
	copy(out, i.entries)
	return out
}

// Resolve implements core.SkillIndex. The full document, frontmatter
// included, is fetched through the backend on every call.
func (i *Index) Resolve(ctx context.Context, name string) (string, error) {
	entry, ok := i.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown skill %q", name)
	}
	return i.readAll(ctx, entry.Location)
}

func (i *Index) readAll(ctx context.Context, location string) (string, error) {
	res, err := i.backend.ReadFile(ctx, location, 0, resolveReadLimit)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, ln := range res.Lines {
		b.WriteString(ln.Text)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

// splitFrontmatter extracts the YAML block delimited by "---" lines at the
// top of a document.
func splitFrontmatter(content string) (string, error) {
	trimmed := strings.TrimLeft(content, "\n")
	if !strings.HasPrefix(trimmed, "---\n") {
		return "", fmt.Errorf("missing frontmatter delimiter")
	}
	rest := trimmed[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return "", fmt.Errorf("unterminated frontmatter")
	}
	return rest[:end+1], nil
}
