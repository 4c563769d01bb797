package memory

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/fsys"
	"github.com/paasplatform/deepagents/logging"
)

// Dir is the memory subdirectory under a project or user configuration root.
const Dir = ".deepagents/memory"

// snapshotReadLimit bounds a single document read. Memory documents are short
// prose files; anything beyond this is truncated out of the snapshot.
const snapshotReadLimit = 10000

// Options configures a Store.
type Options struct {
	// UserRoot is the user-scope memory directory. Defaults to
	// ~/.deepagents/memory; empty after options are applied disables the
	// user scope.
	UserRoot string
	// Logger receives store events. Defaults to logging.NoOpLogger.
	Logger logging.Logger
}

// WithUserRoot overrides the user-scope memory directory.
func WithUserRoot(root string) func(o *Options) {
	return func(o *Options) { o.UserRoot = root }
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// Store is a filesystem-backed core.MemoryStore. Project documents live under
// <workdir>/.deepagents/memory and take snapshot precedence over user
// documents under the user root. All file access goes through the backend.
type Store struct {
	backend     fsys.Backend
	projectRoot string
	userRoot    string
	logger      logging.Logger

	mu      sync.Mutex
	cached  string
	valid   bool
	watcher *fsnotify.Watcher
}

var _ core.MemoryStore = (*Store)(nil)

// New creates a Store rooted at workDir's project memory directory.
func New(backend fsys.Backend, workDir string, optFns ...func(o *Options)) *Store {
	opts := Options{Logger: logging.NoOpLogger{}}
	if home, err := os.UserHomeDir(); err == nil {
		opts.UserRoot = filepath.Join(home, Dir)
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		backend:     backend,
		projectRoot: filepath.Join(workDir, Dir),
		userRoot:    opts.UserRoot,
		logger:      opts.Logger,
	}
}

// ProjectRoot returns the project-scope memory directory.
func (s *Store) ProjectRoot() string { return s.projectRoot }

// UserRoot returns the user-scope memory directory, or "" when disabled.
func (s *Store) UserRoot() string { return s.userRoot }

// Snapshot implements core.MemoryStore. The result is cached until a commit,
// an observed write or a watch event invalidates it.
func (s *Store) Snapshot(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.valid {
		return s.cached, nil
	}

	var b strings.Builder
	for _, root := range []string{s.projectRoot, s.userRoot} {
		if root == "" {
			continue
		}
		docs, err := s.collect(ctx, root)
		if err != nil {
			return "", fmt.Errorf("walking memory root %s: %w", root, err)
		}
		for _, doc := range docs {
			content, err := s.readDocument(ctx, doc)
			if err != nil {
				return "", fmt.Errorf("reading memory document %s: %w", doc, err)
			}
			fmt.Fprintf(&b, "<memory source=%q>\n%s\n</memory>\n", doc, strings.TrimRight(content, "\n"))
		}
	}

	s.cached = b.String()
	s.valid = true
	return s.cached, nil
}

// Commit implements core.MemoryStore. The edit routes through the backend and
// invalidates the cached snapshot so the next turn observes it.
func (s *Store) Commit(ctx context.Context, path, match, replacement string) error {
	resolved := s.resolveCommitPath(path)
	if err := s.backend.EditFile(ctx, resolved, match, replacement); err != nil {
		return err
	}
	s.logger.Debug("memory commit", "path", resolved)
	s.Invalidate()
	return nil
}

// Invalidate drops the cached snapshot. The next Snapshot re-walks the roots.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.valid = false
	s.mu.Unlock()
}

// Observe invalidates the cached snapshot when path names a memory document.
// Callers report every write or edit they route; the check is a substring
// match on the memory directory so relative, absolute and sandbox-remote
// paths all register. A false positive only costs a re-walk.
func (s *Store) Observe(path string) {
	if strings.Contains(filepath.ToSlash(path), Dir) {
		s.Invalidate()
	}
}

// Watch starts a filesystem watcher over the memory roots so out-of-band
// edits invalidate the cached snapshot. Every directory below a root is
// watched; a root that does not exist yet is covered through its closest
// existing ancestor and armed when created. Close stops the watcher.
func (s *Store) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting memory watcher: %w", err)
	}
	for _, root := range []string{s.projectRoot, s.userRoot} {
		if root == "" {
			continue
		}
		s.watchTree(watcher, root)
	}

	s.watcher = watcher
	go s.watchLoop(watcher)
	return nil
}

// watchTree registers root and every directory below it. A missing root is
// covered by its closest existing ancestor so the create event re-arms it.
func (s *Store) watchTree(watcher *fsnotify.Watcher, root string) {
	if _, err := os.Stat(root); err != nil {
		for dir := filepath.Dir(root); ; dir = filepath.Dir(dir) {
			if _, statErr := os.Stat(dir); statErr == nil {
				if addErr := watcher.Add(dir); addErr != nil {
					s.logger.Warn("watching memory root failed", "root", root, "error", addErr)
				}
				return
			}
			if filepath.Dir(dir) == dir {
				return
			}
		}
	}
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || !d.IsDir() {
			return nil
		}
		if addErr := watcher.Add(p); addErr != nil {
			s.logger.Warn("watching memory dir failed", "dir", p, "error", addErr)
		}
		return nil
	})
}

func (s *Store) watchLoop(watcher *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !s.covers(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					s.watchTree(watcher, ev.Name)
				}
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				s.logger.Debug("memory changed out-of-band", "path", ev.Name)
				s.Invalidate()
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.Invalidate()
		}
	}
}

// covers reports whether p lies under a memory root or on the path down to
// one. Events outside are ancestor-watch noise.
func (s *Store) covers(p string) bool {
	sep := string(filepath.Separator)
	for _, root := range []string{s.projectRoot, s.userRoot} {
		if root == "" {
			continue
		}
		if p == root || strings.HasPrefix(p, root+sep) || strings.HasPrefix(root, p+sep) {
			return true
		}
	}
	return false
}

// Close stops the watcher if one is running.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.watcher = nil
	return err
}

// collect returns the markdown documents under root in lexicographic order.
func (s *Store) collect(ctx context.Context, root string) ([]string, error) {
	var docs []string
	pattern := path.Join(filepath.ToSlash(root), "**/*.md")
	for p, err := range s.backend.Glob(ctx, pattern) {
		if err != nil {
			return nil, err
		}
		docs = append(docs, p)
	}
	sort.Strings(docs)
	return docs, nil
}

func (s *Store) readDocument(ctx context.Context, doc string) (string, error) {
	res, err := s.backend.ReadFile(ctx, doc, 0, snapshotReadLimit)
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

// resolveCommitPath anchors bare relative paths at the project memory root so
// tool callers can address documents by their in-memory name.
func (s *Store) resolveCommitPath(p string) string {
	if filepath.IsAbs(p) || strings.HasPrefix(p, s.projectRoot) || (s.userRoot != "" && strings.HasPrefix(p, s.userRoot)) {
		return p
	}
	return filepath.Join(s.projectRoot, p)
}
