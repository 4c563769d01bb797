package skill

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/fsys"
)

// -------------------- Test Helpers --------------------

func writeSkill(t *testing.T, root, dirName, name, description string) {
	t.Helper()
	dir := filepath.Join(root, dirName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	doc := "---\nname: " + name + "\ndescription: " + description + "\n---\n\n# " + name + "\n\nFull instructions for " + name + ".\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, Document), []byte(doc), 0o644))
}

func loadTestIndex(t *testing.T, workDir, userRoot string) *Index {
	t.Helper()
	idx, err := Load(context.Background(), fsys.NewLocal(workDir), workDir, WithUserRoot(userRoot))
	require.NoError(t, err)
	return idx
}

// -------------------- Load Tests --------------------

func TestLoadEmptyRoots(t *testing.T) {
	idx := loadTestIndex(t, t.TempDir(), "")
	assert.Empty(t, idx.List())
}

func TestLoadDiscoversSkills(t *testing.T) {
	workDir := t.TempDir()
	projectRoot := filepath.Join(workDir, Dir)
	writeSkill(t, projectRoot, "review", "review", "Review pull requests")
	writeSkill(t, projectRoot, "deploy", "deploy", "Run the deploy playbook")

	idx := loadTestIndex(t, workDir, "")
	entries := idx.List()
	require.Len(t, entries, 2)
	// Sorted by name.
	assert.Equal(t, "deploy", entries[0].Name)
	assert.Equal(t, "review", entries[1].Name)
	assert.Equal(t, "Review pull requests", entries[1].Description)
	assert.Equal(t, core.SkillScopeProject, entries[0].Scope)
	assert.Equal(t, filepath.Join(projectRoot, "deploy", Document), entries[0].Location)
}

func TestLoadProjectShadowsUser(t *testing.T) {
	workDir := t.TempDir()
	userRoot := filepath.Join(t.TempDir(), "skills")
	writeSkill(t, filepath.Join(workDir, Dir), "deploy", "deploy", "project deploy")
	writeSkill(t, userRoot, "deploy", "deploy", "user deploy")
	writeSkill(t, userRoot, "lint", "lint", "user lint")

	idx := loadTestIndex(t, workDir, userRoot)
	entries := idx.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "project deploy", entries[0].Description)
	assert.Equal(t, core.SkillScopeProject, entries[0].Scope)
	assert.Equal(t, core.SkillScopeUser, entries[1].Scope)
}

func TestLoadSkipsMalformedSkills(t *testing.T) {
	workDir := t.TempDir()
	projectRoot := filepath.Join(workDir, Dir)
	writeSkill(t, projectRoot, "good", "good", "a valid skill")

	// No frontmatter delimiter.
	bad := filepath.Join(projectRoot, "bad")
	require.NoError(t, os.MkdirAll(bad, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, Document), []byte("just text\n"), 0o644))

	// Missing SKILL.md entirely.
	require.NoError(t, os.MkdirAll(filepath.Join(projectRoot, "empty"), 0o755))

	// Plain file at the root, not a skill directory.
	require.NoError(t, os.WriteFile(filepath.Join(projectRoot, "README.md"), []byte("notes"), 0o644))

	idx := loadTestIndex(t, workDir, "")
	entries := idx.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "good", entries[0].Name)
}

func TestLoadDirectoryNameFallback(t *testing.T) {
	workDir := t.TempDir()
	dir := filepath.Join(workDir, Dir, "triage")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	doc := "---\ndescription: triage incoming issues\n---\nbody\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, Document), []byte(doc), 0o644))

	idx := loadTestIndex(t, workDir, "")
	entries := idx.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "triage", entries[0].Name)
}

func TestListReturnsCopy(t *testing.T) {
	workDir := t.TempDir()
	writeSkill(t, filepath.Join(workDir, Dir), "review", "review", "desc")

	idx := loadTestIndex(t, workDir, "")
	first := idx.List()
	first[0].Name = "mutated"
	assert.Equal(t, "review", idx.List()[0].Name)
}

// -------------------- Resolve Tests --------------------

func TestResolveReturnsFullDocument(t *testing.T) {
	workDir := t.TempDir()
	writeSkill(t, filepath.Join(workDir, Dir), "review", "review", "Review pull requests")

	idx := loadTestIndex(t, workDir, "")
	doc, err := idx.Resolve(context.Background(), "review")
	require.NoError(t, err)
	assert.Contains(t, doc, "Full instructions for review")
	assert.Contains(t, doc, "description: Review pull requests")
}

func TestResolveUnknownSkill(t *testing.T) {
	idx := loadTestIndex(t, t.TempDir(), "")
	_, err := idx.Resolve(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown skill")
}

// -------------------- Frontmatter Tests --------------------

func TestSplitFrontmatter(t *testing.T) {
	header, err := splitFrontmatter("---\nname: x\n---\nbody\n")
	require.NoError(t, err)
	assert.Equal(t, "name: x\n", header)
}

func TestSplitFrontmatterMissing(t *testing.T) {
	_, err := splitFrontmatter("name: x\n")
	require.Error(t, err)
}

func TestSplitFrontmatterUnterminated(t *testing.T) {
	_, err := splitFrontmatter("---\nname: x\n")
	require.Error(t, err)
}
