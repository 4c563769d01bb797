package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paasplatform/deepagents/core"
	"github.com/paasplatform/deepagents/internal/testutil"
)

// -------------------- Store Tests --------------------

func TestStorePutGet(t *testing.T) {
	store := NewStore()
	sess := testutil.NewSessionBuilder("sess-1").
		State("phase", "done").
		User("hello").
		Assistant("hi there").
		Build()

	store.Put(sess)

	got, ok := store.Get("sess-1")
	require.True(t, ok)
	assert.Equal(t, "sess-1", got.ID)
	require.Len(t, got.History(), 2)
	phase, ok := got.GetState("phase")
	require.True(t, ok)
	assert.Equal(t, "done", phase)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestStoreIsolatesClones(t *testing.T) {
	store := NewStore()
	sess := core.NewSession("sess-1", "/work")
	store.Put(sess)

	// Mutating the original after Put does not affect the stored copy.
	sess.AddMessage(core.NewUserMessage("late"))
	got, _ := store.Get("sess-1")
	assert.Empty(t, got.History())

	// Mutating a returned clone does not affect the stored copy either.
	got.AddMessage(core.NewUserMessage("also late"))
	again, _ := store.Get("sess-1")
	assert.Empty(t, again.History())
}

func TestStorePutReplaces(t *testing.T) {
	store := NewStore()
	sess := core.NewSession("sess-1", "/work")
	store.Put(sess)

	sess.AddMessage(core.NewUserMessage("update"))
	store.Put(sess)

	got, _ := store.Get("sess-1")
	assert.Len(t, got.History(), 1)
	assert.Equal(t, 1, store.Len())
}

func TestStoreIDsAndDelete(t *testing.T) {
	store := NewStore()
	store.Put(core.NewSession("b", "/work"))
	store.Put(core.NewSession("a", "/work"))
	store.Put(nil)

	assert.Equal(t, []string{"a", "b"}, store.IDs())

	store.Delete("a")
	store.Delete("missing")
	assert.Equal(t, []string{"b"}, store.IDs())
}
