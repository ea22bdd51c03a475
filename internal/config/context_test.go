package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextSetAndClear(t *testing.T) {
	ctx := &Context{}
	require.True(t, ctx.IsEmpty())
	require.Equal(t, "(no workflow selected)", ctx.String())

	ctx.SetWorkflow(7, "Purchase over 10k")
	require.False(t, ctx.IsEmpty())
	require.Equal(t, "workflow:7 (Purchase over 10k)", ctx.String())
	require.False(t, ctx.UpdatedAt.IsZero())

	ctx.Clear()
	require.True(t, ctx.IsEmpty())
}

func TestContextStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "context.yaml")
	store := NewContextStore(path)

	loaded, err := store.Load()
	require.NoError(t, err)
	require.True(t, loaded.IsEmpty())

	ctx := &Context{}
	ctx.SetWorkflow(3, "Leave")
	require.NoError(t, store.Save(ctx))

	loaded, err = store.Load()
	require.NoError(t, err)
	require.Equal(t, int64(3), loaded.WorkflowID)
	require.Equal(t, "Leave", loaded.WorkflowName)

	require.NoError(t, store.Clear())
	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}

func TestContextStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "context.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workflow: [not a number"), 0644))

	_, err := NewContextStore(path).Load()
	require.ErrorContains(t, err, "is corrupt")
}
