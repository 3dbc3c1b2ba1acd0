package sampler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileCheckpointRoundTrip(t *testing.T) {
	ctx := context.Background()
	cp := NewFileCheckpoint(filepath.Join(t.TempDir(), "state", "checkpoint.json"))

	_, ok, err := cp.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cp.Save(ctx, 12345))
	block, ok, err := cp.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(12345), block)
}

func TestFileCheckpointRejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	_, _, err := NewFileCheckpoint(dir).Load(context.Background())
	require.ErrorContains(t, err, "directory")
}

func TestFileCheckpointRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, _, err := NewFileCheckpoint(path).Load(context.Background())
	require.ErrorContains(t, err, "parse checkpoint")
}

type memStateStore map[string]uint64

func (m memStateStore) LoadCheckpoint(_ context.Context, name string) (uint64, bool, error) {
	v, ok := m[name]
	return v, ok, nil
}

func (m memStateStore) SaveCheckpoint(_ context.Context, name string, block uint64) error {
	m[name] = block
	return nil
}

func TestNamedCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := memStateStore{}
	cp := NewNamedCheckpoint(store, "bsc:pools")

	require.NoError(t, cp.Save(ctx, 77))
	block, ok, err := cp.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(77), block)
	require.Equal(t, uint64(77), store["bsc:pools"])
}
