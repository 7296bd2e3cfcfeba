package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFileMissingFileReadsEmpty(t *testing.T) {
	s := NewFile(filepath.Join(t.TempDir(), "plugins.yaml"))
	ctx := context.Background()

	_, ok, err := s.Get(ctx, "example_plugin")
	require.NoError(t, err)
	assert.False(t, ok)

	records, err := s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFilePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.yaml")
	ctx := context.Background()

	first := NewFile(path)
	require.NoError(t, first.Put(ctx, "example_plugin", "1.0"))
	require.NoError(t, first.Put(ctx, "other_plugin", "2.0"))
	require.NoError(t, first.Delete(ctx, "other_plugin"))

	// A fresh instance reads what the first one wrote.
	second := NewFile(path)
	version, ok, err := second.Get(ctx, "example_plugin")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1.0", version)

	_, ok, err = second.Get(ctx, "other_plugin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileWritesValidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.yaml")
	ctx := context.Background()

	s := NewFile(path)
	require.NoError(t, s.Put(ctx, "example_plugin", "1.0"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	records := make(map[string]string)
	require.NoError(t, yaml.Unmarshal(data, &records))
	assert.Equal(t, map[string]string{"example_plugin": "1.0"}, records)
}

func TestFileCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state", "plugins.yaml")
	ctx := context.Background()

	s := NewFile(path)
	require.NoError(t, s.Put(ctx, "example_plugin", "1.0"))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestFileRejectsCorruptStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\tnot yaml"), 0o600))

	s := NewFile(path)
	_, _, err := s.Get(context.Background(), "example_plugin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse version store")
}

func TestFileDeleteAbsentDoesNotRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plugins.yaml")
	ctx := context.Background()

	s := NewFile(path)
	require.NoError(t, s.Delete(ctx, "never_installed"))

	// No write should have happened for a no-op delete.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
