package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cgillinger/facebook-stats/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string  `json:"name"`
	Reach float64 `json:"reach"`
}

func backends(t *testing.T) map[string]Backend {
	local, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	s3c, ddb := newFakeS3(), newFakeDynamo()
	return map[string]Backend{
		"local":  local,
		"memory": NewMemory(),
		"aws":    NewAWSStorageWithClients(s3c, ddb, "bucket", "docs/", "index"),
	}
}

func TestBackendRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Save(ctx, "results", "latest", doc{Name: "Acme", Reach: 150}))

			var got doc
			require.NoError(t, b.Load(ctx, "results", "latest", &got))
			assert.Equal(t, doc{Name: "Acme", Reach: 150}, got)

			// Overwrite in place.
			require.NoError(t, b.Save(ctx, "results", "latest", doc{Name: "Acme", Reach: 200}))
			require.NoError(t, b.Load(ctx, "results", "latest", &got))
			assert.Equal(t, 200.0, got.Reach)

			require.NoError(t, b.Save(ctx, "mappings", "table", map[string]int{"revision": 3}))

			infos, err := b.List(ctx, "results")
			require.NoError(t, err)
			require.Len(t, infos, 1)
			assert.Equal(t, "latest", infos[0].Key)
			assert.Positive(t, infos[0].Size)

			stats, err := b.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, stats.Documents)
			assert.Equal(t, 1, stats.Categories["mappings"].Documents)

			require.NoError(t, b.Delete(ctx, "results", "latest"))
			assert.ErrorIs(t, b.Load(ctx, "results", "latest", &got), ErrNotFound)
			assert.ErrorIs(t, b.Delete(ctx, "results", "latest"), ErrNotFound)
		})
	}
}

func TestBackendMissingAndInvalidKeys(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			var got doc
			assert.ErrorIs(t, b.Load(ctx, "mappings", "table", &got), ErrNotFound)

			infos, err := b.List(ctx, "empty")
			require.NoError(t, err)
			assert.Empty(t, infos)

			if name == "memory" {
				return
			}
			assert.ErrorIs(t, b.Save(ctx, "../etc", "passwd", got), ErrInvalidKey)
			assert.ErrorIs(t, b.Save(ctx, "results", "a/b", got), ErrInvalidKey)
			assert.ErrorIs(t, b.Load(ctx, "results", "", &got), ErrInvalidKey)
		})
	}
}

func TestLocalLayoutAndSkipsTempFiles(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocal(root)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "mappings", "table", doc{Name: "x"}))
	_, err = os.Stat(filepath.Join(root, "mappings", "table.json"))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "mappings", "table.123.tmp"), []byte("{"), 0644))
	infos, err := s.List(ctx, "mappings")
	require.NoError(t, err)
	require.Len(t, infos, 1)
}

func TestAWSWithoutIndexListsS3(t *testing.T) {
	ctx := context.Background()
	s3c := newFakeS3()
	s := NewAWSStorageWithClients(s3c, nil, "bucket", "", "ignored")

	require.NoError(t, s.Save(ctx, "results", "latest", doc{Name: "a"}))
	require.NoError(t, s.Save(ctx, "results", "previous", doc{Name: "b"}))
	assert.Contains(t, s3c.objects, "results/latest.json")

	infos, err := s.List(ctx, "results")
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "latest", infos[0].Key)
	assert.Equal(t, "previous", infos[1].Key)

	// Absent objects cannot be told apart without an index.
	require.NoError(t, s.Delete(ctx, "results", "missing"))
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()

	b, err := New(ctx, config.StorageConfig{Type: "local", LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, b)

	b, err = New(ctx, config.StorageConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, b)

	_, err = New(ctx, config.StorageConfig{Type: "aws"})
	assert.Error(t, err)

	_, err = New(ctx, config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}
