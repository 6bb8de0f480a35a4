package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldops/pkg/domain"
)

func TestEvidenceKey(t *testing.T) {
	taskID := domain.NewID()
	key := EvidenceKey(taskID, "Photo.JPG")
	assert.True(t, strings.HasPrefix(key, "tasks/"+taskID+"/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"), "extension is lowered and kept: %s", key)

	other := EvidenceKey(taskID, "Photo.JPG")
	assert.NotEqual(t, key, other, "keys are unique per upload")

	bare := EvidenceKey(taskID, "noext")
	assert.False(t, strings.Contains(strings.TrimPrefix(bare, "tasks/"), "."))
}

func testDrivers(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
	}
}

func TestPutGetHeadDelete(t *testing.T) {
	for name, store := range testDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "tasks/abc/photo.jpg"

			info, err := store.Put(ctx, key, strings.NewReader("image-bytes"), "image/jpeg")
			require.NoError(t, err)
			assert.Equal(t, key, info.Key)
			assert.Equal(t, int64(len("image-bytes")), info.Size)
			assert.Equal(t, "image/jpeg", info.ContentType)
			assert.NotEmpty(t, info.ETag)
			assert.NotEmpty(t, info.URL)

			head, err := store.Head(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, info.ETag, head.ETag)
			assert.Equal(t, info.Size, head.Size)

			got, rc, err := store.Get(ctx, key)
			require.NoError(t, err)
			defer rc.Close()
			assert.Equal(t, info.ETag, got.ETag)
			body, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, "image-bytes", string(body))

			deleted, err := store.Delete(ctx, key)
			require.NoError(t, err)
			assert.True(t, deleted)

			_, err = store.Head(ctx, key)
			assert.ErrorIs(t, err, ErrNotFound)

			deleted, err = store.Delete(ctx, key)
			require.NoError(t, err)
			assert.False(t, deleted, "second delete reports absent")
		})
	}
}

func TestPutRefusesExistingKey(t *testing.T) {
	for name, store := range testDrivers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := "tasks/abc/photo.jpg"

			_, err := store.Put(ctx, key, strings.NewReader("one"), "image/jpeg")
			require.NoError(t, err)

			_, err = store.Put(ctx, key, strings.NewReader("two"), "image/jpeg")
			require.Error(t, err)

			_, rc, err := store.Get(ctx, key)
			require.NoError(t, err)
			defer rc.Close()
			body, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, "one", string(body), "original object untouched")
		})
	}
}

func TestFilesystemRejectsTraversalKeys(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, key := range []string{"", "  ", "../escape", "a/../../escape", "/abs/path"} {
		_, err := store.Put(ctx, key, strings.NewReader("x"), "")
		assert.Error(t, err, "key %q", key)
	}
}

func TestOpenSelectsDriverFromEnv(t *testing.T) {
	ctx := context.Background()

	t.Setenv("FIELDOPS_BLOB_DRIVER", "memory")
	store, err := Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, store.Driver())

	t.Setenv("FIELDOPS_BLOB_DRIVER", "fs")
	t.Setenv("FIELDOPS_BLOB_FS_ROOT", t.TempDir())
	store, err = Open(ctx)
	require.NoError(t, err)
	assert.Equal(t, DriverFilesystem, store.Driver())

	t.Setenv("FIELDOPS_BLOB_DRIVER", "carrier-pigeon")
	_, err = Open(ctx)
	assert.Error(t, err)
}
