package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"fieldops/internal/config"
	"fieldops/pkg/domain"
)

func TestOpenStoreUsesFileBackend(t *testing.T) {
	cfg := config.Config{UseDB: false, DataDir: t.TempDir()}
	s := OpenStore(context.Background(), cfg, zap.NewNop())
	require.NotNil(t, s)
	assert.Equal(t, domain.DriverFile, s.Driver())
}

func TestOpenStoreFallsBackToMemory(t *testing.T) {
	// Point the data dir at a regular file so the file backend cannot open.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	cfg := config.Config{UseDB: false, DataDir: blocker}
	s := OpenStore(context.Background(), cfg, zap.NewNop())
	require.NotNil(t, s)
	assert.Equal(t, domain.DriverMemory, s.Driver())
}

func TestOpenStoreSkipsUnreachableDatabase(t *testing.T) {
	cfg := config.Config{
		UseDB:    true,
		MongoURI: "mongodb://127.0.0.1:1/?connectTimeoutMS=200&serverSelectionTimeoutMS=200",
		MongoDB:  "fieldops",
		DataDir:  t.TempDir(),
	}
	s := OpenStore(context.Background(), cfg, zap.NewNop())
	require.NotNil(t, s)
	assert.Equal(t, domain.DriverFile, s.Driver(), "unreachable database falls through to file")
}
