package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"ai-character-chat-simulator/backend/pkg/config"
	"ai-character-chat-simulator/backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "slot", `{"a":1}`))
	v, err := s.Get(ctx, "slot")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, v)

	require.NoError(t, s.Set(ctx, "slot", `{"a":2}`))
	v, err = s.Get(ctx, "slot")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, v)

	assert.NoError(t, s.Ping(ctx))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemory()
	exerciseStore(t, s)
	assert.NoError(t, s.Close())
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kv.db")
	s, err := NewSQLite(context.Background(), path)
	require.NoError(t, err)
	exerciseStore(t, s)
	require.NoError(t, s.Close())

	reopened, err := NewSQLite(context.Background(), path)
	require.NoError(t, err)
	defer reopened.Close()
	v, err := reopened.Get(context.Background(), "slot")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, v)
}

func TestOpenSelectsDriver(t *testing.T) {
	cfg, err := config.ParseFrom(map[string]string{"STORAGE_DRIVER": "memory"})
	require.NoError(t, err)

	s, err := Open(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	cfg.Storage.Driver = "etcd"
	_, err = Open(context.Background(), cfg, logger.Nop())
	assert.Error(t, err)
}
