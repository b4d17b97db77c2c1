package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"blindbox-draw/config"
	"blindbox-draw/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "token")
	store := NewFileStore(path)

	t.Run("Success - missing file is empty", func(t *testing.T) {
		token, err := store.Load(ctx)
		assert.NoError(t, err)
		assert.Empty(t, token)
	})

	t.Run("Success - save load clear", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "abc"))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		token, err := store.Load(ctx)
		assert.NoError(t, err)
		assert.Equal(t, "abc", token)

		require.NoError(t, store.Clear(ctx))
		require.NoError(t, store.Clear(ctx))
		token, err = store.Load(ctx)
		assert.NoError(t, err)
		assert.Empty(t, token)
	})
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	cfg := config.LoadTestConfig()
	rdb, err := database.InitRedis(ctx, &cfg.Redis)
	if err != nil {
		t.Skipf("redis not available: %v", err)
	}
	defer rdb.Close()

	store := NewRedisStore(rdb, cfg.Session.RedisKey)
	t.Cleanup(func() { rdb.Del(ctx, cfg.Session.RedisKey) })

	t.Run("Success", func(t *testing.T) {
		require.NoError(t, store.Clear(ctx))
		token, err := store.Load(ctx)
		assert.NoError(t, err)
		assert.Empty(t, token)

		require.NoError(t, store.Save(ctx, "abc"))
		token, err = store.Load(ctx)
		assert.NoError(t, err)
		assert.Equal(t, "abc", token)
	})
}
