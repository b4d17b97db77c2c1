package session

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "blindbox-draw/pkg/app_errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct {
	MemoryStore
	loadErr error
}

func (s *failingStore) Load(ctx context.Context) (string, error) {
	return "", s.loadErr
}

func TestGuard_Init(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - persisted credential", func(t *testing.T) {
		g := NewGuard(NewMemoryStore("persisted"))
		require.NoError(t, g.Init(ctx))
		token, err := g.Token()
		assert.NoError(t, err)
		assert.Equal(t, "persisted", token)
	})

	t.Run("Success - nothing persisted", func(t *testing.T) {
		g := NewGuard(NewMemoryStore(""))
		require.NoError(t, g.Init(ctx))
		_, err := g.Token()
		assert.ErrorIs(t, err, apperrors.ErrNoCredential)
		assert.False(t, g.ReauthRequired())
	})

	t.Run("Failed - store error", func(t *testing.T) {
		g := NewGuard(&failingStore{loadErr: errors.New("disk gone")})
		assert.Error(t, g.Init(ctx))
	})
}

func TestGuard_LoginLogout(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("")
	g := NewGuard(store)

	t.Run("Failed - empty token", func(t *testing.T) {
		assert.ErrorIs(t, g.Login(ctx, ""), apperrors.ErrInvalidInput)
	})

	t.Run("Success", func(t *testing.T) {
		require.NoError(t, g.Login(ctx, "abc"))
		token, err := g.Token()
		assert.NoError(t, err)
		assert.Equal(t, "abc", token)
		persisted, _ := store.Load(ctx)
		assert.Equal(t, "abc", persisted)

		require.NoError(t, g.Logout(ctx))
		_, err = g.Token()
		assert.ErrorIs(t, err, apperrors.ErrNoCredential)
		persisted, _ = store.Load(ctx)
		assert.Empty(t, persisted)
	})
}

func TestGuard_Invalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - clears credential and notifies once", func(t *testing.T) {
		store := NewMemoryStore("abc")
		g := NewGuard(store)
		require.NoError(t, g.Init(ctx))

		ch, unsubscribe := g.Subscribe()
		defer unsubscribe()

		g.Invalidate(ctx, apperrors.ErrSessionExpired)
		g.Invalidate(ctx, apperrors.ErrSessionExpired)

		select {
		case err := <-ch:
			assert.ErrorIs(t, err, apperrors.ErrSessionExpired)
		case <-time.After(time.Second):
			t.Fatal("expected invalidation notification")
		}
		select {
		case <-ch:
			t.Fatal("second invalidation must not notify again")
		default:
		}

		_, err := g.Token()
		assert.ErrorIs(t, err, apperrors.ErrSessionExpired)
		assert.True(t, g.ReauthRequired())
		persisted, _ := store.Load(ctx)
		assert.Empty(t, persisted)
	})

	t.Run("Success - login after invalidation restores session", func(t *testing.T) {
		g := NewGuard(NewMemoryStore("abc"))
		require.NoError(t, g.Init(ctx))
		g.Invalidate(ctx, nil)
		require.NoError(t, g.Login(ctx, "fresh"))
		assert.False(t, g.ReauthRequired())
		token, err := g.Token()
		assert.NoError(t, err)
		assert.Equal(t, "fresh", token)
	})

	t.Run("Success - unsubscribed channel is not notified", func(t *testing.T) {
		g := NewGuard(NewMemoryStore("abc"))
		require.NoError(t, g.Init(ctx))
		ch, unsubscribe := g.Subscribe()
		unsubscribe()
		unsubscribe()
		g.Invalidate(ctx, nil)
		select {
		case <-ch:
			t.Fatal("unexpected notification")
		default:
		}
	})
}

func TestIsSessionError(t *testing.T) {
	assert.True(t, IsSessionError(apperrors.ErrSessionExpired))
	assert.True(t, IsSessionError(apperrors.ErrNoCredential))
	assert.False(t, IsSessionError(apperrors.ErrSoldOut))
}
