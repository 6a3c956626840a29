package session

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	_, err := store.Get(ctx, TokenKey)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, TokenKey, `{"token":"abc"}`))
	require.NoError(t, store.Set(ctx, UserDataKey, `{"name":"A"}`))

	v, err := store.Get(ctx, TokenKey)
	require.NoError(t, err)
	assert.Equal(t, `{"token":"abc"}`, v)

	require.NoError(t, store.Delete(ctx, TokenKey, UserDataKey))
	_, err = store.Get(ctx, UserDataKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestRedisStore(t *testing.T) {
	_, client := setupTestRedis(t)
	exerciseStore(t, NewRedisStore(client, ""))
}

func TestRedisStorePrefixesKeys(t *testing.T) {
	mr, client := setupTestRedis(t)
	store := NewRedisStore(client, "cli:")

	require.NoError(t, store.Set(context.Background(), TokenKey, "x"))
	got, err := mr.Get("cli:auth_token")
	require.NoError(t, err)
	assert.Equal(t, "x", got)
}
