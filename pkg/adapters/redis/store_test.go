package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/rewind/pkg/adapters/redis"
	"github.com/aretw0/rewind/pkg/domain"
	"github.com/aretw0/rewind/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunJournalContract(t, redis.NewFromClient(client))
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("test:"))

	require.NoError(t, store.Append(context.Background(), "s1", domain.Entry{Seq: 1, Payload: "x = 1"}))
	assert.True(t, mr.Exists("test:s1"))
}

func TestRedisStore_PopDropsIndex(t *testing.T) {
	_, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", domain.Entry{Seq: 1, Payload: "x = 1"}))
	_, err := store.Pop(ctx, "s1")
	require.NoError(t, err)

	sessions, err := store.Sessions(ctx)
	require.NoError(t, err)
	assert.NotContains(t, sessions, "s1")
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "session-ttl", domain.Entry{Seq: 1, Payload: "x = 1"}))

	entries, err := store.List(ctx, "session-ttl")
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	mr.FastForward(2 * time.Second)

	_, err = store.List(ctx, "session-ttl")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
