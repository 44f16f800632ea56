package kv

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/go-redis/redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// startRedis spins up a throwaway redis container, or skips the test when
// Docker is not available (CI without a docker socket, sandboxed runs).
func startRedis(t *testing.T) *Redis {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = testcontainers.TerminateContainer(container)
	})

	endpoint, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	options, err := redis.ParseURL(endpoint)
	require.NoError(t, err)

	client := redis.NewClient(options)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client)
}

func TestRedisRoundTrip(t *testing.T) {
	store := startRedis(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "a", []byte("1")))
	value, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), value)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisTransactMultiWrite(t *testing.T) {
	store := startRedis(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "watch", []byte("v")))

	err := store.Transact(ctx, "watch", func(current []byte, exists bool) (Mutation, error) {
		require.True(t, exists)
		return Mutation{
			Put:    map[string][]byte{"watch": []byte("v2"), "other": []byte("o")},
			Delete: []string{"watchless"},
		}, nil
	})
	require.NoError(t, err)

	value, err := store.Get(ctx, "watch")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), value)
	value, err = store.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, []byte("o"), value)
}

func TestRedisConcurrentIncrements(t *testing.T) {
	store := startRedis(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "counter", []byte("0")))

	const workers = 4
	const perWorker = 25

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				err := Update(ctx, store, "counter", 1000, func(current []byte, exists bool) (Mutation, error) {
					n, _ := strconv.Atoi(string(current))
					return Mutation{Put: map[string][]byte{"counter": []byte(strconv.Itoa(n + 1))}}, nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	value, err := store.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(workers*perWorker), string(value))
}
