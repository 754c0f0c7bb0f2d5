package persistence

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return NewRedisStore(client, "grafo-test:")
}

func TestRedisStoreContract(t *testing.T) {
	runStoreContract(t, newTestRedisStore(t))
}

func TestRedisStoreDefaultPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
	})

	store := NewRedisStore(client, "")
	ctx := context.Background()
	if err := store.Save(ctx, "t", map[string]any{"v": 1}, 0, nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	if !mr.Exists("grafo:cp:t:0") {
		t.Fatalf("expected default-prefixed key, have %v", mr.Keys())
	}
}

func TestRedisStoreDeleteCleansIndexes(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	for step := 0; step < 3; step++ {
		if err := store.Save(ctx, "gone", map[string]any{"v": step}, step, nil); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	if err := store.Save(ctx, "kept", map[string]any{"v": 1}, 0, nil); err != nil {
		t.Fatalf("save: %v", err)
	}

	if err := store.Delete(ctx, "gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	threads, err := store.ListThreads(ctx)
	if err != nil {
		t.Fatalf("list threads: %v", err)
	}
	if len(threads) != 1 || threads[0] != "kept" {
		t.Fatalf("threads = %v", threads)
	}
}
