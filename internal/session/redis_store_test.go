package session

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, nil), mr
}

func TestNamespacedKey(t *testing.T) {
	got := namespacedKey("CA123", "caller_name")
	want := "ivr:session:CA123:caller_name"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRedisStore_SetGet(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "CA1", "caller_name", "Amina", time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	var name string
	found, err := store.Get(ctx, "CA1", "caller_name", &name)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found || name != "Amina" {
		t.Fatalf("expected Amina, got found=%v name=%q", found, name)
	}
	if ttl := mr.TTL(namespacedKey("CA1", "caller_name")); ttl != time.Hour {
		t.Fatalf("expected ttl 1h, got %s", ttl)
	}
}

func TestRedisStore_MissIsNotAnError(t *testing.T) {
	store, _ := newRedisStore(t)
	var v string
	found, err := store.Get(context.Background(), "CA-none", "caller_name", &v)
	if err != nil {
		t.Fatalf("expected nil error for miss, got %v", err)
	}
	if found {
		t.Fatalf("expected miss")
	}
}

func TestRedisStore_ExpiresAfterTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "CA1", "language", "fr", 2*time.Hour); err != nil {
		t.Fatalf("set: %v", err)
	}
	mr.FastForward(2*time.Hour - time.Second)
	var lang string
	if found, _ := store.Get(ctx, "CA1", "language", &lang); !found || lang != "fr" {
		t.Fatalf("expected value before expiry, got found=%v lang=%q", found, lang)
	}

	mr.FastForward(2 * time.Second)
	lang = ""
	found, err := store.Get(ctx, "CA1", "language", &lang)
	if err != nil {
		t.Fatalf("get after expiry: %v", err)
	}
	if found || lang != "" {
		t.Fatalf("expected expired key, got found=%v lang=%q", found, lang)
	}
}

func TestRedisStore_AppendAndList(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	for _, action := range []string{"welcome", "menu", "fact"} {
		if err := store.Append(ctx, "CA1", "interactions", Interaction{Action: action}, time.Hour); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	raw, err := store.List(ctx, "CA1", "interactions")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(raw) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(raw))
	}
	if ttl := mr.TTL(namespacedKey("CA1", "interactions")); ttl != time.Hour {
		t.Fatalf("expected list ttl refreshed to 1h, got %s", ttl)
	}
}

func TestRedisStore_UnreachableWrapsSentinel(t *testing.T) {
	store, mr := newRedisStore(t)
	mr.Close()

	var v string
	_, err := store.Get(context.Background(), "CA1", "caller_name", &v)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if err := store.Set(context.Background(), "CA1", "caller_name", "x", time.Hour); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable on set, got %v", err)
	}
}
