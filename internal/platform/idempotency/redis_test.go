package idempotency

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	store, err := NewRedisStore(client)
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	return store, server
}

func TestRedisStoreReserveAndReplay(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	first, err := store.Reserve(ctx, "key|user-1", "fp", fixedTime, time.Hour)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if first.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %v", first.State)
	}

	second, err := store.Reserve(ctx, "key|user-1", "fp", fixedTime, time.Hour)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if second.State != ReservationStatePending {
		t.Fatalf("expected pending reservation, got %v", second.State)
	}

	resp := Response{Status: http.StatusCreated, Headers: http.Header{"Content-Type": {"application/json"}, "Date": {"x"}}, Body: []byte(`{"ok":true}`)}
	if err := store.SaveResponse(ctx, "key|user-1", "fp", resp, fixedTime, time.Hour); err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}

	replay, err := store.Reserve(ctx, "key|user-1", "fp", fixedTime, time.Hour)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if replay.State != ReservationStateCompleted {
		t.Fatalf("expected completed reservation, got %v", replay.State)
	}
	if replay.Record.ResponseStatus != http.StatusCreated || string(replay.Record.ResponseBody) != `{"ok":true}` {
		t.Fatalf("unexpected stored response %+v", replay.Record)
	}
	if _, ok := replay.Record.ResponseHeaders["Date"]; ok {
		t.Fatalf("hop-by-hop headers should not be stored")
	}
}

func TestRedisStoreFingerprintMismatch(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	if _, err := store.Reserve(ctx, "key", "fp-1", fixedTime, time.Hour); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := store.Reserve(ctx, "key", "fp-2", fixedTime, time.Hour); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected ErrFingerprintMismatch, got %v", err)
	}
}

func TestRedisStoreExpiryAndRelease(t *testing.T) {
	store, server := newTestRedisStore(t)
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "key", "fp", fixedTime, time.Minute); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	server.FastForward(2 * time.Minute)

	again, err := store.Reserve(ctx, "key", "fp", fixedTime, time.Minute)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if again.State != ReservationStateNew {
		t.Fatalf("expected expired key to be reservable, got %v", again.State)
	}

	if err := store.Release(ctx, "key", "fp"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if server.Exists(redisKeyPrefix + storageKey("key")) {
		t.Fatalf("expected key to be deleted")
	}
}
