package idempotency

import (
	"context"
	"errors"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func testRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("API_TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("skipping integration test: Redis not reachable: %v", err)
	}

	prefix := "idempotency-test:" + t.Name() + ":"
	t.Cleanup(func() {
		keys, _ := client.Keys(ctx, prefix+"*").Result()
		if len(keys) > 0 {
			client.Del(ctx, keys...)
		}
		_ = client.Close()
	})

	store, err := NewRedisStore(client, WithKeyPrefix(prefix))
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	return store
}

func TestNewRedisStoreRequiresClient(t *testing.T) {
	if _, err := NewRedisStore(nil); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestRedisStoreLifecycle(t *testing.T) {
	store := testRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	res, err := store.Reserve(ctx, "key-1", "fp", now, time.Minute)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %v (%v)", res.State, err)
	}

	res, err = store.Reserve(ctx, "key-1", "fp", now, time.Minute)
	if err != nil || res.State != ReservationStatePending {
		t.Fatalf("expected pending reservation, got %v (%v)", res.State, err)
	}

	if _, err := store.Reserve(ctx, "key-1", "other", now, time.Minute); !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}

	resp := Response{Status: http.StatusCreated, Headers: http.Header{"Content-Type": {"application/json"}}, Body: []byte(`{"id":"ord_1"}`)}
	if err := store.SaveResponse(ctx, "key-1", "fp", resp, now, time.Minute); err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}

	res, err = store.Reserve(ctx, "key-1", "fp", now, time.Minute)
	if err != nil || res.State != ReservationStateCompleted {
		t.Fatalf("expected completed reservation, got %v (%v)", res.State, err)
	}
	if string(res.Record.ResponseBody) != `{"id":"ord_1"}` || res.Record.ResponseStatus != http.StatusCreated {
		t.Fatalf("unexpected stored response %+v", res.Record)
	}
}

func TestRedisStoreReleaseChecksFingerprint(t *testing.T) {
	store := testRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	if _, err := store.Reserve(ctx, "key-2", "fp", now, time.Minute); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := store.Release(ctx, "key-2", "someone-else"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if res, _ := store.Reserve(ctx, "key-2", "fp", now, time.Minute); res.State != ReservationStatePending {
		t.Fatalf("foreign release must not drop the reservation, got %v", res.State)
	}
	if err := store.Release(ctx, "key-2", "fp"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if res, _ := store.Reserve(ctx, "key-2", "fp", now, time.Minute); res.State != ReservationStateNew {
		t.Fatalf("expected key to be free after release, got %v", res.State)
	}
}
