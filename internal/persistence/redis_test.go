package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// fakeLockClient mimics the SETNX/EVAL subset the locker uses against a map.
type fakeLockClient struct {
	values map[string]string
	setErr error
}

func newFakeLockClient() *fakeLockClient {
	return &fakeLockClient{values: make(map[string]string)}
}

func (f *fakeLockClient) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if _, held := f.values[key]; held {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLockClient) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	key := keys[0]
	if f.values[key] == fmt.Sprint(args[0]) {
		delete(f.values, key)
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func newTestLocker(client lockClient) *redisSessionLocker {
	return &redisSessionLocker{client: client, ttl: 200 * time.Millisecond, logger: zap.NewNop()}
}

func TestSessionLockerReleaseFreesLease(t *testing.T) {
	client := newFakeLockClient()
	locker := newTestLocker(client)

	release, err := locker.Acquire(context.Background(), "tenant-1", "sess-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, held := client.values["handoff_lock:tenant-1:sess-1"]; !held {
		t.Fatal("lease key not set after acquire")
	}

	release()
	if _, held := client.values["handoff_lock:tenant-1:sess-1"]; held {
		t.Error("lease key still set after release")
	}

	if _, err := locker.Acquire(context.Background(), "tenant-1", "sess-1"); err != nil {
		t.Fatalf("re-acquire after release: %v", err)
	}
}

func TestSessionLockerReleaseKeepsForeignLease(t *testing.T) {
	client := newFakeLockClient()
	locker := newTestLocker(client)

	release, err := locker.Acquire(context.Background(), "tenant-1", "sess-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Simulate the TTL lapsing and another holder taking the key.
	client.values["handoff_lock:tenant-1:sess-1"] = "another-holder"

	release()
	if got := client.values["handoff_lock:tenant-1:sess-1"]; got != "another-holder" {
		t.Errorf("lease = %q after stale release, want the new holder's token untouched", got)
	}
}

func TestSessionLockerTimesOutWhenHeld(t *testing.T) {
	client := newFakeLockClient()
	locker := newTestLocker(client)

	if _, err := locker.Acquire(context.Background(), "tenant-1", "sess-1"); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if _, err := locker.Acquire(context.Background(), "tenant-1", "sess-1"); err == nil {
		t.Fatal("second acquire succeeded while lease held, want timeout")
	}
}

func TestSessionLockerDegradesWhenRedisDown(t *testing.T) {
	client := newFakeLockClient()
	client.setErr = errors.New("connection refused")
	locker := newTestLocker(client)

	release, err := locker.Acquire(context.Background(), "tenant-1", "sess-1")
	if err != nil {
		t.Fatalf("Acquire with unreachable redis: %v", err)
	}
	release()
}
