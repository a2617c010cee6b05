package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRedisLockAcquireRelease(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewRedisLock(client, "generator", time.Minute)
	ok, err := l1.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if !ok {
		t.Fatal("expected first acquire to succeed")
	}

	// Second holder must be refused while the lock is held.
	l2 := NewRedisLock(client, "generator", time.Minute)
	ok, err = l2.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok {
		t.Fatal("expected second acquire to fail")
	}

	if err := l1.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}

	ok, err = l2.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	if !ok {
		t.Fatal("expected acquire to succeed after release")
	}
}

func TestRedisLockReleaseOnlyIfOwned(t *testing.T) {
	client := newTestRedis(t)
	ctx := context.Background()

	l1 := NewRedisLock(client, "generator", time.Minute)
	if ok, _ := l1.Acquire(ctx); !ok {
		t.Fatal("acquire failed")
	}

	// A non-owner releasing must not free the lock.
	l2 := NewRedisLock(client, "generator", time.Minute)
	if err := l2.Release(ctx); err != nil {
		t.Fatalf("foreign release errored: %v", err)
	}

	l3 := NewRedisLock(client, "generator", time.Minute)
	ok, err := l3.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if ok {
		t.Fatal("lock should still be held by original owner")
	}
}
