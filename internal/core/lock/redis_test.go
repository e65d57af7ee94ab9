package lock

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

func TestNewRedisLockerRejectsBadURL(t *testing.T) {
	if _, err := NewRedisLocker("http://localhost:6379"); err == nil {
		t.Error("expected an error for a non-redis url")
	}
	l, err := NewRedisLocker("redis://:secret@localhost:6379/2")
	if err != nil {
		t.Fatalf("NewRedisLocker: %v", err)
	}
	defer l.Close()
	if opts := l.client.Options(); opts.Addr != "localhost:6379" || opts.DB != 2 || opts.Password != "secret" {
		t.Errorf("options = %+v", opts)
	}
}

func TestTryLockUnreachable(t *testing.T) {
	// nothing listens on port 1
	l := NewRedisLockerWithClient(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: time.Second}))
	defer l.Close()

	release, ok, err := l.TryLock(context.Background(), "marketing-sweep", time.Minute)
	if err == nil || ok || release != nil {
		t.Errorf("TryLock = %v, %v, %v", release != nil, ok, err)
	}
}
