package authapi

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
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestRedisLimiter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rdb := newTestRedis(t)
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	l := NewRedisLimiter(rdb, 5, 10*time.Second)
	const key = "login|1.2.3.4"

	for i := 0; i < 5; i++ {
		ok, retry, err := l.Allow(ctx, key, now.Add(time.Duration(i)*time.Second))
		if err != nil || !ok || retry != 0 {
			t.Fatalf("request %d: allowed=%v retry=%v err=%v", i, ok, retry, err)
		}
	}

	cases := []struct {
		at    time.Duration
		retry time.Duration
	}{
		{5 * time.Second, 5 * time.Second},
		{8 * time.Second, 2 * time.Second},
		{9 * time.Second, time.Second},
	}
	for _, tc := range cases {
		ok, retry, err := l.Allow(ctx, key, now.Add(tc.at))
		if err != nil {
			t.Fatalf("Allow(+%v): %v", tc.at, err)
		}
		if ok {
			t.Fatalf("Allow(+%v) admitted past the limit", tc.at)
		}
		if retry != tc.retry {
			t.Fatalf("Allow(+%v) retry=%v want=%v", tc.at, retry, tc.retry)
		}
	}

	if n := rdb.ZCard(ctx, "ratelimit:auth:"+key).Val(); n != 5 {
		t.Fatalf("window size=%d want=5 (refusals must not be recorded)", n)
	}

	if ok, _, err := l.Allow(ctx, "login|5.6.7.8", now.Add(9*time.Second)); err != nil || !ok {
		t.Fatalf("keys must be limited independently: allowed=%v err=%v", ok, err)
	}

	ok, _, err := l.Allow(ctx, key, now.Add(10*time.Second+time.Millisecond))
	if err != nil || !ok {
		t.Fatalf("expected a slot once the oldest request left the window: allowed=%v err=%v", ok, err)
	}
	if ok, retry, _ := l.Allow(ctx, key, now.Add(10*time.Second+2*time.Millisecond)); ok || retry <= 0 {
		t.Fatalf("window full again: allowed=%v retry=%v", ok, retry)
	}
}

func TestRedisLimiter_ScriptError(t *testing.T) {
	t.Parallel()

	rdb := newTestRedis(t)
	l := NewRedisLimiter(rdb, 1, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := l.Allow(ctx, "k", time.Now()); err == nil {
		t.Fatalf("expected an error on a cancelled context")
	}
}
