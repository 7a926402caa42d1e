package authapi

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEvaluateWindowThrottle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)

	events := []time.Time{
		now.Add(-1 * time.Minute),
		now.Add(-2 * time.Minute),
		now.Add(-6 * time.Minute),
	}

	blocked, retry := evaluateWindowThrottle(now, events, 2, 5*time.Minute)
	if !blocked {
		t.Fatalf("expected window throttle to block")
	}
	if retry != 3*time.Minute {
		t.Fatalf("expected retry=3m, got %v", retry)
	}

	blocked, retry = evaluateWindowThrottle(now, events, 3, 5*time.Minute)
	if blocked {
		t.Fatalf("expected window throttle to allow")
	}
	if retry != 0 {
		t.Fatalf("expected retry=0, got %v", retry)
	}
}

func TestMemoryLimiter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(5, 10*time.Second)

	for i := 0; i < 5; i++ {
		ok, _, err := l.Allow(ctx, "login|1.2.3.4", now.Add(time.Duration(i)*time.Second))
		if err != nil || !ok {
			t.Fatalf("request %d: allowed=%v err=%v", i, ok, err)
		}
	}

	ok, retry, _ := l.Allow(ctx, "login|1.2.3.4", now.Add(5*time.Second))
	if ok {
		t.Fatalf("6th request within the window must be refused")
	}
	if retry != 5*time.Second {
		t.Fatalf("retry=%v want=5s", retry)
	}

	if ok, _, _ := l.Allow(ctx, "login|5.6.7.8", now.Add(5*time.Second)); !ok {
		t.Fatalf("keys must be limited independently")
	}

	if ok, _, _ := l.Allow(ctx, "login|1.2.3.4", now.Add(10*time.Second+time.Millisecond)); !ok {
		t.Fatalf("expected a slot once the oldest request left the window")
	}
}

func TestWriteRateLimited_RoundsRetryAfterUp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   time.Duration
		want string
	}{
		{in: 5 * time.Second, want: "5"},
		{in: 4*time.Second + time.Millisecond, want: "5"},
		{in: 0, want: ""},
	}
	for _, tc := range cases {
		rr := httptest.NewRecorder()
		writeRateLimited(rr, tc.in)
		if rr.Code != 429 {
			t.Fatalf("status=%d want=429", rr.Code)
		}
		if got := rr.Header().Get("Retry-After"); got != tc.want {
			t.Fatalf("Retry-After(%v)=%q want=%q", tc.in, got, tc.want)
		}
	}
}
