package authapi

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"bloggers/cmd/internal/web"
)

// Limiter decides whether one more request under key fits its window.
// retryAfter is set when the request is refused.
type Limiter interface {
	Allow(ctx context.Context, key string, now time.Time) (allowed bool, retryAfter time.Duration, err error)
}

// MemoryLimiter is a per-process sliding-window limiter.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	events map[string][]time.Time

	lastSweep time.Time
}

// NewMemoryLimiter allows limit requests per key within window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := inWindow(l.events[key], now, l.window)
	if blocked, retry := evaluateWindowThrottle(now, events, l.limit, l.window); blocked {
		l.events[key] = events
		return false, retry, nil
	}
	l.events[key] = append(events, now)
	l.sweep(now)
	return true, 0, nil
}

// sweep drops idle keys at most once per window.
func (l *MemoryLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	for k, events := range l.events {
		kept := inWindow(events, now, l.window)
		if len(kept) == 0 {
			delete(l.events, k)
			continue
		}
		l.events[k] = kept
	}
}

func inWindow(events []time.Time, now time.Time, window time.Duration) []time.Time {
	cut := now.Add(-window)
	dst := events[:0]
	for _, t := range events {
		if t.After(cut) {
			dst = append(dst, t)
		}
	}
	return dst
}

// evaluateWindowThrottle blocks once events within window reach limit. The
// retry delay runs until the oldest counted event leaves the window.
func evaluateWindowThrottle(now time.Time, events []time.Time, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 || window <= 0 {
		return false, 0
	}
	cut := now.Add(-window)
	count := 0
	var oldest time.Time
	for _, t := range events {
		if !t.After(cut) {
			continue
		}
		count++
		if oldest.IsZero() || t.Before(oldest) {
			oldest = t
		}
	}
	if count < limit {
		return false, 0
	}
	return true, oldest.Add(window).Sub(now)
}

// throttle limits a route per client IP. Limiter failures let the request
// through.
func (h *Handler) throttle(action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if h.limiter == nil || h.cfg.RateLimitMax <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ip := web.ClientIP(r, h.cfg.TrustProxy)
			allowed, retry, err := h.limiter.Allow(r.Context(), action+"|"+ip, h.now())
			if err != nil {
				h.log.Warn("auth.rate_limit.fail", "action", action, "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				h.audit(r.Context(), Event{Action: "auth.rate_limited", IP: ip, Meta: map[string]any{
					"route":         action,
					"retry_after_s": int64(retry.Seconds()),
				}})
				writeRateLimited(w, retry)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int64((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
	}
	web.WriteStatus(w, http.StatusTooManyRequests)
}
