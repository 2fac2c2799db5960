package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mediocregopher/radix/v3"
	"github.com/portfolio-contact/backend/internal/iplookup"
)

// SecurityHeaders adds security response headers (CSP, X-Frame-Options, etc.)
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("X-XSS-Protection", "0")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; frame-ancestors 'none'")
		h.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains")
		next.ServeHTTP(w, r)
	})
}

// Limiter counts requests per key within a one-minute window.
type Limiter interface {
	// Allow records one request for key. When the key is over its limit it
	// returns false and how long until a request would be admitted again.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// RateLimiter is IP-based rate limiting middleware over a Limiter.
type RateLimiter struct {
	limiter           Limiter
	trustedProxyCount int
}

// NewRateLimiter wraps limiter. trustedProxyCount is the number of reverse
// proxies in front of the server that append to X-Forwarded-For.
func NewRateLimiter(limiter Limiter, trustedProxyCount int) *RateLimiter {
	return &RateLimiter{limiter: limiter, trustedProxyCount: trustedProxyCount}
}

// Middleware returns an http.Handler that enforces rate limits. Limiter
// failures are logged and the request is let through.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := iplookup.FromRequest(r, rl.trustedProxyCount)

		ok, retryAfter, err := rl.limiter.Allow(r.Context(), ip)
		if err != nil {
			slog.Error("rate limiter failed", "ip", ip, "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// MemoryLimiter is a per-process sliding-window Limiter.
type MemoryLimiter struct {
	maxPerMinute int
	now          func() time.Time

	mu      sync.Mutex
	clients map[string]*clientWindow

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

type clientWindow struct {
	timestamps []time.Time
}

// NewMemoryLimiter creates a limiter admitting maxPerMinute requests per key.
// Call Close to stop its cleanup goroutine.
func NewMemoryLimiter(maxPerMinute int) *MemoryLimiter {
	l := &MemoryLimiter{
		maxPerMinute: maxPerMinute,
		now:          time.Now,
		clients:      make(map[string]*clientWindow),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	go l.cleanupLoop(5 * time.Minute)
	return l
}

// Close stops the cleanup goroutine.
func (l *MemoryLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}

// cleanupLoop periodically removes stale entries from the clients map.
func (l *MemoryLimiter) cleanupLoop(every time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.prune()
		}
	}
}

func (l *MemoryLimiter) prune() {
	windowStart := l.now().Add(-time.Minute)
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, cw := range l.clients {
		cw.trim(windowStart)
		if len(cw.timestamps) == 0 {
			delete(l.clients, ip)
		}
	}
}

// trim drops timestamps outside the window; in-place filter on the shared backing array.
func (cw *clientWindow) trim(windowStart time.Time) {
	valid := cw.timestamps[:0]
	for _, ts := range cw.timestamps {
		if ts.After(windowStart) {
			valid = append(valid, ts)
		}
	}
	cw.timestamps = valid
}

// Allow implements Limiter.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	cw, ok := l.clients[key]
	if !ok {
		cw = &clientWindow{}
		l.clients[key] = cw
	}
	cw.trim(now.Add(-time.Minute))

	if len(cw.timestamps) == 0 && l.maxPerMinute <= 0 {
		return false, time.Minute, nil
	}
	if len(cw.timestamps) >= l.maxPerMinute {
		return false, cw.timestamps[0].Add(time.Minute).Sub(now), nil
	}
	cw.timestamps = append(cw.timestamps, now)
	return true, 0, nil
}

// RedisLimiter is a fixed-window Limiter shared by every server instance
// that points at the same Redis.
type RedisLimiter struct {
	client       radix.Client
	maxPerMinute int
	prefix       string
}

// NewRedisLimiter creates a limiter storing counters under "ratelimit:submit:".
func NewRedisLimiter(client radix.Client, maxPerMinute int) *RedisLimiter {
	return &RedisLimiter{client: client, maxPerMinute: maxPerMinute, prefix: "ratelimit:submit:"}
}

// Allow implements Limiter with INCR and a 60 s EXPIRE set by the first hit.
func (l *RedisLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	k := l.prefix + key

	var count int
	if err := l.client.Do(radix.Cmd(&count, "INCR", k)); err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := l.client.Do(radix.Cmd(nil, "EXPIRE", k, "60")); err != nil {
			return false, 0, err
		}
	}
	if count <= l.maxPerMinute {
		return true, 0, nil
	}

	var ttl int
	if err := l.client.Do(radix.Cmd(&ttl, "TTL", k)); err != nil || ttl < 0 {
		ttl = 60
	}
	return false, time.Duration(ttl) * time.Second, nil
}
