package httpx

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/kanban/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig is a token bucket refilled at Requests per Window. The env
// tags let a parent config struct override a profile under its own prefix.
type RateLimitConfig struct {
	Requests int           `env:"REQUESTS"`
	Window   time.Duration `env:"WINDOW"`
	Burst    int           `env:"BURST"`
}

// Profiles used by the router. Strict guards credential endpoints.
var (
	StrictLimit   = RateLimitConfig{Requests: 5, Window: time.Minute, Burst: 5}
	ModerateLimit = RateLimitConfig{Requests: 20, Window: time.Minute, Burst: 20}
	LenientLimit  = RateLimitConfig{Requests: 100, Window: time.Minute, Burst: 100}
)

// Disabled reports whether the profile turns limiting off.
func (c RateLimitConfig) Disabled() bool {
	return c.Requests <= 0 || c.Window <= 0
}

// KeyExtractor buckets requests. An empty key bypasses the limiter.
type KeyExtractor func(*http.Request) string

// IPKeyExtractor uses the first X-Forwarded-For hop, then X-Real-IP, then
// the connection's remote address.
func IPKeyExtractor(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// PrincipalKeyExtractor keys on the authenticated user id.
func PrincipalKeyExtractor(r *http.Request) string {
	if p, ok := PrincipalFromContext(r.Context()); ok {
		return "user:" + p.UserID
	}
	return ""
}

// FirstKeyExtractor returns the first non-empty key.
func FirstKeyExtractor(extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		for _, ex := range extractors {
			if k := ex(r); k != "" {
				return k
			}
		}
		return ""
	}
}

const idleEviction = 10 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter holds one bucket per key and evicts idle ones.
type keyedLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	lastSweep time.Time
}

func newKeyedLimiter(cfg RateLimitConfig) *keyedLimiter {
	return &keyedLimiter{
		buckets:   make(map[string]*bucket),
		limit:     rate.Limit(float64(cfg.Requests) / cfg.Window.Seconds()),
		burst:     max(cfg.Burst, 1),
		lastSweep: time.Now(),
	}
}

// allow consumes a token for key, returning the wait before the next one
// when the bucket is empty.
func (kl *keyedLimiter) allow(key string, now time.Time) (bool, time.Duration) {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if now.Sub(kl.lastSweep) > idleEviction {
		for k, b := range kl.buckets {
			if now.Sub(b.lastSeen) > idleEviction {
				delete(kl.buckets, k)
			}
		}
		kl.lastSweep = now
	}

	b, ok := kl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(kl.limit, kl.burst)}
		kl.buckets[key] = b
	}
	b.lastSeen = now

	if b.limiter.AllowN(now, 1) {
		return true, 0
	}
	r := b.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return false, delay
}

// RateLimit rejects requests beyond cfg per key with 429 and Retry-After.
func RateLimit(cfg RateLimitConfig, key KeyExtractor) Middleware {
	if cfg.Disabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	kl := newKeyedLimiter(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			ok, delay := kl.allow(k, time.Now())
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			retryAfter := max(int(delay.Round(time.Second).Seconds()), 1)
			slogx.FromContext(r.Context()).Warn("rate limit exceeded",
				"key", k,
				"retry_after", retryAfter,
			)

			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Requests))
			w.Header().Set("X-RateLimit-Window", cfg.Window.String())
			WriteError(w, r, http.StatusTooManyRequests, "Too many requests")
		})
	}
}

// RateLimitByIP limits per client address.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimit(cfg, IPKeyExtractor)
}

// RateLimitByPrincipal limits per user, falling back to the client address.
func RateLimitByPrincipal(cfg RateLimitConfig) Middleware {
	return RateLimit(cfg, FirstKeyExtractor(PrincipalKeyExtractor, IPKeyExtractor))
}
