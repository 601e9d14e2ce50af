package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/stardylog/backend/internal/auth"
)

// RateLimiterConfig sets the per-subject token bucket.
type RateLimiterConfig struct {
	Rate            rate.Limit // tokens per second
	Burst           int
	CleanupInterval time.Duration
	Logger          *slog.Logger // slog.Default() when nil
}

// DefaultRateLimiterConfig allows 120 requests per minute per user.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Rate:            rate.Limit(120.0 / 60.0),
		Burst:           120,
		CleanupInterval: 5 * time.Minute,
	}
}

type subjectLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per authenticated subject.
// Idle buckets are dropped by a background loop; call Stop on shutdown.
type RateLimiter struct {
	config RateLimiterConfig

	mu       sync.Mutex
	limiters map[string]*subjectLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultRateLimiterConfig().CleanupInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	rl := &RateLimiter{
		config:   config,
		limiters: make(map[string]*subjectLimiter),
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Middleware answers 429 once a subject has used up its bucket.
// Anonymous requests pass through untouched; RequireAuth deals with them.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := auth.IdentityFromContext(r.Context())
		if !id.Authenticated {
			next.ServeHTTP(w, r)
			return
		}

		if !rl.limiter(id.SubjectID).Allow() {
			rl.config.Logger.Warn("rate limit exceeded", slog.String("subject", id.SubjectID))
			writeRateLimitResponse(w, rl.config.Rate)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LimiterCount reports how many subjects currently have a bucket.
func (rl *RateLimiter) LimiterCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) limiter(subject string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	sl, ok := rl.limiters[subject]
	if !ok {
		sl = &subjectLimiter{limiter: rate.NewLimiter(rl.config.Rate, rl.config.Burst)}
		rl.limiters[subject] = sl
	}
	sl.lastAccess = time.Now()
	return sl.limiter
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops buckets idle for more than two cleanup intervals.
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for subject, sl := range rl.limiters {
		if now.Sub(sl.lastAccess) > ttl {
			delete(rl.limiters, subject)
		}
	}
}

// writeRateLimitResponse sets Retry-After to the time one token takes to refill.
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfter := 1
	if r > 0 {
		retryAfter = max(1, int(math.Ceil(1.0/float64(r))))
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   "rate_limited",
		"message": "Too many requests. Please try again later.",
	})
}
