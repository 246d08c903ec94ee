package gateway

import (
	"net/http"
	"sync"
	"time"

	"github.com/coreledger/platform/internal/common"
)

// window tracks one (tenant,userID) bucket's count for the current fixed
// window.
type window struct {
	count     int
	resetAt   time.Time
}

// RateLimiter is a fixed-window counter keyed by (tenant,userID), per spec
// §4.11. Unlike the teacher's token-bucket RateLimiter (which refills
// continuously), a fixed window resets its counter wholesale at windowSize
// boundaries — simpler, and sufficient for the "N requests per window"
// guarantee the spec asks for.
type RateLimiter struct {
	mu         sync.Mutex
	windows    map[string]*window
	limit      int
	windowSize time.Duration
}

func NewRateLimiter(limit int, windowSize time.Duration) *RateLimiter {
	return &RateLimiter{
		windows:    make(map[string]*window),
		limit:      limit,
		windowSize: windowSize,
	}
}

// Allow reports whether key may proceed, incrementing its window counter.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(rl.windowSize)}
		rl.windows[key] = w
	}
	if w.count >= rl.limit {
		return false
	}
	w.count++
	return true
}

// Middleware rate-limits by resolving (tenant,userID) from the
// authenticated request context, falling back to the remote address for
// unauthenticated callers.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.RemoteAddr
		if common.IsAuthenticated(r.Context()) {
			owner := common.GetResourceOwner(r.Context())
			key = owner.TenantID.String() + ":" + owner.UserID.String()
		}
		if !rl.Allow(key) {
			writeMutation(w, nil, common.NewRateLimited("rate limit exceeded for this window"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
