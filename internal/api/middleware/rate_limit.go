package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"postdeck/internal/pkg/errors"
)

type RateLimiter struct {
	store *sync.Map // map[string]*Bucket
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
}

type Bucket struct {
	tokens     int
	lastRefill time.Time
	lastAccess time.Time
	mu         sync.Mutex
}

const bucketIdle = 10 * time.Minute

func NewRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		store: &sync.Map{},
		now:   time.Now,
		done:  make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Close stops the cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.once.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(bucketIdle)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	now := rl.now()
	rl.store.Range(func(key, value interface{}) bool {
		bucket := value.(*Bucket)
		bucket.mu.Lock()
		if now.Sub(bucket.lastAccess) > bucketIdle {
			rl.store.Delete(key)
		}
		bucket.mu.Unlock()
		return true
	})
}

// Allow takes one token from key's bucket, which holds at most limit tokens and
// refills at limit per minute.
func (rl *RateLimiter) Allow(key string, limit int) bool {
	if limit <= 0 {
		return true
	}
	now := rl.now()

	val, _ := rl.store.LoadOrStore(key, &Bucket{
		tokens:     limit,
		lastRefill: now,
		lastAccess: now,
	})

	bucket := val.(*Bucket)
	bucket.mu.Lock()
	defer bucket.mu.Unlock()

	bucket.lastAccess = now

	interval := time.Minute / time.Duration(limit)
	if refill := int(now.Sub(bucket.lastRefill) / interval); refill > 0 {
		bucket.tokens = min(limit, bucket.tokens+refill)
		bucket.lastRefill = bucket.lastRefill.Add(time.Duration(refill) * interval)
		if bucket.tokens == limit {
			bucket.lastRefill = now
		}
	}

	if bucket.tokens > 0 {
		bucket.tokens--
		return true
	}
	return false
}

// Limit allows perMinute requests per client IP for the named route group.
func (rl *RateLimiter) Limit(group string, perMinute int) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(ClientIP(r)+":"+group, perMinute) {
				w.Header().Set("Retry-After", strconv.Itoa(60/max(perMinute, 1)+1))
				errors.Write(w, r, errors.New(errors.KindRateLimited, "Rate limit exceeded"))
				return
			}
			next(w, r)
		}
	}
}
