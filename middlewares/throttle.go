package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Throttle applies a per-actor token bucket to engagement endpoints
// (upvote, verify, comment). Anonymous callers are keyed by client IP.
type Throttle struct {
	mu       sync.Mutex
	limiters map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewThrottle(perSecond float64, burst int) *Throttle {
	return &Throttle{
		limiters: make(map[string]*visitor),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,
	}
}

func (t *Throttle) allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	v, ok := t.limiters[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(t.limit, t.burst)}
		t.limiters[key] = v
	}
	v.lastSeen = now

	// sweep idle visitors so the map does not grow without bound
	if len(t.limiters) > 1024 {
		for k, other := range t.limiters {
			if now.Sub(other.lastSeen) > t.idle {
				delete(t.limiters, k)
			}
		}
	}
	return v.limiter.AllowN(now, 1)
}

func (t *Throttle) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if actor := ActorFrom(c); actor.Authenticated() {
			key = actor.ID.Hex()
		}
		if !t.allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "too many requests, slow down",
				"kind":  "rate_limited",
			})
			return
		}
		c.Next()
	}
}
