package middlewares

import (
	"net/http"
	"strings"
	"sync"
	"time"

	ttlworker "github.com/FloatTech/ttl"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/moyoez/snapshare/metrics"
	"github.com/moyoez/snapshare/tool"
)

// visitorTTL drops limiters of clients that went quiet.
const visitorTTL = 10 * time.Minute

// rateLimitExempt lists path prefixes that are never limited: streams are one
// long request each, and health probes must always answer.
var rateLimitExempt = []string{"/api/events", "/health"}

type rateLimiter struct {
	mu       sync.Mutex
	visitors *ttlworker.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

func (rl *rateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	lim := rl.visitors.Get(ip)
	if lim == nil {
		lim = rate.NewLimiter(rl.limit, rl.burst)
	}
	rl.visitors.Set(ip, lim) // refresh expiry
	return lim
}

// RateLimit allows perMinute requests per client IP, refilled evenly over the
// minute. A perMinute of zero or less disables limiting.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	rl := &rateLimiter{
		visitors: ttlworker.NewCache[string, *rate.Limiter](visitorTTL),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range rateLimitExempt {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}
		if !rl.get(c.ClientIP()).Allow() {
			metrics.RecordRateLimitHit()
			tool.DefaultLogger.Warnf("[RateLimit] %s exceeded %d requests/min", c.ClientIP(), perMinute)
			tool.AbortWithError(c, http.StatusTooManyRequests, "Too Many Requests")
			return
		}
		c.Next()
	}
}
