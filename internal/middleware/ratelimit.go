package middleware

import (
	"fmt"
	"time"

	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/cache"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	rateLimitMax    = 50
	rateLimitWindow = time.Second
)

// RateLimit enforces a coarse per-IP request ceiling on unauthenticated
// traffic. It is a blunt backstop in front of the brute-force guard, which
// tracks credential attempts with much tighter limits. Fails open when the
// cache is unreachable.
func RateLimit(store cache.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsAuthenticated(c) {
			c.Next()
			return
		}

		ip := c.ClientIP()
		if ip == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("auth:rate:%s:%d", ip, time.Now().Unix())

		count, err := store.Incr(ctx, key)
		if err != nil {
			c.Next()
			return
		}
		if count == 1 {
			_ = store.Expire(ctx, key, rateLimitWindow+time.Second)
		}

		if count > rateLimitMax {
			response.TooManyRequests(c, time.Second)
			return
		}

		c.Next()
	}
}
