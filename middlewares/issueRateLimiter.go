package middlewares

import (
	"net/http"
	"time"

	"civicguardian-be/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// IssueRateLimiter caps how many issues one user may report per rolling day.
// It must run after AuthMiddleware.
func IssueRateLimiter(client *redis.Client, queuePrefix string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		if !actor.Authenticated() {
			AbortWithError(c, apperrors.Unauthorized("authentication required"))
			return
		}

		ctx := c.Request.Context()

		// Create individual key for each user
		userKey := queuePrefix + ":" + actor.ID.Hex()

		// Increment user's count with TTL
		count, err := client.Incr(ctx, userKey).Result()
		if err != nil {
			AbortWithError(c, apperrors.Internal("redis error incrementing count", err))
			return
		}

		// Set TTL only for the first increment (when count = 1)
		if count == 1 {
			if err := client.Expire(ctx, userKey, 24*time.Hour).Err(); err != nil {
				AbortWithError(c, apperrors.Internal("redis error setting TTL", err))
				return
			}
		}

		// Check if user exceeded limit
		if count > int64(limit) {
			retryAfter, err := client.TTL(ctx, userKey).Result()
			if err != nil {
				log.Warn().Err(err).Str("key", userKey).Msg("failed to read quota TTL")
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "daily issue limit exceeded",
				"kind":        "rate_limited",
				"retry_after": retryAfter.Seconds(),
			})
			return
		}

		c.Next()
	}
}
