package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/storefront/internal/shared/constants"
	"github.com/orris-inc/storefront/internal/shared/logger"
	"github.com/orris-inc/storefront/internal/shared/utils"
)

// RateLimiter is a Redis-backed fixed-window request counter shared by all
// server instances. Requests are counted per merchant, or per client IP
// before authentication.
type RateLimiter struct {
	redisClient *redis.Client
	limit       int
	window      time.Duration
	logger      logger.Interface
	now         func() time.Time
}

// NewRateLimiter allows limit requests per window.
func NewRateLimiter(redisClient *redis.Client, limit int, window time.Duration, logger logger.Interface) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		limit:       limit,
		window:      window,
		logger:      logger,
		now:         time.Now,
	}
}

// key format: storefront:ratelimit:{merchant:<id>|ip:<addr>}:{window}
func (rl *RateLimiter) key(c *gin.Context) string {
	bucket := rl.now().Unix() / int64(rl.window.Seconds())
	if merchantID, ok := MerchantID(c); ok {
		return fmt.Sprintf("%smerchant:%s:%d", constants.KeyPrefixRateLimit, merchantID, bucket)
	}
	return fmt.Sprintf("%sip:%s:%d", constants.KeyPrefixRateLimit, c.ClientIP(), bucket)
}

// Limit returns a Gin middleware that enforces the rate limit. Redis errors
// let the request through.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		key := rl.key(c)

		count, err := rl.redisClient.Incr(ctx, key).Result()
		if err != nil {
			rl.logger.Warnw("rate limit check failed", "key", key, "error", err)
			c.Next()
			return
		}
		if count == 1 {
			rl.redisClient.Expire(ctx, key, rl.window+time.Second)
		}

		if count > int64(rl.limit) {
			c.Header("Retry-After", fmt.Sprintf("%d", int(rl.window.Seconds())))
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
