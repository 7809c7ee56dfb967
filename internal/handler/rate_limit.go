package handler

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prperemyshlev/access-service/internal/dto"
	"github.com/prperemyshlev/access-service/internal/service"
	"go.uber.org/zap"
)

// RateLimiter counts requests per key
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (service.RateLimitResult, error)
}

// RateLimitMiddleware rejects requests over limit per window. When the
// limiter itself fails the request is let through.
func RateLimitMiddleware(limiter RateLimiter, limit int, window time.Duration, keyFunc func(*gin.Context) string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := keyFunc(c)

		result, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn("rate limiter unavailable", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.ErrorResponse{
				Error:   "Too Many Requests",
				Message: "Rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}

// IPBasedKey limits each client address per route
func IPBasedKey(c *gin.Context) string {
	return "ip:" + c.FullPath() + ":" + c.ClientIP()
}
