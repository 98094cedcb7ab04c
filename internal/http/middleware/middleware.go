// Package middleware provides HTTP middleware specific to the application,
// layered on top of the generic platform/httpkit middleware.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"stageflow_backend/platform/httpkit"
	"stageflow_backend/platform/logger"
)

const headerAPIKey = "X-API-Key"

// KeyVerifier authenticates an API key and resolves the owning business.
type KeyVerifier interface {
	VerifyKey(ctx context.Context, key string) (uuid.UUID, error)
}

// APIKeyAuth authenticates business requests. The key is read from the
// X-API-Key header, with Authorization: Bearer accepted as a fallback for
// clients that cannot set custom headers. On success the business id is
// stored on the context for handlers to read via httpkit.MustGetBusinessID.
func APIKeyAuth(keys KeyVerifier, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := extractAPIKey(c)
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "missing api key"})
			return
		}

		businessID, err := keys.VerifyKey(c.Request.Context(), key)
		if err != nil {
			if log != nil {
				log.Warn("api key rejected", "path", c.Request.URL.Path, "ip", c.ClientIP())
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, httpkit.ErrorResponse{Error: "invalid api key"})
			return
		}

		c.Set(httpkit.ContextBusinessIDKey, businessID)
		c.Next()
	}
}

// BusinessRateLimiter throttles requests per authenticated business.
// Must run after APIKeyAuth so the business id is on the context.
type BusinessRateLimiter struct {
	limiters sync.Map
	rate     rate.Limit
	burst    int
}

// NewBusinessRateLimiter creates a per-business rate limiter.
func NewBusinessRateLimiter(r rate.Limit, burst int) *BusinessRateLimiter {
	return &BusinessRateLimiter{rate: r, burst: burst}
}

func (b *BusinessRateLimiter) getLimiter(businessID uuid.UUID) *rate.Limiter {
	limiter, exists := b.limiters.Load(businessID)
	if !exists {
		newLimiter := rate.NewLimiter(b.rate, b.burst)
		b.limiters.Store(businessID, newLimiter)
		return newLimiter
	}
	return limiter.(*rate.Limiter)
}

// Limit returns the middleware.
func (b *BusinessRateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		businessID, ok := httpkit.GetBusinessID(c)
		if !ok {
			c.Next()
			return
		}

		if !b.getLimiter(businessID).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httpkit.ErrorResponse{Error: "rate limit exceeded"})
			return
		}

		c.Next()
	}
}

// extractAPIKey pulls the raw API key out of the request headers.
func extractAPIKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader(headerAPIKey)); key != "" {
		return key
	}
	header := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}
