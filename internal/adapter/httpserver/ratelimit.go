package httpserver

import (
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/pscheid92/crowdroom/internal/platform/errors"
	"golang.org/x/time/rate"
)

// idleVisitorExpiry drops per-IP buckets that have not been used for a while.
const idleVisitorExpiry = 5 * time.Minute

// rateLimitPolicy throttles a route per client IP with a token bucket.
type rateLimitPolicy struct {
	perSecond float64
	burst     int
}

// retryAfter is the whole number of seconds until one token refills.
func (p rateLimitPolicy) retryAfter() int {
	if p.perSecond <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(1/p.perSecond)))
}

func (p rateLimitPolicy) middleware() echo.MiddlewareFunc {
	retryAfter := strconv.Itoa(p.retryAfter())
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(p.perSecond),
			Burst:     p.burst,
			ExpiresIn: idleVisitorExpiry,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, ip string, _ error) error {
			c.Response().Header().Set("Retry-After", retryAfter)
			return apperrors.RateLimited("rate limit exceeded").With("retry_after", retryAfter)
		},
	})
}
