package middlewares

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moyoez/scangate/tool"
	"github.com/moyoez/scangate/types"
)

const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter         = "Retry-After"
)

// RateChecker is the admission check run before every upload route.
type RateChecker interface {
	Check(ctx context.Context, identifier string) (types.RateLimitDecision, error)
}

// RateLimit admits or rejects a request by client identifier. Errors from the
// limiter store let the request through.
func RateLimit(limiter RateChecker, now func() time.Time) gin.HandlerFunc {
	if now == nil {
		now = time.Now
	}
	return func(c *gin.Context) {
		identifier := tool.ResolveClientIdentifier(c.Request.Header)
		decision, err := limiter.Check(c.Request.Context(), identifier)
		if err != nil {
			tool.DefaultLogger.Errorf("[RateLimit] Check failed for %s, letting request through: %v", identifier, err)
			c.Next()
			return
		}

		c.Header(HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
		c.Header(HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))
		c.Header(HeaderRateLimitReset, strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if decision.Allowed {
			c.Next()
			return
		}

		retryAfter := RetryAfterSeconds(decision.ResetAt, now())
		c.Header(HeaderRetryAfter, strconv.Itoa(retryAfter))
		tool.DefaultLogger.Warnf("[RateLimit] %s exceeded %d requests, retry after %ds", identifier, decision.Limit, retryAfter)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, tool.FastReturnErrorKind("Too many requests", "rate_limited", map[string]any{
			"retryAfter": retryAfter,
		}))
	}
}

// RetryAfterSeconds rounds the time left until resetAt up to whole seconds,
// never less than one.
func RetryAfterSeconds(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	return max(secs, 1)
}
