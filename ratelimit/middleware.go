package ratelimit

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sweetpotato0/raggate/errors"
)

// KeyFunc derives the rate limit subject from a request.
type KeyFunc func(c *gin.Context) string

// ByIP keys requests on the client address.
func ByIP(c *gin.Context) string {
	return c.ClientIP()
}

// ByUser keys requests on the authenticated user header, falling back to the
// client address for anonymous traffic.
func ByUser(c *gin.Context) string {
	if user := c.GetHeader("X-User-ID"); user != "" {
		return user
	}
	return c.ClientIP()
}

// Global keys every request into one shared window.
func Global(*gin.Context) string {
	return "global"
}

// Rule binds a limiter to a subject extractor.
type Rule struct {
	Limiter *Limiter
	Key     KeyFunc
}

// Middleware checks each rule in order and rejects with 429 on the first
// exhausted window. The response carries X-RateLimit headers for the
// strictest rule that matched.
func Middleware(rules ...Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, rule := range rules {
			decision := rule.Limiter.Allow(rule.Key(c))
			setHeaders(c, decision)
			if !decision.Allowed {
				c.Header("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter.Seconds())+1))
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"error": gin.H{
						"message": fmt.Sprintf("rate limit exceeded for policy %s", decision.Policy),
						"code":    string(errors.CodeRateLimitExceeded),
						"details": gin.H{
							"policy":     decision.Policy,
							"limit":      decision.Limit,
							"retryAfter": decision.RetryAfter.Seconds(),
						},
					},
				})
				return
			}
		}
		c.Next()
	}
}

// ThrottleMiddleware delays bursty clients instead of rejecting them.
func ThrottleMiddleware(t *Throttler, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := t.Wait(c.Request.Context(), key(c)); err != nil {
			c.AbortWithStatusJSON(http.StatusRequestTimeout, gin.H{
				"error": gin.H{
					"message": "request cancelled while throttled",
					"code":    string(errors.CodeRequestTimeout),
				},
			})
			return
		}
		c.Next()
	}
}

func setHeaders(c *gin.Context, d Decision) {
	c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", d.Limit))
	c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", d.Remaining))
	c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", d.ResetAt.Unix()))
}
