package middlewares

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/Rally/utils/ratelimit"
)

// RateLimitMiddleware 按用户限制某类写操作的频率，scope 区分评论、RSVP、投票等
// 必须挂在 AuthMiddleware 之后；放行时在 X-RateLimit-Remaining 中告知本窗口剩余次数
func RateLimitMiddleware(limiter ratelimit.Limiter, scope string, rule ratelimit.Rule) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || rule.Limit <= 0 {
			c.Next()
			return
		}
		uid, ok := UserID(c)
		if !ok {
			c.Next()
			return
		}

		key := fmt.Sprintf("%s:%d", scope, uid)
		allowed, err := limiter.Allow(c.Request.Context(), key, rule)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "rate limiter unavailable"})
			return
		}
		if !allowed {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(rule.Window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
			return
		}
		// 读计数失败不影响本次请求，只是不带剩余次数
		if left, err := limiter.Remaining(c.Request.Context(), key, rule); err == nil {
			c.Header("X-RateLimit-Remaining", strconv.Itoa(left))
		}
		c.Next()
	}
}
