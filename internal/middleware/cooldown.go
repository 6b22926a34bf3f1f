package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"wattson/internal/model"
	"wattson/pkg/log"
)

// Cooldown throttles advice and search requests to one per user per
// window. Must run after AuthMiddleware. A Redis outage lets requests
// through.
func Cooldown(redisClient *redis.Client, seconds int) gin.HandlerFunc {
	window := time.Duration(seconds) * time.Second
	return func(c *gin.Context) {
		if seconds <= 0 {
			c.Next()
			return
		}
		user, exists := c.Get("user")
		if !exists {
			c.Next()
			return
		}
		key := fmt.Sprintf("cooldown:%d", user.(*model.User).ID)

		ok, err := redisClient.SetNX(c.Request.Context(), key, 1, window).Result()
		if err != nil {
			log.Warnf("cooldown check failed, letting request through: %v", err)
			c.Next()
			return
		}
		if !ok {
			remaining, err := redisClient.TTL(c.Request.Context(), key).Result()
			if err != nil || remaining < 0 {
				remaining = window
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":            "too many requests",
				"retryAfterSeconds": int(remaining.Seconds() + 0.999),
			})
			return
		}
		c.Next()
	}
}
