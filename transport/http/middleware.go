package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/ports"
	"github.com/layer-3/walletauth/service"
)

const sessionKey = "session"

// RatePolicy allows Limit requests per Window for each client
type RatePolicy struct {
	Limit  int
	Window time.Duration
}

// AuthMiddleware creates middleware that validates bearer session tokens
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		if len(auth) < 8 || !strings.EqualFold(auth[:7], "Bearer ") {
			abortWithStatus(c, http.StatusUnauthorized, KindUnauthorized, "Invalid authorization header", core.ErrSessionInvalid)
			return
		}

		session, err := authService.Session(c.Request.Context(), strings.TrimSpace(auth[7:]))
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(sessionKey, session)
		c.Next()
	}
}

// sessionFrom returns the session set by AuthMiddleware
func sessionFrom(c *gin.Context) *core.Session {
	value, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	session, _ := value.(*core.Session)
	return session
}

// RateLimit rejects clients exceeding policy on the named endpoint.
// A limiter outage lets the request through.
func RateLimit(limiter ports.RateLimiter, name string, policy RatePolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || policy.Limit <= 0 || policy.Window <= 0 {
			c.Next()
			return
		}

		allowed, err := limiter.Allow(c.Request.Context(), name+":"+c.ClientIP(), policy.Window, policy.Limit)
		if err != nil {
			log.Warn("Rate limiter unavailable", "endpoint", name, "error", err)
			c.Next()
			return
		}
		if !allowed {
			abortWithStatus(c, http.StatusTooManyRequests, KindRateLimited, "Too many requests", core.ErrRateLimited)
			return
		}

		c.Next()
	}
}

// RequestLogger logs each request once it has been served
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP request", args...)
		case status >= http.StatusBadRequest:
			log.Info("HTTP request", args...)
		default:
			log.Debug("HTTP request", args...)
		}
	}
}
