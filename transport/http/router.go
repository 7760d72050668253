package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/ports"
	"github.com/layer-3/walletauth/service"
)

// Services are the application services exposed over HTTP
type Services struct {
	Auth        *service.AuthService
	Identity    *service.IdentityService
	Credentials *service.CredentialService
	Otp         *service.OtpService
}

// RatePolicies holds one policy per rate limited endpoint
type RatePolicies struct {
	Nonce      RatePolicy
	Verify     RatePolicy
	Link       RatePolicy
	Logout     RatePolicy
	Register   RatePolicy
	Login      RatePolicy
	OtpRequest RatePolicy
	OtpVerify  RatePolicy
}

// DefaultRatePolicies are the per-IP limits applied when nothing is configured
func DefaultRatePolicies() RatePolicies {
	return RatePolicies{
		Nonce:      RatePolicy{Limit: 30, Window: time.Minute},
		Verify:     RatePolicy{Limit: 20, Window: time.Minute},
		Link:       RatePolicy{Limit: 10, Window: time.Minute},
		Logout:     RatePolicy{Limit: 30, Window: time.Minute},
		Register:   RatePolicy{Limit: 10, Window: time.Hour},
		Login:      RatePolicy{Limit: 20, Window: time.Minute},
		OtpRequest: RatePolicy{Limit: 3, Window: 15 * time.Minute},
		OtpVerify:  RatePolicy{Limit: 10, Window: 15 * time.Minute},
	}
}

// SetupRouter sets up the Gin router
func SetupRouter(services Services, limiter ports.RateLimiter, policies RatePolicies, now func() time.Time) *gin.Engine {
	if now == nil {
		now = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger())

	authHandlers := NewAuthHandlers(services.Auth, services.Identity)
	accountHandlers := NewAccountHandlers(services.Credentials, services.Otp)
	requireSession := AuthMiddleware(services.Auth)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": now().UTC().Format(time.RFC3339),
		})
	})

	auth := router.Group("/auth")
	{
		auth.POST("/nonce", RateLimit(limiter, "nonce", policies.Nonce), authHandlers.Nonce)
		auth.POST("/verify", RateLimit(limiter, "verify", policies.Verify), authHandlers.Verify)
		auth.POST("/link", RateLimit(limiter, "link", policies.Link), requireSession, authHandlers.Link)
		auth.GET("/profile", requireSession, authHandlers.Profile)
		auth.POST("/logout", RateLimit(limiter, "logout", policies.Logout), requireSession, authHandlers.Logout)

		auth.POST("/register/email", RateLimit(limiter, "register", policies.Register), accountHandlers.Register)
		auth.POST("/login/email", RateLimit(limiter, "login", policies.Login), accountHandlers.Login)
		auth.POST("/password/request-otp", RateLimit(limiter, "otp_request", policies.OtpRequest), accountHandlers.RequestOtp)
		auth.POST("/password/reset", RateLimit(limiter, "otp_verify", policies.OtpVerify), accountHandlers.ResetPassword)
	}

	return router
}
