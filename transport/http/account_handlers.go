package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/service"
)

// AccountHandlers contains HTTP handlers for email accounts and password resets
type AccountHandlers struct {
	credentialService *service.CredentialService
	otpService        *service.OtpService
}

// NewAccountHandlers creates new account handlers
func NewAccountHandlers(credentialService *service.CredentialService, otpService *service.OtpService) *AccountHandlers {
	return &AccountHandlers{
		credentialService: credentialService,
		otpService:        otpService,
	}
}

// Register creates an email account
func (h *AccountHandlers) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Phone    string `json:"phone"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortInvalidRequest(c)
		return
	}

	credential, err := h.credentialService.Register(c.Request.Context(), req.Email, req.Password, req.Phone)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"email": credential.Email,
		"phone": credential.Phone,
	})
}

// Login signs in with email and password
func (h *AccountHandlers) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortInvalidRequest(c)
		return
	}

	result, err := h.credentialService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": result.Session.Token,
		"email": result.Credential.Email,
		"phone": result.Credential.Phone,
	})
}

// RequestOtp sends a password reset code to the account's phone
func (h *AccountHandlers) RequestOtp(c *gin.Context) {
	var req struct {
		Phone string `json:"phone"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortInvalidRequest(c)
		return
	}

	result, err := h.otpService.RequestOtp(c.Request.Context(), req.Phone)
	if err != nil {
		abortWithError(c, err)
		return
	}

	body := gin.H{"message": result.Message}
	if result.DevOtp != "" {
		body["devOtp"] = result.DevOtp
	}
	c.JSON(http.StatusOK, body)
}

// ResetPassword replaces the password using a reset code
func (h *AccountHandlers) ResetPassword(c *gin.Context) {
	var req struct {
		Phone       string `json:"phone"`
		Otp         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortInvalidRequest(c)
		return
	}

	email, err := h.otpService.ResetPassword(c.Request.Context(), req.Phone, req.Otp, req.NewPassword)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Password updated",
		"email":   email,
	})
}
