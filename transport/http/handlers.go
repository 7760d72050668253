package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/core"
	"github.com/layer-3/walletauth/service"
)

// AuthHandlers contains HTTP handlers for wallet auth endpoints
type AuthHandlers struct {
	authService     *service.AuthService
	identityService *service.IdentityService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, identityService *service.IdentityService) *AuthHandlers {
	return &AuthHandlers{
		authService:     authService,
		identityService: identityService,
	}
}

// Nonce issues a sign-in challenge for a wallet
func (h *AuthHandlers) Nonce(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, core.ErrInvalidAddress)
		return
	}

	challenge, err := h.authService.IssueChallenge(c.Request.Context(), req.Address)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"nonce":   challenge.Nonce,
		"message": challenge.Message,
	})
}

// Verify exchanges a signed challenge for a session
func (h *AuthHandlers) Verify(c *gin.Context) {
	var req struct {
		Address   string `json:"address"`
		Signature string `json:"signature"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		abortInvalidRequest(c)
		return
	}

	result, err := h.authService.Verify(c.Request.Context(), req.Address, req.Signature)
	if err != nil {
		// a missing challenge is a client sequencing error here, not a missing resource
		if errors.Is(err, core.ErrChallengeNotFound) {
			abortWithStatus(c, http.StatusBadRequest, KindNotFound, "Nonce not found or already used", err)
			return
		}
		abortWithError(c, err)
		return
	}

	body := gin.H{
		"token":          result.Session.Token,
		"address":        result.Session.Address,
		"linkedGoogleId": nullable(result.Session.LinkedIdentityID),
	}
	if result.FederatedToken != "" {
		body["federatedToken"] = result.FederatedToken
	}
	c.JSON(http.StatusOK, body)
}

// Link attaches the signed-in wallet to a federated identity
func (h *AuthHandlers) Link(c *gin.Context) {
	var req struct {
		GoogleID          string `json:"googleId"`
		Email             string `json:"email"`
		DisplayName       string `json:"displayName"`
		GoogleAccessToken string `json:"googleAccessToken"`
	}

	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		abortInvalidRequest(c)
		return
	}

	result, err := h.identityService.Link(c.Request.Context(), sessionFrom(c), service.LinkProof{
		IdentityID:  req.GoogleID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		AccessToken: req.GoogleAccessToken,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	body := gin.H{
		"address":        result.Session.Address,
		"linkedGoogleId": result.Identity.ID,
		"wallets":        result.Identity.Wallets,
		"email":          result.Identity.Email,
		"displayName":    result.Identity.DisplayName,
		"token":          result.Session.Token,
	}
	if result.FederatedToken != "" {
		body["federatedToken"] = result.FederatedToken
	}
	c.JSON(http.StatusOK, body)
}

// Profile returns the wallet's link state
func (h *AuthHandlers) Profile(c *gin.Context) {
	profile, err := h.identityService.Profile(c.Request.Context(), sessionFrom(c))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"address":        profile.Address,
		"linkedGoogleId": nullable(profile.LinkedIdentityID),
		"wallets":        profile.Wallets,
	})
}

// Logout revokes the bearer session
func (h *AuthHandlers) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), sessionFrom(c)); err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
