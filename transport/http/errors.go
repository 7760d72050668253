package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/walletauth/core"
)

// Stable error kinds reported in the "kind" field of error bodies
const (
	KindValidation         = "validation_error"
	KindUnauthorized       = "unauthorized"
	KindConflict           = "conflict"
	KindExpired            = "expired"
	KindNotFound           = "not_found"
	KindTooManyAttempts    = "too_many_attempts"
	KindInvalidCode        = "invalid_code"
	KindRateLimited        = "rate_limited"
	KindUpstream           = "upstream_failure"
	KindStorageUnavailable = "storage_unavailable"
	KindInternal           = "internal"
)

var errorKinds = []struct {
	target error
	status int
	kind   string
}{
	{core.ErrValidation, http.StatusBadRequest, KindValidation},
	{core.ErrUnauthorized, http.StatusUnauthorized, KindUnauthorized},
	{core.ErrConflict, http.StatusConflict, KindConflict},
	{core.ErrExpired, http.StatusBadRequest, KindExpired},
	{core.ErrNotFound, http.StatusNotFound, KindNotFound},
	{core.ErrTooManyAttempts, http.StatusTooManyRequests, KindTooManyAttempts},
	{core.ErrInvalidCode, http.StatusUnauthorized, KindInvalidCode},
	{core.ErrRateLimited, http.StatusTooManyRequests, KindRateLimited},
	{core.ErrUpstream, http.StatusBadGateway, KindUpstream},
	{core.ErrStorageUnavailable, http.StatusServiceUnavailable, KindStorageUnavailable},
}

// classify maps an error to its HTTP status, kind and public message
func classify(err error) (int, string, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.kind, strings.TrimSuffix(err.Error(), ": "+k.target.Error())
		}
	}
	return http.StatusInternalServerError, KindInternal, err.Error()
}

// abortWithError writes the error body for err and stops the handler chain
func abortWithError(c *gin.Context, err error) {
	status, kind, message := classify(err)
	abortWithStatus(c, status, kind, message, err)
}

// publicMessages replace error text that may carry internal addresses or credentials
var publicMessages = map[string]string{
	KindInternal:           "Internal server error",
	KindStorageUnavailable: "Storage unavailable",
	KindUpstream:           "Identity provider unavailable",
}

func abortWithStatus(c *gin.Context, status int, kind, message string, err error) {
	if public, ok := publicMessages[kind]; ok {
		log.Error("Request failed", "method", c.Request.Method, "path", c.FullPath(), "kind", kind, "error", err)
		message = public
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message, "kind": kind})
}

func abortInvalidRequest(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "kind": KindValidation})
}
