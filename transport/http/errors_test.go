package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/layer-3/walletauth/core"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		err     error
		status  int
		kind    string
		message string
	}{
		{core.ErrInvalidAddress, http.StatusBadRequest, KindValidation, "invalid wallet address"},
		{core.ErrInvalidSignature, http.StatusUnauthorized, KindUnauthorized, "invalid signature"},
		{core.ErrEmailTaken, http.StatusConflict, KindConflict, "email already registered"},
		{core.ErrChallengeExpired, http.StatusBadRequest, KindExpired, "challenge expired"},
		{core.ErrOtpNotFound, http.StatusNotFound, KindNotFound, "no reset code outstanding"},
		{core.ErrTooManyAttempts, http.StatusTooManyRequests, KindTooManyAttempts, "too many attempts"},
		{core.ErrInvalidCode, http.StatusUnauthorized, KindInvalidCode, "invalid code"},
		{core.ErrRateLimited, http.StatusTooManyRequests, KindRateLimited, "rate limited"},
		{fmt.Errorf("%w: tokeninfo down", core.ErrUpstream), http.StatusBadGateway, KindUpstream, "upstream failure: tokeninfo down"},
		{fmt.Errorf("%w: dial tcp", core.ErrStorageUnavailable), http.StatusServiceUnavailable, KindStorageUnavailable, "storage unavailable: dial tcp"},
		{errors.New("boom"), http.StatusInternalServerError, KindInternal, "boom"},
	}

	for _, tc := range tests {
		t.Run(tc.kind, func(t *testing.T) {
			status, kind, message := classify(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, kind)
			assert.Equal(t, tc.message, message)
		})
	}
}
