// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package rest

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/domainhive/domainhive/internal/auth"
	"github.com/domainhive/domainhive/internal/validate"
	"github.com/domainhive/domainhive/pkg/errutil"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string                `json:"error"`
	Code    string                `json:"code"`
	Details []validate.FieldError `json:"details,omitempty"`
}

// StatusFromError maps an auth error code to an HTTP status.
func StatusFromError(err error) int {
	switch auth.ErrorCode(err) {
	case auth.CodeDuplicateUser:
		return http.StatusConflict
	case auth.CodeInvalidCredentials, auth.CodeTokenInvalid, auth.CodeTokenExpired, auth.CodeTokenRevoked:
		return http.StatusUnauthorized
	case auth.CodeUserNotFound:
		return http.StatusNotFound
	case auth.CodeInvalidInput:
		return http.StatusBadRequest
	case auth.CodeForbidden:
		return http.StatusForbidden
	case auth.CodeLockedOut:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// writeError aborts the request with the error body for err.
// Internal failures are logged and reported without detail.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := StatusFromError(err)
	code := auth.ErrorCode(err)
	msg := err.Error()

	if status == http.StatusInternalServerError {
		errutil.LogErrorContext(c.Request.Context(), h.logger, slog.LevelError, "request failed", err)
		code = auth.CodeInternal
		msg = "internal error"
	}
	if after := retryAfter(err); after > 0 {
		c.Header("Retry-After", strconv.Itoa(after))
	}

	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: code})
}

func abortWith(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Code: code})
}

// retryAfter returns the retry hint attached to err in whole seconds.
func retryAfter(err error) int {
	return int(math.Ceil(auth.RetryAfter(err).Seconds()))
}
