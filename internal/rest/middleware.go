// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package rest

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/domainhive/domainhive/internal/auth"
)

const (
	userKey  = "domainhive.user"
	tokenKey = "domainhive.token"
)

// BearerToken extracts the token from an "Authorization: Bearer <t>" header.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// CurrentUser returns the user stored by Authenticate.
func CurrentUser(c *gin.Context) (*auth.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*auth.User)
	return user, ok && user != nil
}

// Authenticate rejects requests without a valid bearer token and stores the
// token's user in the context.
func (h *Handler) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWith(c, http.StatusUnauthorized, auth.CodeTokenInvalid, "authentication required")
			return
		}

		user, err := h.module.VerifyAuth(c.Request.Context(), token)
		if err != nil {
			h.writeError(c, err)
			return
		}
		if user == nil {
			abortWith(c, http.StatusUnauthorized, auth.CodeTokenInvalid, "invalid or expired token")
			return
		}

		c.Set(userKey, user)
		c.Set(tokenKey, token)
		c.Next()
	}
}

// RequireRoles lets a request through when the authenticated user holds any
// of roles. It must run after Authenticate.
func (h *Handler) RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, auth.CodeTokenInvalid, "authentication required")
			return
		}
		if !h.module.HasAnyRole(user, roles...) {
			abortWith(c, http.StatusForbidden, auth.CodeForbidden, "insufficient role")
			return
		}
		c.Next()
	}
}

// observe counts and logs every request once the handler chain finishes.
func (h *Handler) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		h.metrics.RecordRequest("http", route, strconv.Itoa(status))
		h.logger.DebugContext(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
		)
	}
}
