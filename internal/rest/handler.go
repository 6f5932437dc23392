// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

// Package rest exposes the auth module over HTTP using gin.
package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/domainhive/domainhive/internal/auth"
	"github.com/domainhive/domainhive/internal/observability"
	"github.com/domainhive/domainhive/internal/validate"
)

// AdminRole may manage every user.
const AdminRole = "admin"

// Handler wires HTTP routes to the auth module.
type Handler struct {
	module    *auth.Module
	validator *validate.Validator
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithMetrics sets the collectors requests are counted in.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// WithValidator replaces the default payload validator.
func WithValidator(v *validate.Validator) Option {
	return func(h *Handler) {
		if v != nil {
			h.validator = v
		}
	}
}

// NewHandler creates a Handler for module.
func NewHandler(module *auth.Module, opts ...Option) *Handler {
	h := &Handler{
		module:    module,
		validator: validate.New(),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds a gin engine with every route registered.
func (h *Handler) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.observe())
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes adds the auth and user routes to router.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.GET("/verify", h.verify)
		authGroup.POST("/logout", h.logout)
	}

	users := router.Group("/users", h.Authenticate())
	{
		users.GET("/:id", h.getUser)
		users.PATCH("/:id", h.updateUser)
		users.DELETE("/:id", h.RequireRoles(AdminRole), h.deleteUser)
		users.POST("/:id/password", h.changePassword)
	}
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *auth.User `json:"user"`
}

type verifyResponse struct {
	Valid bool       `json:"valid"`
	User  *auth.User `json:"user,omitempty"`
}

// bind validates the request body against schema and decodes it into dst.
// It writes the error response and returns false on failure.
func (h *Handler) bind(c *gin.Context, schema string, dst any) bool {
	raw, err := c.GetRawData()
	if err != nil {
		abortWith(c, http.StatusBadRequest, auth.CodeInvalidInput, "unreadable request body")
		return false
	}

	res, err := h.validator.Validate(schema, raw)
	if err != nil {
		h.writeError(c, err)
		return false
	}
	if !res.Valid {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation failed",
			Code:    auth.CodeInvalidInput,
			Details: res.Errors,
		})
		return false
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		abortWith(c, http.StatusBadRequest, auth.CodeInvalidInput, "malformed request body")
		return false
	}
	return true
}

// optionalUser resolves the bearer token if one is present.
func (h *Handler) optionalUser(c *gin.Context) *auth.User {
	token, ok := BearerToken(c.GetHeader("Authorization"))
	if !ok {
		return nil
	}
	user, err := h.module.VerifyAuth(c.Request.Context(), token)
	if err != nil {
		return nil
	}
	return user
}

func (h *Handler) register(c *gin.Context) {
	var req validate.RegisterRequest
	if !h.bind(c, validate.SchemaRegister, &req) {
		return
	}

	if len(req.Roles) > 0 && !h.module.HasRole(h.optionalUser(c), AdminRole) {
		abortWith(c, http.StatusForbidden, auth.CodeForbidden, "only admins may assign roles")
		return
	}

	user, err := h.module.Register(c.Request.Context(), req.Username, req.Email, req.Password, req.Roles...)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *Handler) login(c *gin.Context) {
	var req validate.LoginRequest
	if !h.bind(c, validate.SchemaLogin, &req) {
		return
	}

	result, err := h.module.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.metrics.RecordLoginFailure(auth.ErrorCode(err))
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: result.Token, ExpiresAt: result.ExpiresAt, User: result.User})
}

func (h *Handler) verify(c *gin.Context) {
	token, ok := BearerToken(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusUnauthorized, verifyResponse{})
		return
	}

	user, err := h.module.VerifyAuth(c.Request.Context(), token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, verifyResponse{})
		return
	}
	c.JSON(http.StatusOK, verifyResponse{Valid: true, User: user})
}

func (h *Handler) logout(c *gin.Context) {
	if token, ok := BearerToken(c.GetHeader("Authorization")); ok {
		if err := h.module.Logout(c.Request.Context(), token); err != nil {
			h.writeError(c, err)
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getUser(c *gin.Context) {
	user, err := h.module.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if user == nil {
		abortWith(c, http.StatusNotFound, auth.CodeUserNotFound, "user not found")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) updateUser(c *gin.Context) {
	caller, _ := CurrentUser(c)
	id := c.Param("id")
	isAdmin := h.module.HasRole(caller, AdminRole)
	if caller.ID != id && !isAdmin {
		abortWith(c, http.StatusForbidden, auth.CodeForbidden, "cannot modify another user")
		return
	}

	var req validate.UpdateUserRequest
	if !h.bind(c, validate.SchemaUpdateUser, &req) {
		return
	}
	if req.Roles != nil && !isAdmin {
		abortWith(c, http.StatusForbidden, auth.CodeForbidden, "only admins may change roles")
		return
	}

	user, err := h.module.UpdateUser(c.Request.Context(), id, auth.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
		Roles:    req.Roles,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handler) deleteUser(c *gin.Context) {
	if err := h.module.DeleteUser(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) changePassword(c *gin.Context) {
	caller, _ := CurrentUser(c)
	id := c.Param("id")
	if caller.ID != id {
		abortWith(c, http.StatusForbidden, auth.CodeForbidden, "cannot change another user's password")
		return
	}

	var req validate.ChangePasswordRequest
	if !h.bind(c, validate.SchemaChangePassword, &req) {
		return
	}
	if err := h.module.ChangePassword(c.Request.Context(), id, req.OldPassword, req.NewPassword); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
