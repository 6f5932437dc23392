// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package grpc

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/domainhive/domainhive/internal/auth"
	"github.com/domainhive/domainhive/internal/observability"
)

// healthMethodPrefix covers every method of grpc.health.v1.Health.
const healthMethodPrefix = "/grpc.health.v1.Health/"

// Verifier resolves a bearer token to a user. A nil user means the token
// was not accepted.
type Verifier interface {
	VerifyAuth(ctx context.Context, token string) (*auth.User, error)
}

type userCtxKey struct{}

type tokenCtxKey struct{}

// UserFromContext returns the user an auth interceptor attached to ctx.
func UserFromContext(ctx context.Context) (*auth.User, bool) {
	user, ok := ctx.Value(userCtxKey{}).(*auth.User)
	return user, ok && user != nil
}

// TokenFromContext returns the bearer token an auth interceptor accepted.
func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenCtxKey{}).(string)
	return token, ok && token != ""
}

// IsPublicMethod reports whether fullMethod may be called without a token.
func IsPublicMethod(fullMethod string) bool {
	if strings.HasPrefix(fullMethod, healthMethodPrefix) {
		return true
	}
	switch fullMethod {
	case methodLogin, methodVerify:
		return true
	}
	return false
}

// bearerFromMetadata reads "authorization: Bearer <t>" from incoming metadata.
func bearerFromMetadata(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, v := range md.Get("authorization") {
		scheme, token, found := strings.Cut(strings.TrimSpace(v), " ")
		if found && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), true
		}
	}
	return "", false
}

func authenticate(ctx context.Context, v Verifier) (context.Context, error) {
	token, ok := bearerFromMetadata(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	user, err := v.VerifyAuth(ctx, token)
	if err != nil {
		return nil, StatusFromError(err)
	}
	if user == nil {
		return nil, status.Error(codes.Unauthenticated, "invalid or expired token")
	}
	ctx = context.WithValue(ctx, userCtxKey{}, user)
	return context.WithValue(ctx, tokenCtxKey{}, token), nil
}

// UnaryAuthInterceptor rejects calls to non-public methods that lack a
// valid bearer token and attaches the token's user to the context.
func UnaryAuthInterceptor(v Verifier) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if IsPublicMethod(info.FullMethod) {
			return handler(ctx, req)
		}
		authCtx, err := authenticate(ctx, v)
		if err != nil {
			return nil, err
		}
		return handler(authCtx, req)
	}
}

type authedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authedStream) Context() context.Context {
	return s.ctx
}

// StreamAuthInterceptor is the streaming counterpart of UnaryAuthInterceptor.
func StreamAuthInterceptor(v Verifier) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if IsPublicMethod(info.FullMethod) {
			return handler(srv, ss)
		}
		authCtx, err := authenticate(ss.Context(), v)
		if err != nil {
			return err
		}
		return handler(srv, &authedStream{ServerStream: ss, ctx: authCtx})
	}
}

// UnaryMetricsInterceptor counts unary calls by method and status code.
func UnaryMetricsInterceptor(m *observability.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		m.RecordRequest("grpc", info.FullMethod, status.Code(err).String())
		return resp, err
	}
}

// StatusFromError converts an auth error into a gRPC status error.
// Errors that already carry a status pass through unchanged.
func StatusFromError(err error) error {
	if err == nil {
		return nil
	}
	var se interface{ GRPCStatus() *status.Status }
	if errors.As(err, &se) {
		return err
	}

	switch auth.ErrorCode(err) {
	case auth.CodeDuplicateUser:
		return status.Error(codes.AlreadyExists, err.Error())
	case auth.CodeInvalidCredentials, auth.CodeTokenInvalid, auth.CodeTokenExpired, auth.CodeTokenRevoked:
		return status.Error(codes.Unauthenticated, err.Error())
	case auth.CodeUserNotFound:
		return status.Error(codes.NotFound, err.Error())
	case auth.CodeInvalidInput:
		return status.Error(codes.InvalidArgument, err.Error())
	case auth.CodeForbidden:
		return status.Error(codes.PermissionDenied, err.Error())
	case auth.CodeLockedOut:
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	if errors.Is(err, context.Canceled) {
		return status.Error(codes.Canceled, err.Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}
