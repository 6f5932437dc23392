// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package grpc

import (
	"context"
	"log/slog"
	"math"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/domainhive/domainhive/internal/auth"
	"github.com/domainhive/domainhive/internal/validate"
)

// AuthServiceName is the fully qualified gRPC service name.
const AuthServiceName = "domainhive.auth.v1.Auth"

const (
	methodLogin       = "/" + AuthServiceName + "/Login"
	methodVerify      = "/" + AuthServiceName + "/Verify"
	methodLogout      = "/" + AuthServiceName + "/Logout"
	methodGetUser     = "/" + AuthServiceName + "/GetUser"
	methodWatchEvents = "/" + AuthServiceName + "/WatchEvents"
)

// retryAfterHeader carries the seconds a client should wait after a failed login.
const retryAfterHeader = "retry-after"

// WatchEventsRole is required to stream user lifecycle events.
const WatchEventsRole = "admin"

// AuthServer is the server API of the auth service. Credentials, users,
// login results and events travel as google.protobuf.Struct; tokens and
// user IDs as google.protobuf.StringValue.
type AuthServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Verify(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Logout(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	GetUser(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	WatchEvents(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

// AuthService implements AuthServer on top of the auth module.
type AuthService struct {
	module    *auth.Module
	validator *validate.Validator
	logger    *slog.Logger
}

// NewAuthService creates the service for module.
func NewAuthService(module *auth.Module, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &AuthService{module: module, validator: validate.New(), logger: logger}
}

// Login checks credentials and issues a token.
func (s *AuthService) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	creds := validate.LoginRequest{Username: stringField(req, keyUsername), Password: stringField(req, keyPassword)}
	res, err := s.validator.Validate(validate.SchemaLogin, creds)
	if err != nil {
		return nil, StatusFromError(err)
	}
	if !res.Valid {
		return nil, status.Errorf(codes.InvalidArgument, "%s: %s", res.Errors[0].Field, res.Errors[0].Message)
	}

	result, err := s.module.Login(ctx, creds.Username, creds.Password)
	if err != nil {
		if after := auth.RetryAfter(err); after > 0 {
			_ = grpc.SetHeader(ctx, metadata.Pairs(retryAfterHeader, strconv.Itoa(int(math.Ceil(after.Seconds())))))
		}
		return nil, StatusFromError(err)
	}
	resp, err := loginResponseToStruct(result)
	if err != nil {
		return nil, StatusFromError(err)
	}
	return resp, nil
}

// Verify checks the token in the request body.
func (s *AuthService) Verify(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	user, err := s.module.VerifyAuth(ctx, req.GetValue())
	if err != nil {
		return nil, StatusFromError(err)
	}
	resp, err := verifyResponseToStruct(user)
	if err != nil {
		return nil, StatusFromError(err)
	}
	return resp, nil
}

// Logout revokes the token the call was authenticated with.
func (s *AuthService) Logout(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	token, ok := TokenFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing bearer token")
	}
	if err := s.module.Logout(ctx, token); err != nil {
		return nil, StatusFromError(err)
	}
	return &emptypb.Empty{}, nil
}

// GetUser returns a user by ID.
func (s *AuthService) GetUser(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	id := req.GetValue()
	user, err := s.module.GetUser(ctx, id)
	if err != nil {
		return nil, StatusFromError(err)
	}
	if user == nil {
		return nil, status.Errorf(codes.NotFound, "user %q not found", id)
	}
	resp, err := userToStruct(user)
	if err != nil {
		return nil, StatusFromError(err)
	}
	return resp, nil
}

// WatchEvents streams user lifecycle events to admins until the client
// goes away or the module closes.
func (s *AuthService) WatchEvents(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	caller, _ := UserFromContext(ctx)
	if !s.module.HasRole(caller, WatchEventsRole) {
		return status.Error(codes.PermissionDenied, "admin role required")
	}

	events := s.module.Subscribe()
	defer s.module.Unsubscribe(events)

	s.logger.DebugContext(ctx, "event stream opened", "user_id", caller.ID)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			msg, err := eventToStruct(ev)
			if err != nil {
				return StatusFromError(err)
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
		}
	}
}

func loginHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServer).Login(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodLogin}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServer).Login(ctx, req.(*structpb.Struct))
	})
}

func verifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServer).Verify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodVerify}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServer).Verify(ctx, req.(*wrapperspb.StringValue))
	})
}

func logoutHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServer).Logout(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodLogout}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServer).Logout(ctx, req.(*emptypb.Empty))
	})
}

func getUserHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuthServer).GetUser(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetUser}
	return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
		return srv.(AuthServer).GetUser(ctx, req.(*wrapperspb.StringValue))
	})
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(AuthServer).WatchEvents(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}

// AuthServiceDesc describes the auth service for grpc.Server.RegisterService.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: AuthServiceName,
	HandlerType: (*AuthServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Login", Handler: loginHandler},
		{MethodName: "Verify", Handler: verifyHandler},
		{MethodName: "Logout", Handler: logoutHandler},
		{MethodName: "GetUser", Handler: getUserHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchEvents", Handler: watchEventsHandler, ServerStreams: true},
	},
}

// RegisterAuthServer registers srv on s.
func RegisterAuthServer(s grpc.ServiceRegistrar, srv AuthServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}
