// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package grpc

import (
	"context"
	cryptotls "crypto/tls"
	"errors"
	"io"
	"time"

	"github.com/samber/oops"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/domainhive/domainhive/internal/auth"
)

// Client calls the auth service.
type Client struct {
	conn *grpc.ClientConn
}

// ClientConfig holds configuration for the gRPC client.
type ClientConfig struct {
	// Address is the target server, e.g. "localhost:9090".
	Address string

	// TLSConfig enables TLS. A nil config dials without transport security.
	TLSConfig *cryptotls.Config

	// KeepaliveTime is how often to ping the server (default: 10s).
	KeepaliveTime time.Duration

	// KeepaliveTimeout is how long to wait for a ping ack (default: 5s).
	KeepaliveTimeout time.Duration

	// DialOptions are appended to the generated options.
	DialOptions []grpc.DialOption
}

// NewClient creates a client. The connection is established lazily.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Address == "" {
		return nil, oops.Errorf("address is required")
	}
	if cfg.KeepaliveTime == 0 {
		cfg.KeepaliveTime = 10 * time.Second
	}
	if cfg.KeepaliveTimeout == 0 {
		cfg.KeepaliveTimeout = 5 * time.Second
	}

	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: true,
		}),
	}
	if cfg.TLSConfig != nil {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(cfg.TLSConfig)))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	opts = append(opts, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, oops.With("address", cfg.Address).Wrap(err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	if err := c.conn.Close(); err != nil {
		return oops.Wrap(err)
	}
	return nil
}

func withToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	req, err := loginRequest(username, password)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodLogin, req, resp); err != nil {
		return nil, err
	}
	return loginResponseFromStruct(resp)
}

// Verify checks token.
func (c *Client) Verify(ctx context.Context, token string) (*VerifyResponse, error) {
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, methodVerify, wrapperspb.String(token), resp); err != nil {
		return nil, err
	}
	return verifyResponseFromStruct(resp)
}

// Logout revokes token.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.conn.Invoke(withToken(ctx, token), methodLogout, &emptypb.Empty{}, new(emptypb.Empty))
}

// GetUser fetches a user by ID on behalf of token's holder.
func (c *Client) GetUser(ctx context.Context, token, id string) (*auth.User, error) {
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(withToken(ctx, token), methodGetUser, wrapperspb.String(id), resp); err != nil {
		return nil, err
	}
	return userFromStruct(resp)
}

// WatchEvents streams lifecycle events to fn until ctx ends, the server
// closes the stream, or fn returns an error.
func (c *Client) WatchEvents(ctx context.Context, token string, fn func(EventMessage) error) error {
	stream, err := c.conn.NewStream(withToken(ctx, token), &AuthServiceDesc.Streams[0], methodWatchEvents)
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		raw := new(structpb.Struct)
		if err := stream.RecvMsg(raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		msg, err := eventFromStruct(raw)
		if err != nil {
			return err
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}

// Health reports the serving status of service ("" for the whole server).
func (c *Client) Health(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}
