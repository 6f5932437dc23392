// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/samber/oops"
)

// tokenSeparator splits the encoded payload from its signature.
const tokenSeparator = "."

// TokenPayload is the claim set embedded in a token.
// Roles are a snapshot taken when the token was issued.
type TokenPayload struct {
	UserID    string   `json:"userId"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
	IssuedAt  int64    `json:"iat"`
	ExpiresAt int64    `json:"exp"`
}

// ExpiredAt reports whether the token is no longer valid at t.
// A token is valid strictly before its expiry second.
func (p *TokenPayload) ExpiredAt(t time.Time) bool {
	return p.ExpiresAt <= t.Unix()
}

// ExpiresTime returns the expiry as a time.Time.
func (p *TokenPayload) ExpiresTime() time.Time {
	return time.Unix(p.ExpiresAt, 0)
}

// TokenCodec encodes and authenticates tokens with an HMAC-SHA256 key.
type TokenCodec struct {
	secret []byte
}

// NewTokenCodec creates a TokenCodec. The secret must not be empty.
func NewTokenCodec(secret []byte) (*TokenCodec, error) {
	if len(secret) == 0 {
		return nil, oops.Code(CodeInvalidConfig).Errorf("token secret cannot be empty")
	}
	return &TokenCodec{secret: slices.Clone(secret)}, nil
}

// Encode serializes and signs a payload.
func (c *TokenCodec) Encode(p TokenPayload) (string, error) {
	if p.Roles == nil {
		p.Roles = []string{}
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", oops.Code(CodeInternal).With("operation", "marshal token payload").Wrap(err)
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	return encoded + tokenSeparator + c.Sign(encoded), nil
}

// Sign returns the hex HMAC-SHA256 of an encoded payload.
func (c *TokenCodec) Sign(encodedPayload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(encodedPayload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Decode authenticates a token and returns its payload.
// The signature is checked before any part of the payload is decoded.
// Expiry is not checked here; see TokenPayload.ExpiredAt.
func (c *TokenCodec) Decode(token string) (*TokenPayload, error) {
	parts := strings.Split(token, tokenSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, oops.Code(CodeTokenInvalid).Errorf("malformed token")
	}

	expected := c.Sign(parts[0])
	if subtle.ConstantTimeCompare([]byte(expected), []byte(parts[1])) != 1 {
		return nil, oops.Code(CodeTokenInvalid).Errorf("token signature mismatch")
	}

	raw, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, oops.Code(CodeTokenInvalid).With("operation", "decode token payload").Wrap(err)
	}

	var p TokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, oops.Code(CodeTokenInvalid).With("operation", "unmarshal token payload").Wrap(err)
	}
	return &p, nil
}

// DecodeUnverified returns the payload of a token without checking its
// signature. It is meant for diagnostics only.
func DecodeUnverified(token string) (*TokenPayload, error) {
	encoded, _, found := strings.Cut(token, tokenSeparator)
	if !found {
		return nil, oops.Code(CodeTokenInvalid).Errorf("malformed token")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, oops.Code(CodeTokenInvalid).Wrap(err)
	}
	var p TokenPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, oops.Code(CodeTokenInvalid).Wrap(err)
	}
	return &p, nil
}
