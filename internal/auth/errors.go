// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package auth

import (
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/domainhive/domainhive/pkg/errutil"
)

// ErrNotFound is returned by a Store when a requested user does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by a Store when a username or email is already taken.
var ErrDuplicate = errors.New("duplicate")

// Error codes attached to errors returned by Module.
const (
	CodeDuplicateUser      = "AUTH_DUPLICATE_USER"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeUserNotFound       = "AUTH_USER_NOT_FOUND"
	CodeInvalidInput       = "AUTH_INVALID_INPUT"
	CodeInvalidConfig      = "AUTH_INVALID_CONFIG"
	CodeTokenInvalid       = "AUTH_TOKEN_INVALID"
	CodeTokenExpired       = "AUTH_TOKEN_EXPIRED"
	CodeTokenRevoked       = "AUTH_TOKEN_REVOKED"
	CodeForbidden          = "AUTH_FORBIDDEN"
	CodeLockedOut          = "AUTH_LOCKED_OUT"
	CodeInternal           = "AUTH_INTERNAL"
)

// invalidCredentialsMessage is shared by every login failure so callers
// cannot tell an unknown username from a wrong password.
const invalidCredentialsMessage = "invalid username or password"

// ErrorCode returns the oops code attached to err, or "" if there is none.
func ErrorCode(err error) string {
	return errutil.Code(err)
}

// IsDuplicateUser reports whether err signals a username or email collision.
func IsDuplicateUser(err error) bool {
	return ErrorCode(err) == CodeDuplicateUser
}

// IsInvalidCredentials reports whether err is a failed login.
func IsInvalidCredentials(err error) bool {
	return ErrorCode(err) == CodeInvalidCredentials
}

// IsUserNotFound reports whether err references a missing user.
func IsUserNotFound(err error) bool {
	return ErrorCode(err) == CodeUserNotFound
}

// IsInvalidInput reports whether err was caused by rejected arguments.
func IsInvalidInput(err error) bool {
	return ErrorCode(err) == CodeInvalidInput
}

// IsTokenInvalid reports whether err is any token verification failure,
// including expiry and revocation.
func IsTokenInvalid(err error) bool {
	switch ErrorCode(err) {
	case CodeTokenInvalid, CodeTokenExpired, CodeTokenRevoked:
		return true
	}
	return false
}

// IsLockedOut reports whether err is a login rejected by throttling.
func IsLockedOut(err error) bool {
	return ErrorCode(err) == CodeLockedOut
}

// RetryAfter returns how long a client should wait before retrying the login
// that produced err, or zero when err carries no such hint.
func RetryAfter(err error) time.Duration {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return 0
	}
	raw, _ := oopsErr.Context()["retry_after"].(string)
	d, parseErr := time.ParseDuration(raw)
	if parseErr != nil || d <= 0 {
		return 0
	}
	return d
}
