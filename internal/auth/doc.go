// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

// Package auth provides the DomainHive authentication module.
//
// # Domain Types
//
// A User is created through Module.Register, which validates the username and
// email, hashes the password and stores both through the configured Store.
// Passwords never leave the module; only the Store sees the encoded hash.
//
// # Tokens
//
// Tokens are self-describing bearer credentials:
//
//	base64(json(payload)) + "." + hex(HMAC-SHA256(secret, base64(json(payload))))
//
// Validity is decided from the signature and the embedded expiry. The module
// additionally tracks issued tokens and, unless Config.RevokeOnLogout is
// false, refuses tokens that were explicitly logged out.
//
// # Services
//
//   - Module - registration, login, verification, logout, user management
//   - TokenCodec - token encoding and signature checks
//   - Broadcaster - event fan-out to subscribers
//
// Module is safe for concurrent use.
package auth
