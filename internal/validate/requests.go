// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package validate

// RegisterRequest is the payload of a registration.
type RegisterRequest struct {
	Username string   `json:"username" yaml:"username" jsonschema:"required,minLength=3,maxLength=32,pattern=^[A-Za-z0-9_.-]+$"`
	Email    string   `json:"email" yaml:"email" jsonschema:"required,format=email,maxLength=254"`
	Password string   `json:"password" yaml:"password" jsonschema:"required,minLength=6,maxLength=128"`
	Roles    []string `json:"roles,omitempty" yaml:"roles,omitempty" jsonschema:"uniqueItems=true"`
}

// LoginRequest is the payload of a login.
type LoginRequest struct {
	Username string `json:"username" jsonschema:"required,minLength=1"`
	Password string `json:"password" jsonschema:"required,minLength=1"`
}

// UpdateUserRequest is the payload of a partial user update.
// Absent fields are left unchanged.
type UpdateUserRequest struct {
	Username *string        `json:"username,omitempty" jsonschema:"minLength=3,maxLength=32,pattern=^[A-Za-z0-9_.-]+$"`
	Email    *string        `json:"email,omitempty" jsonschema:"format=email,maxLength=254"`
	Roles    *[]string      `json:"roles,omitempty" jsonschema:"uniqueItems=true"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ChangePasswordRequest is the payload of a password change.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" jsonschema:"required,minLength=1"`
	NewPassword string `json:"new_password" jsonschema:"required,minLength=6,maxLength=128"`
}
