// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package validate

import (
	"encoding/json"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rules(res *Result) map[string]string {
	out := make(map[string]string, len(res.Errors))
	for _, e := range res.Errors {
		out[e.Field] = e.Rule
	}
	return out
}

func TestValidator_Names(t *testing.T) {
	assert.Equal(t, []string{SchemaChangePassword, SchemaLogin, SchemaRegister, SchemaUpdateUser}, New().Names())
}

func TestValidator_Schema(t *testing.T) {
	v := New()

	raw, err := v.Schema(SchemaRegister)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "object", doc["type"])
	assert.ElementsMatch(t, []any{"username", "email", "password"}, doc["required"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	email, ok := props["email"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "email", email["format"])
}

func TestValidator_SchemaUnknown(t *testing.T) {
	_, err := New().Schema("nope")
	require.Error(t, err)

	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok)
	assert.Equal(t, CodeUnknownSchema, oopsErr.Code())

	_, err = New().Validate("nope", map[string]any{})
	require.Error(t, err)
}

func TestValidator_Register(t *testing.T) {
	v := New()

	tests := []struct {
		name      string
		input     any
		wantValid bool
		wantRules map[string]string
	}{
		{
			name:      "valid struct",
			input:     RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "secret1"},
			wantValid: true,
		},
		{
			name:      "valid with roles",
			input:     []byte(`{"username":"bob","email":"bob@example.com","password":"hunter22","roles":["admin","user"]}`),
			wantValid: true,
		},
		{
			name:      "missing fields",
			input:     map[string]any{"username": "alice"},
			wantRules: map[string]string{"email": "required", "password": "required"},
		},
		{
			name:      "short username",
			input:     RegisterRequest{Username: "al", Email: "al@example.com", Password: "secret1"},
			wantRules: map[string]string{"username": "minLength"},
		},
		{
			name:      "username pattern",
			input:     RegisterRequest{Username: "al ice", Email: "al@example.com", Password: "secret1"},
			wantRules: map[string]string{"username": "pattern"},
		},
		{
			name:      "bad email",
			input:     RegisterRequest{Username: "alice", Email: "not-an-email", Password: "secret1"},
			wantRules: map[string]string{"email": "format"},
		},
		{
			name:      "short password",
			input:     RegisterRequest{Username: "alice", Email: "alice@example.com", Password: "abc"},
			wantRules: map[string]string{"password": "minLength"},
		},
		{
			name:      "unknown field",
			input:     []byte(`{"username":"alice","email":"alice@example.com","password":"secret1","admin":true}`),
			wantRules: map[string]string{"admin": "additionalProperties"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := v.Validate(SchemaRegister, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, res.Valid)
			if tt.wantValid {
				assert.Empty(t, res.Errors)
				return
			}
			got := rules(res)
			for field, rule := range tt.wantRules {
				assert.Equal(t, rule, got[field], "field %s", field)
			}
			for _, e := range res.Errors {
				assert.NotEmpty(t, e.Message)
			}
		})
	}
}

func TestValidator_Login(t *testing.T) {
	v := New()

	res, err := v.Validate(SchemaLogin, LoginRequest{Username: "alice", Password: "x"})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = v.Validate(SchemaLogin, []byte(`{"username":"alice"}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "required", rules(res)["password"])
}

func TestValidator_UpdateUser(t *testing.T) {
	v := New()

	res, err := v.Validate(SchemaUpdateUser, []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, res.Valid)

	email := "new@example.com"
	res, err = v.Validate(SchemaUpdateUser, UpdateUserRequest{Email: &email, Metadata: map[string]any{"theme": "dark"}})
	require.NoError(t, err)
	assert.True(t, res.Valid)

	res, err = v.Validate(SchemaUpdateUser, []byte(`{"email":"nope"}`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "format", rules(res)["email"])
}

func TestValidator_MalformedJSON(t *testing.T) {
	res, err := New().Validate(SchemaLogin, []byte(`{"username":`))
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "json", res.Errors[0].Rule)
}

func TestValidator_CachesCompiledSchema(t *testing.T) {
	v := New()

	first, err := v.compiledSchema(SchemaLogin)
	require.NoError(t, err)
	second, err := v.compiledSchema(SchemaLogin)
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestValidator_ChangePassword(t *testing.T) {
	res, err := New().Validate(SchemaChangePassword, ChangePasswordRequest{OldPassword: "old", NewPassword: "abc"})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, "minLength", rules(res)["new_password"])
}
