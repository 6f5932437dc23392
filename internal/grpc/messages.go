// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package grpc

import (
	"time"

	"github.com/samber/oops"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/domainhive/domainhive/internal/auth"
)

// Keys of the structured messages exchanged by the auth service.
const (
	keyUsername  = "username"
	keyPassword  = "password"
	keyToken     = "token"
	keyExpiresAt = "expires_at"
	keyUser      = "user"
	keyValid     = "valid"
	keyID        = "id"
	keyEmail     = "email"
	keyRoles     = "roles"
	keyMetadata  = "metadata"
	keyCreatedAt = "created_at"
	keyUpdatedAt = "updated_at"
	keyType      = "type"
	keyUserID    = "user_id"
	keyAt        = "at"
)

// LoginResponse carries an issued token.
type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      *auth.User `json:"user"`
}

// VerifyResponse reports whether a token is valid and for whom.
type VerifyResponse struct {
	Valid bool       `json:"valid"`
	User  *auth.User `json:"user,omitempty"`
}

// EventMessage is one streamed user lifecycle event.
type EventMessage struct {
	Type   string    `json:"type"`
	UserID string    `json:"user_id,omitempty"`
	At     time.Time `json:"at"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s *structpb.Struct, key string) (time.Time, error) {
	raw := stringField(s, key)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, oops.With("field", key).Wrap(err)
	}
	return t, nil
}

func stringField(s *structpb.Struct, key string) string {
	return s.GetFields()[key].GetStringValue()
}

func userMap(u *auth.User) map[string]any {
	roles := make([]any, len(u.Roles))
	for i, r := range u.Roles {
		roles[i] = r
	}
	metadata := u.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		keyID:        u.ID,
		keyUsername:  u.Username,
		keyEmail:     u.Email,
		keyRoles:     roles,
		keyMetadata:  metadata,
		keyCreatedAt: formatTime(u.CreatedAt),
		keyUpdatedAt: formatTime(u.UpdatedAt),
	}
}

func newStruct(fields map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, oops.Code(auth.CodeInternal).With("operation", "encode message").Wrap(err)
	}
	return s, nil
}

func userToStruct(u *auth.User) (*structpb.Struct, error) {
	return newStruct(userMap(u))
}

func userFromStruct(s *structpb.Struct) (*auth.User, error) {
	if s == nil {
		return nil, nil
	}
	fields := s.GetFields()
	user := &auth.User{
		ID:       stringField(s, keyID),
		Username: stringField(s, keyUsername),
		Email:    stringField(s, keyEmail),
		Metadata: fields[keyMetadata].GetStructValue().AsMap(),
	}
	for _, v := range fields[keyRoles].GetListValue().GetValues() {
		user.Roles = append(user.Roles, v.GetStringValue())
	}

	var err error
	if user.CreatedAt, err = parseTime(s, keyCreatedAt); err != nil {
		return nil, err
	}
	if user.UpdatedAt, err = parseTime(s, keyUpdatedAt); err != nil {
		return nil, err
	}
	return user, nil
}

func loginRequest(username, password string) (*structpb.Struct, error) {
	return newStruct(map[string]any{keyUsername: username, keyPassword: password})
}

func loginResponseToStruct(res *auth.LoginResult) (*structpb.Struct, error) {
	return newStruct(map[string]any{
		keyToken:     res.Token,
		keyExpiresAt: formatTime(res.ExpiresAt),
		keyUser:      userMap(res.User),
	})
}

func loginResponseFromStruct(s *structpb.Struct) (*LoginResponse, error) {
	user, err := userFromStruct(s.GetFields()[keyUser].GetStructValue())
	if err != nil {
		return nil, err
	}
	expiresAt, err := parseTime(s, keyExpiresAt)
	if err != nil {
		return nil, err
	}
	return &LoginResponse{Token: stringField(s, keyToken), ExpiresAt: expiresAt, User: user}, nil
}

func verifyResponseToStruct(user *auth.User) (*structpb.Struct, error) {
	fields := map[string]any{keyValid: user != nil}
	if user != nil {
		fields[keyUser] = userMap(user)
	}
	return newStruct(fields)
}

func verifyResponseFromStruct(s *structpb.Struct) (*VerifyResponse, error) {
	fields := s.GetFields()
	resp := &VerifyResponse{Valid: fields[keyValid].GetBoolValue()}
	if v, ok := fields[keyUser]; ok {
		user, err := userFromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		resp.User = user
	}
	return resp, nil
}

func eventToStruct(ev auth.Event) (*structpb.Struct, error) {
	fields := map[string]any{keyType: string(ev.Type), keyAt: formatTime(ev.At)}
	if ev.UserID != "" {
		fields[keyUserID] = ev.UserID
	}
	return newStruct(fields)
}

func eventFromStruct(s *structpb.Struct) (EventMessage, error) {
	at, err := parseTime(s, keyAt)
	if err != nil {
		return EventMessage{}, err
	}
	return EventMessage{Type: stringField(s, keyType), UserID: stringField(s, keyUserID), At: at}, nil
}
