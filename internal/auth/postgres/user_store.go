// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

// Package postgres implements auth.Store on PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"

	"github.com/domainhive/domainhive/internal/auth"
)

// PgxPool is the subset of *pgxpool.Pool used by UserStore.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `id, username, email, roles, metadata, created_at, updated_at`

// UserStore implements auth.Store using PostgreSQL.
type UserStore struct {
	pool PgxPool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool PgxPool) *UserStore {
	return &UserStore{pool: pool}
}

// Create stores a new user with its password hash.
func (s *UserStore) Create(ctx context.Context, user *auth.User, passwordHash string) error {
	metadata, err := marshalMetadata(user.Metadata)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, roles, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		user.ID,
		user.Username,
		user.Email,
		passwordHash,
		rolesOrEmpty(user.Roles),
		metadata,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.With("username", user.Username).With("email", user.Email).Wrap(auth.ErrDuplicate)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("username", user.Username).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(ctx context.Context, id string) (*auth.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return s.getOne(row, "id", id)
}

// GetByUsername retrieves a user by exact username.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*auth.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return s.getOne(row, "username", username)
}

// GetByEmail retrieves a user by exact email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return s.getOne(row, "email", email)
}

func (s *UserStore) getOne(row pgx.Row, key, value string) (*auth.User, error) {
	user, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.With(key, value).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").
			With("operation", "get user by "+key).
			With(key, value).
			Wrap(err)
	}
	return user, nil
}

// List returns every user ordered by creation time.
func (s *UserStore) List(ctx context.Context) ([]*auth.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "list users").Wrap(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_LIST_FAILED").With("operation", "scan user row").Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_LIST_FAILED").With("operation", "iterate users").Wrap(err)
	}
	return users, nil
}

// Update replaces every field of an existing user except its ID.
func (s *UserStore) Update(ctx context.Context, user *auth.User) error {
	metadata, err := marshalMetadata(user.Metadata)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET
			username = $2,
			email = $3,
			roles = $4,
			metadata = $5,
			updated_at = $6
		WHERE id = $1
	`,
		user.ID,
		user.Username,
		user.Email,
		rolesOrEmpty(user.Roles),
		metadata,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return oops.With("id", user.ID).With("username", user.Username).Wrap(auth.ErrDuplicate)
	}
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "update user").
			With("id", user.ID).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("id", user.ID).Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete removes a user. Deleting a missing user is not an error.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id); err != nil {
		return oops.Code("USER_DELETE_FAILED").
			With("operation", "delete user").
			With("id", id).
			Wrap(err)
	}
	return nil
}

// PasswordHash returns the stored password hash for a user.
func (s *UserStore) PasswordHash(ctx context.Context, id string) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", oops.With("id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return "", oops.Code("USER_GET_FAILED").
			With("operation", "get password hash").
			With("id", id).
			Wrap(err)
	}
	return hash, nil
}

// SetPasswordHash replaces the stored password hash for a user.
func (s *UserStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, hash, time.Now().UTC())
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").
			With("operation", "set password hash").
			With("id", id).
			Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanUser scans one row in userColumns order.
// pgx.ErrNoRows is returned unwrapped for callers to translate.
func scanUser(row pgx.Row) (*auth.User, error) {
	var (
		user     auth.User
		metadata []byte
	)
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Roles,
		&metadata,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with lookup context
	}

	user.Metadata = map[string]any{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &user.Metadata); err != nil {
			return nil, oops.Code("USER_SCAN_FAILED").With("operation", "unmarshal metadata").Wrap(err)
		}
	}
	if user.Roles == nil {
		user.Roles = []string{}
	}
	return &user, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return nil, oops.Code("USER_METADATA_INVALID").With("operation", "marshal metadata").Wrap(err)
	}
	return raw, nil
}

func rolesOrEmpty(roles []string) []string {
	if roles == nil {
		return []string{}
	}
	return roles
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

var _ auth.Store = (*UserStore)(nil)
