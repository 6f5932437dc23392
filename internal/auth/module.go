// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"

	"github.com/domainhive/domainhive/pkg/errutil"
)

// Token lifetime defaults.
const (
	DefaultTokenExpiration        = time.Hour
	DefaultRefreshTokenExpiration = 7 * 24 * time.Hour
)

// Config configures a Module.
type Config struct {
	// SecretKey signs every token. Required.
	SecretKey string

	// TokenExpiration is the lifetime of issued tokens. Zero means DefaultTokenExpiration.
	TokenExpiration time.Duration

	// RefreshTokenExpiration is reserved for refresh tokens and currently unused.
	// Zero means DefaultRefreshTokenExpiration.
	RefreshTokenExpiration time.Duration

	// DisableRevocation turns Logout into bookkeeping only: logged-out tokens
	// keep verifying until they expire.
	DisableRevocation bool

	// LockoutThreshold is the number of consecutive failed logins after which a
	// username is locked. Zero disables lockout.
	LockoutThreshold int

	// LockoutDuration is how long a locked username stays locked.
	// Zero means DefaultLockoutDuration.
	LockoutDuration time.Duration
}

func (c Config) withDefaults() Config {
	if c.TokenExpiration == 0 {
		c.TokenExpiration = DefaultTokenExpiration
	}
	if c.RefreshTokenExpiration == 0 {
		c.RefreshTokenExpiration = DefaultRefreshTokenExpiration
	}
	if c.LockoutDuration == 0 {
		c.LockoutDuration = DefaultLockoutDuration
	}
	return c
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.SecretKey == "" {
		return oops.Code(CodeInvalidConfig).Errorf("secret key is required")
	}
	if c.TokenExpiration < time.Second {
		return oops.Code(CodeInvalidConfig).
			With("token_expiration", c.TokenExpiration.String()).
			Errorf("token expiration must be at least one second")
	}
	if c.RefreshTokenExpiration < 0 {
		return oops.Code(CodeInvalidConfig).
			With("refresh_token_expiration", c.RefreshTokenExpiration.String()).
			Errorf("refresh token expiration cannot be negative")
	}
	if c.LockoutThreshold < 0 || c.LockoutDuration < 0 {
		return oops.Code(CodeInvalidConfig).
			With("lockout_threshold", c.LockoutThreshold).
			With("lockout_duration", c.LockoutDuration.String()).
			Errorf("lockout settings cannot be negative")
	}
	return nil
}

// Option customizes a Module.
type Option func(*Module)

// WithStore replaces the default in-memory store.
func WithStore(store Store) Option {
	return func(m *Module) { m.store = store }
}

// WithHasher replaces the default argon2id hasher.
func WithHasher(hasher PasswordHasher) Option {
	return func(m *Module) { m.hasher = hasher }
}

// WithLogger sets the module logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) { m.logger = logger }
}

// WithClock overrides the time source used for issuing and checking tokens.
func WithClock(now func() time.Time) Option {
	return func(m *Module) { m.now = now }
}

// WithIDGenerator overrides user ID generation.
func WithIDGenerator(newID func() string) Option {
	return func(m *Module) { m.newID = newID }
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	User      *User
	Token     string
	ExpiresAt time.Time
}

// Module owns users, credentials and issued tokens.
type Module struct {
	cfg     Config
	store   Store
	hasher  PasswordHasher
	codec   *TokenCodec
	events  *Broadcaster
	limiter *LoginLimiter
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string

	// mu serializes multi-step mutations and guards the token maps.
	mu      sync.RWMutex
	tokens  map[string]TokenPayload
	revoked map[string]int64
}

// NewModule creates a Module.
func NewModule(cfg Config, opts ...Option) (*Module, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codec, err := NewTokenCodec([]byte(cfg.SecretKey))
	if err != nil {
		return nil, err
	}

	m := &Module{
		cfg:     cfg,
		codec:   codec,
		tokens:  make(map[string]TokenPayload),
		revoked: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.hasher == nil {
		m.hasher = NewArgon2idHasher()
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.newID == nil {
		m.newID = func() string { return ulid.Make().String() }
	}
	m.events = NewBroadcaster(m.logger)
	m.limiter = NewLoginLimiter(cfg.LockoutThreshold, cfg.LockoutDuration, m.now)

	return m, nil
}

// Config returns the effective configuration.
func (m *Module) Config() Config {
	return m.cfg
}

// Subscribe returns a channel receiving user lifecycle events.
func (m *Module) Subscribe() <-chan Event {
	return m.events.Subscribe()
}

// Unsubscribe stops and closes a channel returned by Subscribe.
func (m *Module) Unsubscribe(ch <-chan Event) {
	m.events.Unsubscribe(ch)
}

// Close releases every event subscription.
func (m *Module) Close() {
	m.events.Close()
}

// Register creates a user. Roles default to DefaultRole.
func (m *Module) Register(ctx context.Context, username, email, password string, roles ...string) (*User, error) {
	return traced(ctx, "auth.register", func(ctx context.Context) (*User, error) {
		return m.register(ctx, username, email, password, roles)
	}, attribute.String("auth.username", username))
}

func (m *Module) register(ctx context.Context, username, email, password string, roles []string) (*User, error) {
	if err := validateIdentity(username, email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, oops.Code(CodeInvalidInput).With("field", "password").Errorf("password cannot be empty")
	}
	if len(roles) == 0 {
		roles = []string{DefaultRole}
	}

	// Hashing is slow; keep it outside the lock.
	hash, err := m.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code(CodeInternal).With("operation", "hash password").Wrap(err)
	}

	now := m.now()
	user := &User{
		ID:        m.newID(),
		Username:  username,
		Email:     email,
		Roles:     slices.Clone(roles),
		Metadata:  map[string]any{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	err = m.createLocked(ctx, user, hash)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	m.events.Publish(Event{Type: EventUserRegistered, User: user.Clone(), UserID: user.ID, At: now})
	return user, nil
}

func (m *Module) createLocked(ctx context.Context, user *User, hash string) error {
	if err := m.ensureUnique(ctx, "", user.Username, user.Email); err != nil {
		return err
	}
	if err := m.store.Create(ctx, user, hash); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return duplicateUserError(user.Username, user.Email)
		}
		return oops.Code(CodeInternal).With("operation", "create user").Wrap(err)
	}
	return nil
}

// ensureUnique fails if another user than selfID owns username or email.
func (m *Module) ensureUnique(ctx context.Context, selfID, username, email string) error {
	if existing, err := m.store.GetByUsername(ctx, username); err == nil {
		if existing.ID != selfID {
			return duplicateUserError(username, email)
		}
	} else if !errors.Is(err, ErrNotFound) {
		return oops.Code(CodeInternal).With("operation", "get user by username").Wrap(err)
	}

	if existing, err := m.store.GetByEmail(ctx, email); err == nil {
		if existing.ID != selfID {
			return duplicateUserError(username, email)
		}
	} else if !errors.Is(err, ErrNotFound) {
		return oops.Code(CodeInternal).With("operation", "get user by email").Wrap(err)
	}
	return nil
}

func duplicateUserError(username, email string) error {
	return oops.Code(CodeDuplicateUser).
		With("username", username).
		With("email", email).
		Errorf("user already exists")
}

// Login checks a username and password and issues a token.
// Unknown usernames and wrong passwords fail with the same error.
func (m *Module) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	return traced(ctx, "auth.login", func(ctx context.Context) (*LoginResult, error) {
		return m.login(ctx, username, password)
	}, attribute.String("auth.username", username))
}

func (m *Module) login(ctx context.Context, username, password string) (*LoginResult, error) {
	if state := m.limiter.Check(username); state.IsLockedOut {
		return nil, lockedOutError(username, state)
	}

	m.mu.RLock()
	user, hash, lookupErr := m.credentialsLocked(ctx, username)
	m.mu.RUnlock()
	if lookupErr != nil && !errors.Is(lookupErr, ErrNotFound) {
		return nil, oops.Code(CodeInternal).With("operation", "get credentials").Wrap(lookupErr)
	}

	exists := lookupErr == nil
	target := dummyPasswordHash
	if exists {
		target = hash
	}

	// Unknown users are verified against a dummy hash.
	valid, verifyErr := m.hasher.Verify(password, target)
	if verifyErr != nil && exists {
		return nil, oops.Code(CodeInternal).
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(verifyErr)
	}
	if !exists || !valid {
		m.logger.DebugContext(ctx, "login rejected", "username", username)
		state := m.limiter.RecordFailure(username)
		retryAfter := state.Delay
		if state.IsLockedOut {
			m.logger.WarnContext(ctx, "username locked out", "username", username, "failures", state.Failures)
			retryAfter = state.LockoutRemaining
		}
		failure := oops.Code(CodeInvalidCredentials)
		if retryAfter > 0 {
			failure = failure.With("retry_after", retryAfter.String())
		}
		return nil, failure.Errorf(invalidCredentialsMessage)
	}
	m.limiter.Reset(username)

	if m.hasher.NeedsUpgrade(hash) {
		m.upgradeHash(ctx, user.ID, password)
	}

	now := m.now()
	payload := TokenPayload{
		UserID:    user.ID,
		Username:  user.Username,
		Roles:     slices.Clone(user.Roles),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(m.cfg.TokenExpiration).Unix(),
	}
	token, err := m.codec.Encode(payload)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.pruneExpiredLocked(now)
	m.tokens[token] = payload
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "user logged in", "user_id", user.ID)
	m.events.Publish(Event{Type: EventUserLoggedIn, User: user.Clone(), UserID: user.ID, At: now})

	return &LoginResult{User: user, Token: token, ExpiresAt: payload.ExpiresTime()}, nil
}

func lockedOutError(username string, state RateLimitResult) error {
	return oops.Code(CodeLockedOut).
		With("username", username).
		With("retry_after", state.LockoutRemaining.String()).
		Errorf("too many failed login attempts")
}

func (m *Module) credentialsLocked(ctx context.Context, username string) (*User, string, error) {
	user, err := m.store.GetByUsername(ctx, username)
	if err != nil {
		return nil, "", err
	}
	hash, err := m.store.PasswordHash(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, hash, nil
}

// upgradeHash re-hashes a password stored with a legacy algorithm.
// Failure is logged; the login still succeeds.
func (m *Module) upgradeHash(ctx context.Context, userID, password string) {
	newHash, err := m.hasher.Hash(password)
	if err == nil {
		err = m.store.SetPasswordHash(ctx, userID, newHash)
	}
	if err != nil {
		errutil.LogErrorContext(ctx, m.logger.With("user_id", userID), slog.LevelWarn, "password hash upgrade failed", err)
		return
	}
	m.logger.InfoContext(ctx, "password hash upgraded", "user_id", userID)
}

// VerifyToken authenticates a token and returns its payload.
// Expired tokens are dropped from the tracking map.
func (m *Module) VerifyToken(token string) (*TokenPayload, error) {
	payload, err := m.codec.Decode(token)
	if err != nil {
		return nil, err
	}

	now := m.now()
	if payload.ExpiredAt(now) {
		m.mu.Lock()
		delete(m.tokens, token)
		delete(m.revoked, token)
		m.mu.Unlock()
		return nil, oops.Code(CodeTokenExpired).
			With("user_id", payload.UserID).
			With("expired_at", payload.ExpiresTime()).
			Errorf("token has expired")
	}

	m.mu.RLock()
	_, revoked := m.revoked[token]
	m.mu.RUnlock()
	if revoked {
		return nil, oops.Code(CodeTokenRevoked).With("user_id", payload.UserID).Errorf("token has been revoked")
	}

	return payload, nil
}

// VerifyAuth returns the user a token was issued to.
// Invalid, expired or revoked tokens and deleted users all yield (nil, nil);
// an error is returned only when the store fails.
func (m *Module) VerifyAuth(ctx context.Context, token string) (*User, error) {
	payload, err := m.VerifyToken(token)
	if err != nil {
		m.logger.DebugContext(ctx, "token rejected", "code", ErrorCode(err))
		return nil, nil
	}
	return m.GetUser(ctx, payload.UserID)
}

// Logout forgets a token. Unless revocation is disabled the token stops
// verifying immediately. Logging out an unknown token is not an error.
func (m *Module) Logout(ctx context.Context, token string) error {
	payload, decodeErr := m.codec.Decode(token)
	now := m.now()

	m.mu.Lock()
	delete(m.tokens, token)
	if !m.cfg.DisableRevocation && decodeErr == nil && !payload.ExpiredAt(now) {
		m.revoked[token] = payload.ExpiresAt
	}
	m.pruneRevokedLocked(now)
	m.mu.Unlock()

	var userID string
	if decodeErr == nil {
		userID = payload.UserID
	}
	m.logger.InfoContext(ctx, "user logged out", "user_id", userID)
	m.events.Publish(Event{Type: EventUserLoggedOut, UserID: userID, At: now})
	return nil
}

func (m *Module) pruneRevokedLocked(now time.Time) {
	for token, exp := range m.revoked {
		if exp <= now.Unix() {
			delete(m.revoked, token)
		}
	}
}

// pruneExpiredLocked forgets tracked tokens that have expired.
func (m *Module) pruneExpiredLocked(now time.Time) {
	for token, payload := range m.tokens {
		if payload.ExpiredAt(now) {
			delete(m.tokens, token)
		}
	}
}

// ActiveTokens returns the number of tracked tokens that are neither logged
// out nor expired.
func (m *Module) ActiveTokens() int {
	now := m.now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, payload := range m.tokens {
		if !payload.ExpiredAt(now) {
			n++
		}
	}
	return n
}

// GetUser returns a user by ID, or (nil, nil) if it does not exist.
func (m *Module) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, err := m.store.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code(CodeInternal).With("operation", "get user").With("user_id", id).Wrap(err)
	}
	return user, nil
}

// GetUserByUsername returns a user by username, or (nil, nil) if it does not exist.
func (m *Module) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, err := m.store.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.Code(CodeInternal).With("operation", "get user by username").With("username", username).Wrap(err)
	}
	return user, nil
}

// UpdateUser merges update over an existing user. The ID is never changed.
func (m *Module) UpdateUser(ctx context.Context, id string, update UserUpdate) (*User, error) {
	m.mu.Lock()
	updated, err := m.updateLocked(ctx, id, update)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "user updated", "user_id", id)
	m.events.Publish(Event{Type: EventUserUpdated, User: updated.Clone(), UserID: id, At: updated.UpdatedAt})
	return updated, nil
}

func (m *Module) updateLocked(ctx context.Context, id string, update UserUpdate) (*User, error) {
	current, err := m.store.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.Code(CodeUserNotFound).With("user_id", id).Errorf("user not found")
	}
	if err != nil {
		return nil, oops.Code(CodeInternal).With("operation", "get user").With("user_id", id).Wrap(err)
	}

	merged := update.apply(current)
	merged.ID = id
	if err := validateIdentity(merged.Username, merged.Email); err != nil {
		return nil, err
	}
	if merged.Username != current.Username || merged.Email != current.Email {
		if err := m.ensureUnique(ctx, id, merged.Username, merged.Email); err != nil {
			return nil, err
		}
	}
	merged.UpdatedAt = m.now()

	if err := m.store.Update(ctx, merged); err != nil {
		switch {
		case errors.Is(err, ErrDuplicate):
			return nil, duplicateUserError(merged.Username, merged.Email)
		case errors.Is(err, ErrNotFound):
			return nil, oops.Code(CodeUserNotFound).With("user_id", id).Errorf("user not found")
		}
		return nil, oops.Code(CodeInternal).With("operation", "update user").With("user_id", id).Wrap(err)
	}
	return merged, nil
}

// DeleteUser removes a user and its credential. Deleting a missing user is a no-op.
// Tokens already issued to the user remain valid until expiry, but VerifyAuth
// no longer resolves them.
func (m *Module) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	err := m.store.Delete(ctx, id)
	m.mu.Unlock()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return oops.Code(CodeInternal).With("operation", "delete user").With("user_id", id).Wrap(err)
	}

	m.logger.InfoContext(ctx, "user deleted", "user_id", id)
	m.events.Publish(Event{Type: EventUserDeleted, UserID: id, At: m.now()})
	return nil
}

// ChangePassword replaces a user's password after checking the current one.
func (m *Module) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if newPassword == "" {
		return oops.Code(CodeInvalidInput).With("field", "new_password").Errorf("new password cannot be empty")
	}

	m.mu.RLock()
	hash, err := m.store.PasswordHash(ctx, id)
	m.mu.RUnlock()
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodeUserNotFound).With("user_id", id).Errorf("user not found")
	}
	if err != nil {
		return oops.Code(CodeInternal).With("operation", "get password hash").With("user_id", id).Wrap(err)
	}

	valid, err := m.hasher.Verify(oldPassword, hash)
	if err != nil {
		return oops.Code(CodeInternal).With("operation", "verify password").With("user_id", id).Wrap(err)
	}
	if !valid {
		return oops.Code(CodeInvalidCredentials).Errorf(invalidCredentialsMessage)
	}

	newHash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code(CodeInternal).With("operation", "hash password").Wrap(err)
	}

	m.mu.Lock()
	err = m.store.SetPasswordHash(ctx, id, newHash)
	m.mu.Unlock()
	if errors.Is(err, ErrNotFound) {
		return oops.Code(CodeUserNotFound).With("user_id", id).Errorf("user not found")
	}
	if err != nil {
		return oops.Code(CodeInternal).With("operation", "set password hash").With("user_id", id).Wrap(err)
	}

	m.logger.InfoContext(ctx, "password changed", "user_id", id)
	return nil
}

// HasRole reports whether role is one of the user's roles.
func (m *Module) HasRole(u *User, role string) bool { return HasRole(u, role) }

// HasAnyRole reports whether the user has at least one of roles.
func (m *Module) HasAnyRole(u *User, roles ...string) bool { return HasAnyRole(u, roles...) }

// HasAllRoles reports whether the user has every one of roles.
func (m *Module) HasAllRoles(u *User, roles ...string) bool { return HasAllRoles(u, roles...) }
