// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/domainhive/domainhive/internal/auth"
	"github.com/domainhive/domainhive/internal/auth/postgres"
	"github.com/domainhive/domainhive/internal/store"
	"github.com/domainhive/domainhive/internal/validate"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// Seed error codes.
const (
	codeSeedRead    = "SEED_READ_FAILED"
	codeSeedInvalid = "SEED_INVALID"
	codeSeedFailed  = "SEED_FAILED"
)

// seedFile is the YAML layout accepted by the seed command.
type seedFile struct {
	Users []validate.RegisterRequest `yaml:"users"`
}

// defaultSeedUsers are created when no seed file is given.
var defaultSeedUsers = []validate.RegisterRequest{
	{Username: "admin", Email: "admin@example.com", Password: "admin123", Roles: []string{"admin", "user"}},
	{Username: "user", Email: "user@example.com", Password: "user123", Roles: []string{"user"}},
}

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	timeout time.Duration
	dryRun  bool
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed [FILE]",
		Short: "Create initial users",
		Long: `Creates the users listed under "users:" in a YAML file, or a default
admin and user account when no file is given. Every entry is checked
against the registration schema first. Existing users are skipped, so the
command can be run repeatedly.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	cmd.Flags().BoolVar(&cfg.dryRun, "dry-run", false, "validate the seed data without writing anything")
	cmd.Flags().String("database-url", "", "PostgreSQL URL")

	return cmd
}

func runSeed(cmd *cobra.Command, args []string, cfg *seedConfig) error {
	users := defaultSeedUsers
	if len(args) == 1 {
		loaded, err := loadSeedUsers(args[0])
		if err != nil {
			return err
		}
		users = loaded
	}

	if err := validateSeedUsers(validate.New(), users); err != nil {
		return err
	}
	if cfg.dryRun {
		cmd.Printf("%d users valid\n", len(users))
		return nil
	}

	databaseURL, err := resolveDatabaseURL(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.timeout)
	defer cancel()

	cmd.Println("Running migrations...")
	if err := migrateUp(databaseURL); err != nil {
		return err
	}

	cmd.Println("Connecting to database...")
	pool, err := store.Connect(ctx, databaseURL, store.ConnectOptions{})
	if err != nil {
		return err
	}
	defer pool.Close()

	module, err := newSeedModule(auth.WithStore(postgres.NewUserStore(pool)))
	if err != nil {
		return err
	}
	defer module.Close()

	created, skipped, err := seedUsers(ctx, module, users, cmd)
	if err != nil {
		return err
	}
	cmd.Printf("Seeding complete: %d created, %d skipped\n", created, skipped)
	return nil
}

// newSeedModule builds a module for writing users. Seeding never issues
// tokens, so the module gets a throwaway signing key.
func newSeedModule(opts ...auth.Option) (*auth.Module, error) {
	return auth.NewModule(auth.Config{SecretKey: rand.Text()}, opts...)
}

// loadSeedUsers reads a seed file.
func loadSeedUsers(path string) ([]validate.RegisterRequest, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, oops.Code(codeSeedRead).With("path", path).Wrap(err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Code(codeSeedRead).With("path", path).Wrap(err)
	}
	if len(f.Users) == 0 {
		return nil, oops.Code(codeSeedInvalid).With("path", path).Errorf("seed file lists no users")
	}
	return f.Users, nil
}

// validateSeedUsers checks every entry against the registration schema and
// reports all problems at once.
func validateSeedUsers(v *validate.Validator, users []validate.RegisterRequest) error {
	var errs []error
	seen := make(map[string]int, len(users))
	for i, u := range users {
		res, err := v.Validate(validate.SchemaRegister, u)
		if err != nil {
			return err
		}
		for _, fe := range res.Errors {
			errs = append(errs, oops.Code(codeSeedInvalid).
				With("index", i).
				With("field", fe.Field).
				Errorf("users[%d]: %s", i, fe.Message))
		}
		key := strings.ToLower(u.Username)
		if first, dup := seen[key]; dup {
			errs = append(errs, oops.Code(codeSeedInvalid).
				With("index", i).
				Errorf("users[%d]: username %q repeats users[%d]", i, u.Username, first))
			continue
		}
		seen[key] = i
	}
	return errors.Join(errs...)
}

// seedUsers registers users through module, skipping ones that already exist.
func seedUsers(ctx context.Context, module *auth.Module, users []validate.RegisterRequest, cmd *cobra.Command) (created, skipped int, err error) {
	for _, u := range users {
		user, regErr := module.Register(ctx, u.Username, u.Email, u.Password, u.Roles...)
		switch {
		case auth.IsDuplicateUser(regErr):
			cmd.Printf("User %s already exists, skipping\n", u.Username)
			slog.Info("seed user exists", "username", u.Username)
			skipped++
		case regErr != nil:
			return created, skipped, oops.Code(codeSeedFailed).With("username", u.Username).Wrap(regErr)
		default:
			cmd.Printf("Created user %s (%s)\n", user.Username, strings.Join(user.Roles, ", "))
			slog.Info("seed user created", "username", user.Username, "user_id", user.ID)
			created++
		}
	}
	return created, skipped, nil
}
