// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/domainhive/domainhive/internal/config"
	"github.com/domainhive/domainhive/internal/store"
)

// migrator is the part of store.Migrator the migrate commands drive.
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Force(version int) error
	Pending() ([]uint, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	m, err := store.NewMigrator(databaseURL)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the user database schema",
		Long: `Apply, roll back or inspect the embedded PostgreSQL migrations.
The database URL comes from --database-url, DATABASE_URL or the config file.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, _ []string, m migrator) error {
			cmd.Println("Running migrations...")
			if err := m.Up(); err != nil {
				return err
			}
			cmd.Println("Migrations completed successfully")
			return nil
		}),
	})

	var confirm bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops all users)",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, _ []string, m migrator) error {
			if !confirm {
				return oops.Code(config.CodeInvalid).Errorf("refusing to drop all users without --yes")
			}
			if err := m.Down(); err != nil {
				return err
			}
			cmd.Println("All migrations rolled back")
			return nil
		}),
	}
	down.Flags().BoolVar(&confirm, "yes", false, "confirm dropping all data")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, _ []string, m migrator) error {
			version, dirty, err := m.Version()
			if err != nil {
				return err
			}
			name, err := store.MigrationName(version)
			if err != nil {
				return err
			}
			if name == "" {
				name = "none"
			}
			cmd.Printf("Version: %d (%s)\n", version, name)
			if dirty {
				cmd.Println("Database is dirty: fix the failed migration, then run 'migrate force'")
			}

			pending, err := m.Pending()
			if err != nil {
				return err
			}
			cmd.Printf("Pending: %d\n", len(pending))
			for _, v := range pending {
				pendingName, err := store.MigrationName(v)
				if err != nil {
					return err
				}
				cmd.Printf("  %s\n", pendingName)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, args []string, m migrator) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_VERSION").With("version", args[0]).Wrap(err)
			}
			if err := m.Force(version); err != nil {
				return err
			}
			cmd.Printf("Forced version %d\n", version)
			return nil
		}),
	})

	return cmd
}

// withMigrator resolves the database URL, opens a migrator for the
// duration of fn and closes it afterwards.
func withMigrator(fn func(*cobra.Command, []string, migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		databaseURL, err := resolveDatabaseURL(cmd)
		if err != nil {
			return err
		}
		m, err := newMigrator(databaseURL)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return fn(cmd, args, m)
	}
}

// resolveDatabaseURL reads the database URL through the config layers.
func resolveDatabaseURL(cmd *cobra.Command) (string, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return "", err
	}
	if cfg.Database.URL == "" {
		return "", oops.Code(config.CodeInvalid).Errorf("database URL is required (--database-url or %s)", config.EnvDatabaseURL)
	}
	return cfg.Database.URL, nil
}

// migrateUp applies pending migrations to databaseURL.
func migrateUp(databaseURL string) (err error) {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return m.Up()
}
