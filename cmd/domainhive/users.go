// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/domainhive/domainhive/internal/auth"
	"github.com/domainhive/domainhive/internal/auth/postgres"
	"github.com/domainhive/domainhive/internal/store"
)

// userLister is the part of postgres.UserStore the users command reads.
type userLister interface {
	List(ctx context.Context) ([]*auth.User, error)
}

// NewUsersCmd creates the users subcommand.
func NewUsersCmd() *cobra.Command {
	var (
		jsonOutput bool
		role       string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "users",
		Short: "List users stored in the database",
		Long: `Print every user in the database, oldest first. Use --role to show only
users holding a role and --json for machine-readable output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			databaseURL, err := resolveDatabaseURL(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			pool, err := store.Connect(ctx, databaseURL, store.ConnectOptions{})
			if err != nil {
				return err
			}
			defer pool.Close()

			users, err := listUsers(ctx, postgres.NewUserStore(pool), role)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeUsersJSON(cmd.OutOrStdout(), users)
			}
			return writeUsersTable(cmd.OutOrStdout(), users)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().StringVar(&role, "role", "", "only list users holding this role")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultSeedTimeout, "timeout for database operations")
	cmd.Flags().String("database-url", "", "PostgreSQL URL")

	return cmd
}

// listUsers returns the users of l, keeping only holders of role when it is set.
func listUsers(ctx context.Context, l userLister, role string) ([]*auth.User, error) {
	users, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	if role == "" {
		return users, nil
	}
	filtered := users[:0]
	for _, u := range users {
		if auth.HasRole(u, role) {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}

func writeUsersJSON(w io.Writer, users []*auth.User) error {
	if users == nil {
		users = []*auth.User{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(users); err != nil {
		return oops.With("operation", "encode users").Wrap(err)
	}
	return nil
}

func writeUsersTable(w io.Writer, users []*auth.User) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tUSERNAME\tEMAIL\tROLES\tCREATED")
	for _, u := range users {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			u.ID, u.Username, u.Email, strings.Join(u.Roles, ","), u.CreatedAt.UTC().Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return oops.With("operation", "write users").Wrap(err)
	}
	return nil
}
