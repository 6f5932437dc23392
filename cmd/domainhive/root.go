// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the DomainHive CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "domainhive",
		Short: "DomainHive - authentication for modular services",
		Long: `DomainHive runs the auth module of a hive: user registration,
password login, signed tokens and role checks over HTTP and gRPC.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/domainhive/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewTokenCmd())
	cmd.AddCommand(NewCertsCmd())
	cmd.AddCommand(NewUsersCmd())

	return cmd
}
