// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/domainhive/domainhive/internal/auth"
	"github.com/domainhive/domainhive/internal/validate"
)

// NewSchemaCmd creates the schema command group.
func NewSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect the request payload schemas",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List schema names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range validate.New().Names() {
				cmd.Println(name)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Print a JSON Schema document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := validate.New().Schema(args[0])
			if err != nil {
				return err
			}
			cmd.Println(string(doc))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "check NAME FILE",
		Short: "Validate a JSON payload file against a schema",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filepath.Clean(args[1]))
			if err != nil {
				return oops.With("path", args[1]).Wrap(err)
			}
			res, err := validate.New().Validate(args[0], data)
			if err != nil {
				return err
			}
			if res.Valid {
				cmd.Println("valid")
				return nil
			}
			for _, fe := range res.Errors {
				cmd.Printf("%s: %s (%s)\n", fe.Field, fe.Message, fe.Rule)
			}
			return oops.Code(auth.CodeInvalidInput).
				With("schema", args[0]).
				Errorf("%d validation errors", len(res.Errors))
		},
	})

	return cmd
}
