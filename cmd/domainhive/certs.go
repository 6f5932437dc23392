// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/domainhive/domainhive/internal/tls"
	"github.com/domainhive/domainhive/internal/xdg"
)

// Default certificate names.
const (
	defaultServerCertName = "grpc"
	defaultClientCertName = "client"
)

// NewCertsCmd creates the certs command group.
func NewCertsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Manage the mutual TLS certificates of the gRPC listener",
	}
	cmd.PersistentFlags().String("dir", "", "certificates directory (default: XDG_CONFIG_HOME/domainhive/certs)")

	var (
		hiveID string
		hosts  []string
		force  bool
	)
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Create a CA plus a server and a client certificate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir := certsDir(cmd)
			if !force {
				if _, err := os.Stat(filepath.Join(dir, tls.CACertFile)); err == nil {
					return oops.Code(tls.CodeGenerateFailed).With("dir", dir).Errorf("CA already exists, pass --force to replace it")
				}
			}
			if hiveID == "" {
				hiveID = ulid.Make().String()
			}
			if err := generateCerts(dir, hiveID, hosts); err != nil {
				return err
			}
			cmd.Printf("Generated certificates for hive %s in %s\n", hiveID, dir)
			return nil
		},
	}
	generate.Flags().StringVar(&hiveID, "hive-id", "", "hive identifier embedded in the CA (default: new ULID)")
	generate.Flags().StringSliceVar(&hosts, "host", nil, "extra server certificate host names or IPs (localhost is always included)")
	generate.Flags().BoolVar(&force, "force", false, "replace an existing CA")
	cmd.AddCommand(generate)

	issue := &cobra.Command{
		Use:   "issue NAME",
		Short: "Sign another client certificate with the existing CA",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := certsDir(cmd)
			ca, err := tls.LoadCA(dir)
			if err != nil {
				return err
			}
			cert, err := tls.GenerateCert(ca, args[0])
			if err != nil {
				return err
			}
			if err := tls.SaveCertificates(dir, ca, cert); err != nil {
				return err
			}
			cmd.Printf("Issued %s for hive %s\n", args[0], ca.HiveID())
			return nil
		},
	}
	cmd.AddCommand(issue)

	return cmd
}

func certsDir(cmd *cobra.Command) string {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return dir
	}
	return xdg.CertsDir()
}

// generateCerts writes a fresh CA, the gRPC server certificate and a
// client certificate into dir.
func generateCerts(dir, hiveID string, hosts []string) error {
	if err := xdg.EnsureDir(dir); err != nil {
		return err
	}
	ca, err := tls.GenerateCA(hiveID)
	if err != nil {
		return err
	}
	server, err := tls.GenerateCert(ca, defaultServerCertName, hosts...)
	if err != nil {
		return err
	}
	client, err := tls.GenerateCert(ca, defaultClientCertName)
	if err != nil {
		return err
	}
	return tls.SaveCertificates(dir, ca, server, client)
}
