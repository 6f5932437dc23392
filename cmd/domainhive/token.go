// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

package main

import (
	"encoding/json"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/domainhive/domainhive/internal/auth"
	"github.com/domainhive/domainhive/internal/config"
)

// tokenReport is what token inspect prints.
type tokenReport struct {
	*auth.TokenPayload
	IssuedAtTime  time.Time `json:"issued_at"`
	ExpiresAtTime time.Time `json:"expires_at"`
	Expired       bool      `json:"expired"`
	Signature     string    `json:"signature"`
}

// Signature states.
const (
	signatureUnchecked = "unchecked"
	signatureValid     = "valid"
)

// NewTokenCmd creates the token command group.
func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect auth tokens",
	}

	var verify bool
	inspect := &cobra.Command{
		Use:   "inspect TOKEN",
		Short: "Decode a token and show its claims",
		Long: `Decode a token and print its claims as JSON. With --verify the
signature is checked against the configured secret key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := inspectToken(args[0], verify, time.Now())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return oops.Wrap(err)
			}
			cmd.Println(string(out))
			return nil
		},
	}
	inspect.Flags().BoolVar(&verify, "verify", false, "check the signature with the configured secret key")
	cmd.AddCommand(inspect)

	return cmd
}

func inspectToken(token string, verify bool, now time.Time) (*tokenReport, error) {
	var (
		payload   *auth.TokenPayload
		signature = signatureUnchecked
		err       error
	)
	if verify {
		cfg, loadErr := config.Load(configFile, nil)
		if loadErr != nil {
			return nil, loadErr
		}
		codec, codecErr := auth.NewTokenCodec([]byte(cfg.Auth.SecretKey))
		if codecErr != nil {
			return nil, codecErr
		}
		payload, err = codec.Decode(token)
		signature = signatureValid
	} else {
		payload, err = auth.DecodeUnverified(token)
	}
	if err != nil {
		return nil, err
	}

	return &tokenReport{
		TokenPayload:  payload,
		IssuedAtTime:  time.Unix(payload.IssuedAt, 0).UTC(),
		ExpiresAtTime: payload.ExpiresTime().UTC(),
		Expired:       payload.ExpiredAt(now),
		Signature:     signature,
	}, nil
}
