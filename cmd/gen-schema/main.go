// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

// Command gen-schema writes the request payload JSON Schemas to schemas/.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/domainhive/domainhive/internal/validate"
)

func main() {
	written, err := generate(validate.New(), "schemas")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating schemas: %v\n", err)
		os.Exit(1)
	}
	for _, path := range written {
		fmt.Printf("Generated %s\n", path)
	}
}

// generate writes one <name>.schema.json per registered schema into dir.
func generate(v *validate.Validator, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	var written []string
	for _, name := range v.Names() {
		doc, err := v.Schema(name)
		if err != nil {
			return written, err
		}
		path := filepath.Join(dir, name+".schema.json")
		if err := os.WriteFile(path, doc, 0o600); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}
