// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 DomainHive Contributors

// Package validate checks request payloads against JSON Schemas reflected
// from the request types.
package validate

import (
	"bytes"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"github.com/samber/oops"
)

// Schema names.
const (
	SchemaRegister       = "register"
	SchemaLogin          = "login"
	SchemaUpdateUser     = "update_user"
	SchemaChangePassword = "change_password"
)

// CodeUnknownSchema is returned for names that have no registered schema.
const CodeUnknownSchema = "VALIDATE_UNKNOWN_SCHEMA"

const schemaBaseID = "https://domainhive.dev/schemas/"

// FieldError describes one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Rule    string `json:"rule"`
}

// Result is the outcome of a validation.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}

// Validator compiles schemas on first use and caches them.
type Validator struct {
	types map[string]any

	mu       sync.Mutex
	compiled map[string]*jschema.Schema
}

// New creates a Validator with the built-in request schemas.
func New() *Validator {
	return &Validator{
		types: map[string]any{
			SchemaRegister:       &RegisterRequest{},
			SchemaLogin:          &LoginRequest{},
			SchemaUpdateUser:     &UpdateUserRequest{},
			SchemaChangePassword: &ChangePasswordRequest{},
		},
		compiled: make(map[string]*jschema.Schema),
	}
}

// Names returns the available schema names in sorted order.
func (v *Validator) Names() []string {
	names := make([]string, 0, len(v.types))
	for name := range v.types {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Schema returns the JSON Schema document for name.
func (v *Validator) Schema(name string) ([]byte, error) {
	t, ok := v.types[name]
	if !ok {
		return nil, oops.Code(CodeUnknownSchema).With("schema", name).Errorf("unknown schema %q", name)
	}

	r := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := r.Reflect(t)
	schema.ID = jsonschema.ID(schemaBaseID + name + ".schema.json")

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.With("schema", name).Wrap(err)
	}
	return data, nil
}

func (v *Validator) compiledSchema(name string) (*jschema.Schema, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if sch, ok := v.compiled[name]; ok {
		return sch, nil
	}

	raw, err := v.Schema(name)
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, oops.With("schema", name).Wrap(err)
	}

	c := jschema.NewCompiler()
	c.AssertFormat()
	url := name + ".schema.json"
	if err := c.AddResource(url, doc); err != nil {
		return nil, oops.With("schema", name).Wrap(err)
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, oops.With("schema", name).Wrap(err)
	}

	v.compiled[name] = sch
	return sch, nil
}

// Validate checks data against the named schema. data may be raw JSON
// bytes or any value that marshals to JSON. The returned error is only set
// when validation could not run at all.
func (v *Validator) Validate(name string, data any) (*Result, error) {
	sch, err := v.compiledSchema(name)
	if err != nil {
		return nil, err
	}

	raw, ok := data.([]byte)
	if !ok {
		if raw, err = json.Marshal(data); err != nil {
			return nil, oops.With("schema", name).Wrap(err)
		}
	}
	instance, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return &Result{Errors: []FieldError{{Message: "malformed JSON", Rule: "json"}}}, nil
	}

	err = sch.Validate(instance)
	if err == nil {
		return &Result{Valid: true}, nil
	}

	var verr *jschema.ValidationError
	if !errors.As(err, &verr) {
		return nil, oops.With("schema", name).Wrap(err)
	}
	return &Result{Errors: fieldErrors(verr)}, nil
}

// fieldErrors flattens a validation error into one entry per failed rule.
func fieldErrors(verr *jschema.ValidationError) []FieldError {
	out := verr.BasicOutput()
	units := out.Errors
	if len(units) == 0 {
		units = []jschema.OutputUnit{*out}
	}

	var errs []FieldError
	for _, unit := range units {
		if unit.Error == nil {
			continue
		}
		path := unit.Error.Kind.KeywordPath()
		if len(path) == 0 {
			continue
		}
		rule := path[len(path)-1]
		field := strings.ReplaceAll(strings.TrimPrefix(unit.InstanceLocation, "/"), "/", ".")
		if req, ok := unit.Error.Kind.(*kind.Required); ok {
			for _, missing := range req.Missing {
				name := missing
				if field != "" {
					name = field + "." + missing
				}
				errs = append(errs, FieldError{Field: name, Message: name + " is required", Rule: rule})
			}
			continue
		}
		if extra, ok := unit.Error.Kind.(*kind.AdditionalProperties); ok {
			for _, prop := range extra.Properties {
				errs = append(errs, FieldError{Field: prop, Message: prop + " is not allowed", Rule: rule})
			}
			continue
		}
		errs = append(errs, FieldError{Field: field, Message: unit.Error.String(), Rule: rule})
	}

	slices.SortStableFunc(errs, func(a, b FieldError) int { return strings.Compare(a.Field, b.Field) })
	return errs
}
