// Package schema implements the structural contracts that gate tool input
// and output. A Contract is an ordered set of named, typed fields; values
// are checked against it field by field with no implicit coercion.
// Contracts are closed: undeclared keys are rejected unless a specific
// object field is marked Open.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the type tag of a contract field.
type Kind string

const (
	KindString  Kind = "string"
	KindInteger Kind = "integer"
	KindNumber  Kind = "number"
	KindBoolean Kind = "boolean"
	KindObject  Kind = "object"
	KindArray   Kind = "array"
)

// IsValid reports whether the kind is a known type tag.
func (k Kind) IsValid() bool {
	switch k {
	case KindString, KindInteger, KindNumber, KindBoolean, KindObject, KindArray:
		return true
	default:
		return false
	}
}

var (
	ErrInvalidContract = errors.New("invalid contract definition")
)

// Field declares one named slot of a contract.
type Field struct {
	Name        string
	Type        Kind
	Required    bool
	Description string

	// Fields declares the nested contract of an Object field.
	Fields []Field

	// Open marks an Object field as accepting undeclared keys. The top-level
	// contract is always closed; openness is opt-in per field so wire
	// contracts stay stable.
	Open bool

	// Elem declares the element type of an Array field. Elem.Name is unused.
	Elem *Field
}

// Contract is an immutable ordered set of fields. Construct with New; the
// zero value is an empty contract that accepts only `{}`.
type Contract struct {
	fields []Field
}

// New builds a Contract from the given fields, in order. It fails if a
// field name repeats, a kind is unknown, an Object field nests an invalid
// contract, or an Array field lacks an element type.
func New(fields ...Field) (*Contract, error) {
	if err := checkFields(fields, ""); err != nil {
		return nil, err
	}
	c := &Contract{fields: make([]Field, len(fields))}
	copy(c.fields, fields)
	return c, nil
}

// MustNew is New for statically known contracts; it panics on error.
// Intended for package-level tool definitions.
func MustNew(fields ...Field) *Contract {
	c, err := New(fields...)
	if err != nil {
		panic(err)
	}
	return c
}

func checkFields(fields []Field, path string) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		at := joinPath(path, f.Name)
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("%w: empty field name at %q", ErrInvalidContract, path)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("%w: duplicate field %q", ErrInvalidContract, at)
		}
		seen[f.Name] = struct{}{}

		if !f.Type.IsValid() {
			return fmt.Errorf("%w: unknown type %q for field %q", ErrInvalidContract, f.Type, at)
		}
		if f.Type == KindObject {
			if err := checkFields(f.Fields, at); err != nil {
				return err
			}
		}
		if f.Type == KindArray {
			if f.Elem == nil {
				return fmt.Errorf("%w: array field %q has no element type", ErrInvalidContract, at)
			}
			elem := *f.Elem
			elem.Name = "[]"
			if err := checkFields([]Field{elem}, at); err != nil {
				return err
			}
		}
	}
	return nil
}

// Fields returns a copy of the declared fields in declaration order.
func (c *Contract) Fields() []Field {
	if c == nil {
		return nil
	}
	out := make([]Field, len(c.fields))
	copy(out, c.fields)
	return out
}

// JSON returns the serialized form of the contract: a JSON-Schema style
// object tree. It is a pure function of the contract, so repeated calls
// (and repeated marshals, since encoding/json orders map keys) produce
// identical bytes.
func (c *Contract) JSON() map[string]any {
	if c == nil {
		return map[string]any{"type": "object", "additionalProperties": false, "properties": map[string]any{}}
	}
	return fieldsJSON(c.fields, false)
}

func fieldsJSON(fields []Field, open bool) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldJSON(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{
		"type":                 "object",
		"additionalProperties": open,
		"properties":           props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func fieldJSON(f Field) map[string]any {
	var out map[string]any
	switch f.Type {
	case KindObject:
		out = fieldsJSON(f.Fields, f.Open)
	case KindArray:
		out = map[string]any{"type": "array", "items": fieldJSON(*f.Elem)}
	default:
		out = map[string]any{"type": string(f.Type)}
	}
	if f.Description != "" {
		out["description"] = f.Description
	}
	return out
}

func joinPath(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
