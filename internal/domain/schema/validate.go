package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrViolation is the sentinel wrapped by every *ViolationError.
var ErrViolation = errors.New("contract violation")

// Violation describes one structural mismatch between a value and a contract.
type Violation struct {
	FieldPath string `json:"field_path"`
	Expected  string `json:"expected_type"`
	Problem   string `json:"problem"`
}

// ViolationError enumerates every violation found during a validation pass.
// Validation is total: a value either validates fully or this error lists
// all the reasons it does not.
type ViolationError struct {
	Violations []Violation
}

func (e *ViolationError) Error() string {
	if len(e.Violations) == 0 {
		return "contract violation"
	}
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: %s", v.FieldPath, v.Problem)
	}
	return "contract violation: " + strings.Join(parts, "; ")
}

func (e *ViolationError) Unwrap() error { return ErrViolation }

// Validate checks raw against the contract and returns the typed value: a
// deep copy of raw containing exactly the declared fields. It never
// partially succeeds — on any mismatch the returned value is nil and the
// error is a *ViolationError.
func Validate(raw map[string]any, c *Contract) (map[string]any, error) {
	if raw == nil {
		raw = map[string]any{}
	}
	var violations []Violation
	typed := validateObject(raw, c.Fields(), false, "", &violations)
	if len(violations) > 0 {
		return nil, &ViolationError{Violations: violations}
	}
	return typed, nil
}

func validateObject(raw map[string]any, fields []Field, open bool, path string, violations *[]Violation) map[string]any {
	typed := make(map[string]any, len(raw))

	declared := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		declared[f.Name] = struct{}{}
		at := joinPath(path, f.Name)
		value, present := raw[f.Name]
		if !present {
			if f.Required {
				*violations = append(*violations, Violation{
					FieldPath: at,
					Expected:  string(f.Type),
					Problem:   "required field is missing",
				})
			}
			continue
		}
		typed[f.Name] = validateValue(value, f, at, violations)
	}

	if !open {
		for key := range raw {
			if _, ok := declared[key]; !ok {
				*violations = append(*violations, Violation{
					FieldPath: joinPath(path, key),
					Expected:  "",
					Problem:   "unknown field",
				})
			}
		}
	} else {
		// Open objects carry undeclared keys through, copied so the typed
		// value never aliases the caller's input.
		for key, value := range raw {
			if _, ok := declared[key]; !ok {
				typed[key] = copyValue(value)
			}
		}
	}

	return typed
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}

func validateValue(value any, f Field, path string, violations *[]Violation) any {
	mismatch := func(problem string) any {
		*violations = append(*violations, Violation{
			FieldPath: path,
			Expected:  string(f.Type),
			Problem:   problem,
		})
		return nil
	}

	switch f.Type {
	case KindString:
		s, ok := value.(string)
		if !ok {
			return mismatch(fmt.Sprintf("expected string, got %s", typeName(value)))
		}
		return s

	case KindBoolean:
		b, ok := value.(bool)
		if !ok {
			return mismatch(fmt.Sprintf("expected boolean, got %s", typeName(value)))
		}
		return b

	case KindInteger:
		n, ok := asInteger(value)
		if !ok {
			return mismatch(fmt.Sprintf("expected integer, got %s", typeName(value)))
		}
		return n

	case KindNumber:
		n, ok := asNumber(value)
		if !ok {
			return mismatch(fmt.Sprintf("expected number, got %s", typeName(value)))
		}
		return n

	case KindObject:
		m, ok := value.(map[string]any)
		if !ok {
			return mismatch(fmt.Sprintf("expected object, got %s", typeName(value)))
		}
		return validateObject(m, f.Fields, f.Open, path, violations)

	case KindArray:
		arr, ok := value.([]any)
		if !ok {
			return mismatch(fmt.Sprintf("expected array, got %s", typeName(value)))
		}
		elem := *f.Elem
		typed := make([]any, len(arr))
		for i, item := range arr {
			typed[i] = validateValue(item, elem, fmt.Sprintf("%s[%d]", path, i), violations)
		}
		return typed
	}

	return mismatch(fmt.Sprintf("unknown contract type %q", f.Type))
}

// asInteger accepts the integer representations JSON decoding and in-process
// callers produce. Strings are never coerced: "1" is not an integer.
func asInteger(value any) (int64, bool) {
	switch n := value.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}

func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, int, int64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return fmt.Sprintf("%T", value)
	}
}
