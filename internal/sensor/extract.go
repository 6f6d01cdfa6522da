package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoPayload means the job never produced a payload. Callers treat it as
// "not yet available".
var ErrNoPayload = errors.New("no payload")

// FieldPath addresses a value inside a JSON payload. Elements are object keys
// or array indexes.
type FieldPath []string

func (p FieldPath) String() string { return strings.Join(p, ".") }

func (p FieldPath) query() string {
	parts := make([]string, len(p))
	for i, k := range p {
		parts[i] = gjson.Escape(k)
	}
	return strings.Join(parts, ".")
}

// MissingFieldError is a payload that lacks an expected field.
type MissingFieldError struct {
	Path FieldPath
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("field %q not present in payload", e.Path.String())
}

// Extract walks path through payload and returns the leaf.
func Extract(payload json.RawMessage, path FieldPath) (gjson.Result, error) {
	if len(payload) == 0 {
		return gjson.Result{}, ErrNoPayload
	}
	if len(path) == 0 {
		return gjson.ParseBytes(payload), nil
	}
	r := gjson.GetBytes(payload, path.query())
	if !r.Exists() {
		return r, &MissingFieldError{Path: path}
	}
	return r, nil
}

// Number extracts a numeric leaf. Null counts as missing; numeric strings are
// accepted.
func Number(payload json.RawMessage, path FieldPath) (float64, error) {
	r, err := Extract(payload, path)
	if err != nil {
		return 0, err
	}
	switch r.Type {
	case gjson.Number:
		return r.Num, nil
	case gjson.Null:
		return 0, &MissingFieldError{Path: path}
	case gjson.String:
		f, err := strconv.ParseFloat(r.Str, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q: %w", path.String(), err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("field %q is %s, not a number", path.String(), r.Type)
	}
}
