package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/units"
)

// FieldKind is the serialized type of an entry field
type FieldKind string

const (
	FieldString   FieldKind = "string"
	FieldInt      FieldKind = "int"
	FieldFloat    FieldKind = "float"
	FieldQuantity FieldKind = "quantity" // bare magnitude in Field.Unit
	FieldFloats   FieldKind = "floats"
)

// Field binds a serialized key to a struct field of E. Quantities are
// written as bare magnitudes in the field's canonical unit.
type Field[E any] struct {
	Name     string
	Kind     FieldKind
	Unit     units.Unit
	Optional bool

	get func(e *E) (any, bool)
	set func(e *E, v any) error
}

// Fields is an ordered field registry for one entry type
type Fields[E any] []Field[E]

// Keys returns the serialized keys in registry order
func (fs Fields[E]) Keys() []string {
	keys := make([]string, len(fs))
	for i, f := range fs {
		keys[i] = f.Name
	}
	return keys
}

// ToMap serializes e. Absent optional fields have no key.
func (fs Fields[E]) ToMap(e *E) map[string]any {
	m := make(map[string]any, len(fs))
	for _, f := range fs {
		if v, ok := f.get(e); ok {
			m[f.Name] = v
		}
	}
	return m
}

// Fill sets fields of e from a map produced by ToMap or decoded from JSON.
// Unknown keys are ignored; missing required keys are an error.
func (fs Fields[E]) Fill(e *E, m map[string]any) error {
	for _, f := range fs {
		v, ok := m[f.Name]
		if !ok || v == nil {
			if f.Optional {
				continue
			}
			return fmt.Errorf("%w: missing field %q", errors.ErrInvalidInput, f.Name)
		}
		if err := f.set(e, v); err != nil {
			return fmt.Errorf("%w: field %q: %v", errors.ErrInvalidInput, f.Name, err)
		}
	}
	return nil
}

// StringField registers a required string
func StringField[E any](name string, ref func(*E) *string) Field[E] {
	return Field[E]{
		Name: name,
		Kind: FieldString,
		get:  func(e *E) (any, bool) { return *ref(e), true },
		set: func(e *E, v any) error {
			s, err := asString(v)
			*ref(e) = s
			return err
		},
	}
}

// OptStringField registers an optional string
func OptStringField[E any](name string, ref func(*E) **string) Field[E] {
	return Field[E]{
		Name:     name,
		Kind:     FieldString,
		Optional: true,
		get: func(e *E) (any, bool) {
			p := *ref(e)
			if p == nil {
				return nil, false
			}
			return *p, true
		},
		set: func(e *E, v any) error {
			s, err := asString(v)
			*ref(e) = &s
			return err
		},
	}
}

// IntField registers a required integer
func IntField[E any](name string, ref func(*E) *int) Field[E] {
	return Field[E]{
		Name: name,
		Kind: FieldInt,
		get:  func(e *E) (any, bool) { return *ref(e), true },
		set: func(e *E, v any) error {
			n, err := asInt(v)
			*ref(e) = n
			return err
		},
	}
}

// OptIntField registers an optional integer
func OptIntField[E any](name string, ref func(*E) **int) Field[E] {
	return Field[E]{
		Name:     name,
		Kind:     FieldInt,
		Optional: true,
		get: func(e *E) (any, bool) {
			p := *ref(e)
			if p == nil {
				return nil, false
			}
			return *p, true
		},
		set: func(e *E, v any) error {
			n, err := asInt(v)
			*ref(e) = &n
			return err
		},
	}
}

// FloatField registers a required dimensionless number
func FloatField[E any](name string, ref func(*E) *float64) Field[E] {
	return Field[E]{
		Name: name,
		Kind: FieldFloat,
		get:  func(e *E) (any, bool) { return *ref(e), true },
		set: func(e *E, v any) error {
			f, err := asFloat(v)
			*ref(e) = f
			return err
		},
	}
}

// OptFloatField registers an optional dimensionless number
func OptFloatField[E any](name string, ref func(*E) **float64) Field[E] {
	return Field[E]{
		Name:     name,
		Kind:     FieldFloat,
		Optional: true,
		get: func(e *E) (any, bool) {
			p := *ref(e)
			if p == nil {
				return nil, false
			}
			return *p, true
		},
		set: func(e *E, v any) error {
			f, err := asFloat(v)
			*ref(e) = &f
			return err
		},
	}
}

// QuantityField registers a required unit-bearing value stored in unit
func QuantityField[E any](name string, unit units.Unit, ref func(*E) *units.Quantity) Field[E] {
	return Field[E]{
		Name: name,
		Kind: FieldQuantity,
		Unit: unit,
		get:  func(e *E) (any, bool) { return magnitude(*ref(e), unit), true },
		set: func(e *E, v any) error {
			f, err := asFloat(v)
			*ref(e) = units.New(f, unit)
			return err
		},
	}
}

// OptQuantityField registers an optional unit-bearing value stored in unit
func OptQuantityField[E any](name string, unit units.Unit, ref func(*E) **units.Quantity) Field[E] {
	return Field[E]{
		Name:     name,
		Kind:     FieldQuantity,
		Unit:     unit,
		Optional: true,
		get: func(e *E) (any, bool) {
			p := *ref(e)
			if p == nil {
				return nil, false
			}
			return magnitude(*p, unit), true
		},
		set: func(e *E, v any) error {
			f, err := asFloat(v)
			*ref(e) = units.Ptr(f, unit)
			return err
		},
	}
}

// FloatsField registers an optional list of numbers
func FloatsField[E any](name string, ref func(*E) *[]float64) Field[E] {
	return Field[E]{
		Name:     name,
		Kind:     FieldFloats,
		Optional: true,
		get: func(e *E) (any, bool) {
			s := *ref(e)
			if len(s) == 0 {
				return nil, false
			}
			return append([]float64(nil), s...), true
		},
		set: func(e *E, v any) error {
			var out []float64
			switch s := v.(type) {
			case []float64:
				out = append(out, s...)
			case []any:
				for _, item := range s {
					f, err := asFloat(item)
					if err != nil {
						return err
					}
					out = append(out, f)
				}
			default:
				return fmt.Errorf("expected list, got %T", v)
			}
			*ref(e) = out
			return nil
		},
	}
}

func magnitude(q units.Quantity, unit units.Unit) float64 {
	v, err := q.In(unit)
	if err != nil {
		return q.Value
	}
	return v
}

func asString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	case float64, int, int64, json.Number:
		return fmt.Sprint(s), nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func asInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("expected integer, got %v", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func asFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(n, 64)
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
