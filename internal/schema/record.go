package schema

import (
	"fmt"

	"github.com/ppiankov/astrolabium/internal/units"
)

// Value is one decoded column
type Value struct {
	Kind  Kind
	Text  string
	Int   int64
	Float float64
	Items []float64
	Unit  units.Unit
}

// Number returns the numeric value of Int and Float columns
func (v Value) Number() float64 {
	if v.Kind == Int {
		return float64(v.Int)
	}
	return v.Float
}

// Quantity returns the value tagged with its column unit
func (v Value) Quantity() units.Quantity {
	return units.New(v.Number(), v.Unit)
}

// Record maps column names to decoded values. Absent nullable columns have
// no key.
type Record map[string]Value

// Has reports whether a column was present on the line
func (r Record) Has(name string) bool {
	_, ok := r[name]
	return ok
}

// String returns the trimmed text of a column, or "" when absent
func (r Record) String(name string) string {
	return r[name].Text
}

// Int returns an integer column
func (r Record) Int(name string) (int64, bool) {
	v, ok := r[name]
	if !ok {
		return 0, false
	}
	return v.Int, true
}

// Float returns a numeric column as a bare magnitude
func (r Record) Float(name string) (float64, bool) {
	v, ok := r[name]
	if !ok {
		return 0, false
	}
	return v.Number(), true
}

// Quantity returns a numeric column tagged with its unit
func (r Record) Quantity(name string) (units.Quantity, bool) {
	v, ok := r[name]
	if !ok {
		return units.Quantity{}, false
	}
	return v.Quantity(), true
}

// QuantityPtr is Quantity for optional entry fields
func (r Record) QuantityPtr(name string) *units.Quantity {
	q, ok := r.Quantity(name)
	if !ok {
		return nil
	}
	return &q
}

// FloatPtr is Float for optional entry fields
func (r Record) FloatPtr(name string) *float64 {
	f, ok := r.Float(name)
	if !ok {
		return nil
	}
	return &f
}

// StringPtr returns nil for absent columns
func (r Record) StringPtr(name string) *string {
	v, ok := r[name]
	if !ok {
		return nil
	}
	s := v.Text
	return &s
}

// Items returns the items of a compound column
func (r Record) Items(name string) []float64 {
	return r[name].Items
}

// Item returns item i of a compound column tagged with the column unit
func (r Record) Item(name string, i int) (units.Quantity, error) {
	v, ok := r[name]
	if !ok {
		return units.Quantity{}, fmt.Errorf("column %s is absent", name)
	}
	if i >= len(v.Items) {
		return units.Quantity{}, fmt.Errorf("column %s has %d items, want at least %d", name, len(v.Items), i+1)
	}
	return units.New(v.Items[i], v.Unit), nil
}
