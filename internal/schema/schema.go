// Package schema parses fixed-width text records according to a declarative
// column table.
//
// A Schema is validated once before any line is parsed. Each parsed line
// becomes a Record: a map from column name to a decoded Value. Numeric columns
// declared with a unit carry the unit tag; conversions are left to the typed
// entry constructors.
package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/units"
)

// Kind is the decoded type of a column
type Kind int

const (
	String Kind = iota
	Int
	Float
	Compound
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Compound:
		return "compound"
	default:
		return "string"
	}
}

// Column describes one field of a fixed-width record. Start is a 0-based
// byte offset.
type Column struct {
	Name     string
	Start    int
	Width    int
	Kind     Kind
	Unit     units.Unit
	Nullable bool

	// ItemWidth splits Compound columns into fixed-width items; zero splits
	// on whitespace.
	ItemWidth int
}

// End returns the exclusive end offset of the column
func (c Column) End() int {
	return c.Start + c.Width
}

// Schema is the column table of one catalogue
type Schema struct {
	Catalogue string
	Width     int
	Columns   []Column
}

// Validate checks that the columns are ordered, non-overlapping and that
// their extent equals the declared record width.
func (s *Schema) Validate() error {
	if s.Width <= 0 {
		return errors.NewSchemaError(s.Catalogue, "record width must be positive, got %d", s.Width)
	}
	if len(s.Columns) == 0 {
		return errors.NewSchemaError(s.Catalogue, "no columns declared")
	}

	seen := make(map[string]bool, len(s.Columns))
	prevEnd := 0
	for i, col := range s.Columns {
		if col.Name == "" {
			return errors.NewSchemaError(s.Catalogue, "column %d has no name", i)
		}
		if seen[col.Name] {
			return errors.NewSchemaError(s.Catalogue, "duplicate column %q", col.Name)
		}
		seen[col.Name] = true

		if col.Width <= 0 {
			return errors.NewSchemaError(s.Catalogue, "column %q has width %d", col.Name, col.Width)
		}
		if col.Start < prevEnd {
			return errors.NewSchemaError(s.Catalogue, "column %q starts at %d, overlapping previous column ending at %d",
				col.Name, col.Start, prevEnd)
		}
		if col.Kind == Compound && col.ItemWidth > 0 && col.Width%col.ItemWidth != 0 {
			return errors.NewSchemaError(s.Catalogue, "column %q width %d is not a multiple of item width %d",
				col.Name, col.Width, col.ItemWidth)
		}
		prevEnd = col.End()
	}

	if prevEnd != s.Width {
		return errors.NewSchemaError(s.Catalogue, "column extent %d does not match record width %d", prevEnd, s.Width)
	}
	return nil
}

// KnownKeys returns the ordered list of declared column names
func (s *Schema) KnownKeys() []string {
	keys := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		keys[i] = col.Name
	}
	return keys
}

// Column returns the column with the given name
func (s *Schema) Column(name string) (Column, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

// ParseLine decodes one record. Lines shorter than the record width are
// treated as blank-padded so nullable trailing columns may be omitted.
func (s *Schema) ParseLine(line string, lineNumber int) (Record, error) {
	line = strings.TrimRight(line, "\r\n")
	if len(line) > s.Width {
		return nil, &errors.ParseError{
			Catalogue: s.Catalogue,
			Line:      lineNumber,
			Message:   fmt.Sprintf("line length %d exceeds record width %d", len(line), s.Width),
		}
	}

	rec := make(Record, len(s.Columns))
	for _, col := range s.Columns {
		raw := strings.TrimSpace(slice(line, col.Start, col.End()))
		if raw == "" {
			if col.Nullable {
				continue
			}
			return nil, &errors.ParseError{
				Catalogue: s.Catalogue,
				Line:      lineNumber,
				Field:     col.Name,
				Message:   "required field is blank",
			}
		}

		value, err := decode(col, raw)
		if err != nil {
			return nil, errors.NewParseError(s.Catalogue, lineNumber, col.Name, err)
		}
		rec[col.Name] = value
	}
	return rec, nil
}

func slice(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return line[start:end]
}

func decode(col Column, raw string) (Value, error) {
	v := Value{Kind: col.Kind, Text: raw, Unit: col.Unit}
	switch col.Kind {
	case String:
	case Int:
		n, err := strconv.ParseInt(strings.TrimPrefix(raw, "+"), 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid integer %q", raw)
		}
		v.Int = n
	case Float:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Value{}, fmt.Errorf("invalid number %q", raw)
		}
		v.Float = f
	case Compound:
		items, err := splitItems(col, raw)
		if err != nil {
			return Value{}, err
		}
		v.Items = items
	default:
		return Value{}, fmt.Errorf("unsupported column kind %d", col.Kind)
	}
	return v, nil
}

func splitItems(col Column, raw string) ([]float64, error) {
	var parts []string
	if col.ItemWidth > 0 {
		// raw was trimmed; re-align on the right edge, which is where
		// fixed-width numeric items are justified.
		padded := raw
		if rem := len(raw) % col.ItemWidth; rem != 0 {
			padded = strings.Repeat(" ", col.ItemWidth-rem) + raw
		}
		for i := 0; i < len(padded); i += col.ItemWidth {
			parts = append(parts, strings.TrimSpace(padded[i:i+col.ItemWidth]))
		}
	} else {
		parts = strings.Fields(raw)
	}

	items := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid compound item %q", p)
		}
		items = append(items, f)
	}
	return items, nil
}
