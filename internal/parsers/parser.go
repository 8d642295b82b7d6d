// Package parsers turns catalogue text lines into typed entries.
//
// Each catalogue has a Parser that owns its column schema, decides which
// lines are headers, and converts a decoded schema.Record into a model entry
// with canonical units. ParseAll runs a parser over a whole file on the
// worker pool.
package parsers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/schema"
)

// Parser defines the interface for catalogue-specific line parsers
type Parser interface {
	// Name returns the catalogue name
	Name() string

	// Schema returns the column table
	Schema() *schema.Schema

	// Skip reports header, ruler and blank lines
	Skip(line string) bool

	// ParseLine converts one data line into an entry
	ParseLine(line string, lineNumber int) (model.Entry, error)

	// KnownKeys returns the entry's serialized field names
	KnownKeys() []string
}

// Registry resolves parsers by catalogue name
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates a registry holding the three catalogue parsers
func NewRegistry() *Registry {
	registry := &Registry{
		parsers: make(map[string]Parser),
	}

	registry.Register(NewHipparcosParser())
	registry.Register(NewWDSParser())
	registry.Register(NewOrb6Parser())

	return registry
}

// Register adds or replaces a parser
func (r *Registry) Register(p Parser) {
	r.parsers[p.Name()] = p
}

// Get returns the parser for a catalogue
func (r *Registry) Get(name string) (Parser, error) {
	p, ok := r.parsers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: unknown catalogue %q (known: %s)",
			errors.ErrInvalidInput, name, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

// Names returns the registered catalogue names, sorted
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.parsers))
	for name := range r.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// startsWithDigit is the data-line test for catalogues whose records begin
// with a designation in column 0.
func startsWithDigit(line string) bool {
	return len(line) > 0 && line[0] >= '0' && line[0] <= '9'
}

func designation(catalogue string, rec schema.Record, field string, lineNumber int) (string, error) {
	d := rec.String(field)
	if !model.ValidDesignation(d) {
		return "", errors.NewParseError(catalogue, lineNumber, field, fmt.Errorf("malformed designation %q", d))
	}
	return d, nil
}

func intPtr(rec schema.Record, name string) *int {
	n, ok := rec.Int(name)
	if !ok {
		return nil
	}
	i := int(n)
	return &i
}
