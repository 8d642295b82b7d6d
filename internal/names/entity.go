// Package names resolves canonical star names.
//
// Name sources (the IAU WGSN table, Wikidata, local JSON lists) all produce
// Entity values; a Resolver picks one display name per target when sources
// disagree.
package names

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/ppiankov/astrolabium/internal/errors"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/units"
)

// Source names
const (
	SourceIAU       = "iau"
	SourceWikidata  = "wikidata"
	SourceCatalogue = "catalogue"
)

// Entity is a named star or system from one name source
type Entity struct {
	ID          string            `json:"id"`                  // Source-specific id (QID, WGSN row)
	Name        string            `json:"name"`                // Display name
	Source      string            `json:"source"`              // iau, wikidata, catalogue
	Component   string            `json:"component,omitempty"` // WDS component, empty for a whole system
	Identifiers map[string]string `json:"identifiers"`         // catalogue -> id
	Mass        *units.Quantity   `json:"mass,omitempty"`      // Solar masses
}

// Identifier returns the entity's id in catalogue, or ""
func (e Entity) Identifier(catalogue string) string {
	return e.Identifiers[catalogue]
}

// List is an ordered collection of named entities
type List []Entity

// Merge concatenates lists, keeping order
func Merge(lists ...List) List {
	var out List
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

// LoadJSON reads a list written by WriteJSON
func LoadJSON(r io.Reader) (List, error) {
	var list List
	if err := json.NewDecoder(r).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: decode name list: %v", errors.ErrInvalidInput, err)
	}
	for i, e := range list {
		if e.Name == "" {
			return nil, fmt.Errorf("%w: entity %d has no name", errors.ErrInvalidInput, i)
		}
		if e.Source == "" {
			list[i].Source = SourceCatalogue
		}
	}
	return list, nil
}

// LoadFile reads a JSON name list from disk
func LoadFile(path string) (List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()
	return LoadJSON(f)
}

// WriteJSON writes the list as indented JSON
func (l List) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(l)
}

// Resolver picks one canonical name among competing entities: higher
// priority source first, then the shorter name, then lexical order.
type Resolver struct {
	priority map[string]int
}

// NewResolver creates a resolver; sources are listed highest priority first
func NewResolver(sources []string) *Resolver {
	r := &Resolver{priority: make(map[string]int, len(sources))}
	for i, s := range sources {
		if _, ok := r.priority[s]; !ok {
			r.priority[s] = i
		}
	}
	return r
}

// DefaultResolver ranks IAU over Wikidata over catalogue-derived names
func DefaultResolver() *Resolver {
	return NewResolver([]string{SourceIAU, SourceWikidata, SourceCatalogue})
}

func (r *Resolver) rank(source string) int {
	if p, ok := r.priority[source]; ok {
		return p
	}
	return len(r.priority)
}

// Less orders two entities by preference
func (r *Resolver) Less(a, b Entity) bool {
	if ra, rb := r.rank(a.Source), r.rank(b.Source); ra != rb {
		return ra < rb
	}
	if la, lb := utf8.RuneCountInString(a.Name), utf8.RuneCountInString(b.Name); la != lb {
		return la < lb
	}
	return a.Name < b.Name
}

// Resolve returns the preferred entity and the sorted distinct names that
// competed for the same target. ok is false for an empty slice.
func (r *Resolver) Resolve(candidates []Entity) (best Entity, names []string, ok bool) {
	if len(candidates) == 0 {
		return Entity{}, nil, false
	}

	best = candidates[0]
	seen := make(map[string]bool)
	for _, c := range candidates {
		if r.Less(c, best) {
			best = c
		}
		if !seen[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return best, names, true
}

// Mass returns the first mass among candidates in preference order
func (r *Resolver) Mass(candidates []Entity) *units.Quantity {
	sorted := append([]Entity(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool { return r.Less(sorted[i], sorted[j]) })
	for _, c := range sorted {
		if c.Mass != nil {
			m := *c.Mass
			return &m
		}
	}
	return nil
}

// IDs returns the catalogue identifiers the entity can be matched on
func (e Entity) IDs() []model.CatalogueID {
	var ids []model.CatalogueID
	for _, cat := range []string{model.CatalogueHipparcos, model.CatalogueHD, model.CatalogueWDS} {
		if id := e.Identifiers[cat]; id != "" {
			ids = append(ids, model.CatalogueID{Catalogue: cat, ID: id})
		}
	}
	return ids
}
