package model

import (
	"sort"

	"github.com/ppiankov/astrolabium/internal/units"
)

// CatalogueID names an entry in one catalogue
type CatalogueID struct {
	Catalogue string `json:"catalogue"`
	ID        string `json:"id"`
}

func (c CatalogueID) String() string {
	return c.Catalogue + " " + c.ID
}

// Star is one component of a multiple-star system
type Star struct {
	Name         string            `json:"name"`                    // Canonical name, or placeholder "<WDS> <component>"
	Component    string            `json:"component"`               // Component label ("A", "B", "Ab", ...)
	Mass         *units.Quantity   `json:"mass,omitempty"`          // Solar masses, when a name source provided one
	Magnitude    *float64          `json:"magnitude,omitempty"`     // Visual magnitude from WDS or ORB6
	SpectralType string            `json:"spectral_type,omitempty"` // From WDS, primary pair only
	Identifiers  map[string]string `json:"identifiers,omitempty"`   // catalogue -> id
	Orbit        *Orb6Entry        `json:"orbit,omitempty"`         // Orbit around the primary
	Astrometry   *HipparcosEntry   `json:"astrometry,omitempty"`    // Hipparcos record, when identified
}

// ID returns the star's identifier in catalogue, or ""
func (s *Star) ID(catalogue string) string {
	return s.Identifiers[catalogue]
}

// SetID records an identifier; empty ids are ignored
func (s *Star) SetID(catalogue, id string) {
	if id == "" {
		return
	}
	if s.Identifiers == nil {
		s.Identifiers = make(map[string]string)
	}
	s.Identifiers[catalogue] = id
}

// Clone returns a copy that can be renamed without touching s. Catalogue
// entries are shared; they are never mutated after parsing.
func (s *Star) Clone() *Star {
	if s == nil {
		return nil
	}
	c := *s
	if s.Mass != nil {
		m := *s.Mass
		c.Mass = &m
	}
	if s.Magnitude != nil {
		m := *s.Magnitude
		c.Magnitude = &m
	}
	if s.Identifiers != nil {
		c.Identifiers = make(map[string]string, len(s.Identifiers))
		for k, v := range s.Identifiers {
			c.Identifiers[k] = v
		}
	}
	return &c
}

// StarSystem is a physical multiple-star system: one primary and the
// companions orbiting it.
type StarSystem struct {
	Name         string       `json:"name"`
	WDS          string       `json:"wds"`
	Components   []string     `json:"components"`
	Primary      *Star        `json:"primary"`
	Orbiters     []*Star      `json:"orbiters"`
	Observations []*WDSEntry  `json:"observations,omitempty"`
	Orbits       []*Orb6Entry `json:"orbits,omitempty"`
}

// Stars returns the primary followed by the orbiters
func (s *StarSystem) Stars() []*Star {
	stars := make([]*Star, 0, len(s.Orbiters)+1)
	if s.Primary != nil {
		stars = append(stars, s.Primary)
	}
	return append(stars, s.Orbiters...)
}

// Star returns the member with the given component label
func (s *StarSystem) Star(component string) (*Star, bool) {
	for _, star := range s.Stars() {
		if star.Component == component {
			return star, true
		}
	}
	return nil, false
}

// OrbitersCatalogueIDs returns the orbiters' identifiers in catalogue,
// skipping orbiters without one.
func (s *StarSystem) OrbitersCatalogueIDs(catalogue string) []string {
	var ids []string
	for _, star := range s.Orbiters {
		if id := star.ID(catalogue); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Clone deep-copies the system's stars so naming can be applied to the copy
func (s *StarSystem) Clone() *StarSystem {
	if s == nil {
		return nil
	}
	c := *s
	c.Components = append([]string(nil), s.Components...)
	c.Primary = s.Primary.Clone()
	c.Orbiters = make([]*Star, len(s.Orbiters))
	for i, o := range s.Orbiters {
		c.Orbiters[i] = o.Clone()
	}
	c.Observations = append([]*WDSEntry(nil), s.Observations...)
	c.Orbits = append([]*Orb6Entry(nil), s.Orbits...)
	return &c
}

// SortComponents orders component labels by primary letter, then by the
// sub-component suffix ("A" < "Aa" < "Ab" < "B").
func SortComponents(labels []string) {
	sort.Slice(labels, func(i, j int) bool {
		return CompareComponents(labels[i], labels[j]) < 0
	})
}

// CompareComponents orders two component labels
func CompareComponents(a, b string) int {
	switch {
	case a == b:
		return 0
	case len(a) == 0:
		return -1
	case len(b) == 0:
		return 1
	case a[0] != b[0]:
		if a[0] < b[0] {
			return -1
		}
		return 1
	case len(a) != len(b):
		if len(a) < len(b) {
			return -1
		}
		return 1
	case a < b:
		return -1
	default:
		return 1
	}
}
