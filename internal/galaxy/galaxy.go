// Package galaxy holds the resolved star systems, indexed by name.
package galaxy

import "github.com/ppiankov/astrolabium/internal/model"

// Galaxy is read-only after New
type Galaxy struct {
	systems []*model.StarSystem
	byName  map[string]*model.StarSystem // Canonical system names
	byWDS   map[string]*model.StarSystem
	byStar  map[string]*model.StarSystem // Star names and placeholders
}

// New indexes systems in the given order. When names collide the earlier
// system keeps the name.
func New(systems []*model.StarSystem) *Galaxy {
	g := &Galaxy{
		systems: systems,
		byName:  make(map[string]*model.StarSystem, len(systems)),
		byWDS:   make(map[string]*model.StarSystem, len(systems)),
		byStar:  make(map[string]*model.StarSystem),
	}
	for _, sys := range systems {
		putFirst(g.byName, sys.Name, sys)
		putFirst(g.byWDS, sys.WDS, sys)
		for _, s := range sys.Stars() {
			putFirst(g.byStar, s.Name, sys)
			putFirst(g.byStar, sys.WDS+" "+s.Component, sys)
		}
	}
	return g
}

func putFirst(m map[string]*model.StarSystem, key string, sys *model.StarSystem) {
	if key == "" {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = sys
	}
}

// Select finds a system by canonical name, WDS designation, or the name
// or placeholder of one of its stars
func (g *Galaxy) Select(name string) (*model.StarSystem, bool) {
	for _, m := range []map[string]*model.StarSystem{g.byName, g.byWDS, g.byStar} {
		if sys, ok := m[name]; ok {
			return sys, true
		}
	}
	return nil, false
}

// Count returns the number of systems
func (g *Galaxy) Count() int {
	return len(g.systems)
}

// Systems returns the systems in insertion order
func (g *Galaxy) Systems() []*model.StarSystem {
	return g.systems
}

// Names returns the canonical system names in insertion order
func (g *Galaxy) Names() []string {
	out := make([]string, len(g.systems))
	for i, sys := range g.systems {
		out[i] = sys.Name
	}
	return out
}

// Stars returns every star, system by system
func (g *Galaxy) Stars() []*model.Star {
	var out []*model.Star
	for _, sys := range g.systems {
		out = append(out, sys.Stars()...)
	}
	return out
}
