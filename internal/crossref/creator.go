// Package crossref joins the parsed catalogues into resolved star systems.
//
// The Creator never performs I/O: catalogues arrive as indexes and names
// arrive as a names.List supplied by the caller. Every step depends only on
// designation and file order, so two runs over the same input produce the
// same systems, primaries and warnings.
package crossref

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ppiankov/astrolabium/internal/catalogue"
	"github.com/ppiankov/astrolabium/internal/galaxy"
	"github.com/ppiankov/astrolabium/internal/logging"
	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/names"
)

// Candidate is a WDS designation group that implies a multiple system
type Candidate struct {
	WDS          string            `json:"wds"`
	Components   []string          `json:"components"`   // Sorted, sub-components expanded
	Observations []*model.WDSEntry `json:"observations"` // File order
}

// Intermediate is the output of system resolution, before naming. It can
// be cached by the caller and handed back to Create.
type Intermediate struct {
	Systems  []*model.StarSystem `json:"systems"`
	Warnings []Warning           `json:"warnings,omitempty"`
}

// Creator cross-references the catalogues. It is not safe for concurrent
// use; build one per goroutine.
type Creator struct {
	hipparcos *catalogue.Hipparcos
	wds       *catalogue.WDS
	orb6      *catalogue.Orb6
	resolver  *names.Resolver
	log       *zerolog.Logger
	warnings  []Warning
}

// Option configures a Creator
type Option func(*Creator)

// WithLogger sets the logger warnings are reported to
func WithLogger(log *zerolog.Logger) Option {
	return func(c *Creator) { c.log = log }
}

// WithResolver sets the canonical name rule
func WithResolver(r *names.Resolver) Option {
	return func(c *Creator) { c.resolver = r }
}

// NewCreator builds a Creator over the three indexes. Any index may be
// empty but not nil.
func NewCreator(hip *catalogue.Hipparcos, wds *catalogue.WDS, orb6 *catalogue.Orb6, opts ...Option) *Creator {
	c := &Creator{
		hipparcos: hip,
		wds:       wds,
		orb6:      orb6,
		resolver:  names.DefaultResolver(),
		log:       logging.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Warnings returns the warnings recorded since the last Build or Create
func (c *Creator) Warnings() []Warning {
	return append([]Warning(nil), c.warnings...)
}

func (c *Creator) warn(kind WarningKind, key, format string, args ...any) {
	w := Warning{Kind: kind, Key: key, Message: fmt.Sprintf(format, args...)}
	c.warnings = append(c.warnings, w)
	c.log.Warn().Str("kind", string(kind)).Str("wds", key).Msg(w.Message)
}

// FindStarSystems groups WDS observations by designation and derives each
// group's component set. Groups implying fewer than two components are
// dropped. When one pair's component set is a strict subset of another's
// the larger set wins and an ambiguity warning is recorded.
func (c *Creator) FindStarSystems() []Candidate {
	keys := c.wds.Keys()
	grouped := c.wds.SelectEntriesGrouped(keys)

	candidates := make([]Candidate, 0, len(keys))
	for _, key := range keys {
		set := make(map[string]bool)
		groups := grouped[key]
		views := make([][]string, len(groups))
		for i, g := range groups {
			views[i] = componentLabels(g.Key)
			for _, l := range views[i] {
				set[l] = true
			}
		}

		for i := range groups {
			for j := range groups {
				if i != j && isStrictSubset(views[i], views[j]) {
					c.warn(WarnAmbiguity, key, "components %s are a subset of %s; using the larger set",
						groups[i].Key, groups[j].Key)
				}
			}
		}

		components := normalizeComponents(set)
		if len(components) < 2 {
			c.log.Debug().Str("wds", key).Strs("components", components).Msg("single star, not a system")
			continue
		}
		candidates = append(candidates, Candidate{
			WDS:          key,
			Components:   components,
			Observations: c.wds.SelectAll(key),
		})
	}

	c.log.Debug().Int("candidates", len(candidates)).Msg("found star systems")
	return candidates
}

// FindMultipleSystems resolves each candidate into a StarSystem: stars per
// component, photometry from WDS and ORB6, the primary, the best-graded
// orbit per companion and Hipparcos astrometry. Orbits with no matching
// system are dropped with a warning.
func (c *Creator) FindMultipleSystems(candidates []Candidate) []*model.StarSystem {
	systems := make([]*model.StarSystem, 0, len(candidates))
	resolved := make(map[string]bool, len(candidates))
	for _, cand := range candidates {
		if len(cand.Components) < 2 {
			continue
		}
		resolved[cand.WDS] = true
		systems = append(systems, c.resolveSystem(cand))
	}

	for _, key := range c.orb6.Keys() {
		if resolved[key] {
			continue
		}
		for _, o := range c.orb6.SelectAll(key) {
			c.warn(WarnUnmatchedOrbit, key, "orbit %s has no double-star system", strings.TrimSpace(o.Disc))
		}
	}

	c.log.Debug().Int("systems", len(systems)).Msg("resolved multiple systems")
	return systems
}

func (c *Creator) resolveSystem(cand Candidate) *model.StarSystem {
	stars := make(map[string]*model.Star, len(cand.Components))
	for _, comp := range cand.Components {
		s := &model.Star{Name: placeholder(cand.WDS, comp), Component: comp}
		s.SetID(model.CatalogueWDS, cand.WDS)
		stars[comp] = s
	}
	find := func(label string) *model.Star { return resolveLabel(stars, cand.Components, label) }

	for _, obs := range cand.Observations {
		first, second := pairSides(obs.Comp)
		var st1, st2 string
		if obs.ST != nil {
			parts := strings.SplitN(*obs.ST, "+", 2)
			st1 = parts[0]
			if len(parts) == 2 {
				st2 = parts[1]
			}
		}
		if len(first) == 1 {
			photometry(find(first[0]), obs.Mag1, st1)
		}
		if len(second) == 1 {
			photometry(find(second[0]), obs.Mag2, st2)
		}
	}

	orbits := c.orb6.SelectAll(cand.WDS)
	for _, o := range orbits {
		p, q := orbitSides(o)
		photometry(find(p), o.V1, "")
		photometry(find(q), o.V2, "")
	}

	primary := c.choosePrimary(cand, stars)

	best := make(map[string]*model.Orb6Entry)
	for _, o := range orbits {
		_, label := orbitSides(o)
		companion := find(label)
		if companion == nil || companion == primary {
			c.warn(WarnUnmatchedOrbit, cand.WDS, "orbit %s names component %s, not a companion in %s",
				strings.TrimSpace(o.Disc), label, strings.Join(cand.Components, ","))
			continue
		}
		if cur, ok := best[companion.Component]; !ok || o.Grade < cur.Grade {
			best[companion.Component] = o
		}
		c.identify(cand.WDS, primary, o)
	}

	if hip := primary.ID(model.CatalogueHipparcos); hip != "" {
		if entry, ok := c.hipparcos.Select(hip); ok {
			primary.Astrometry = entry
		} else {
			c.log.Debug().Str("wds", cand.WDS).Str("hip", hip).Msg("HIP not in Hipparcos catalogue")
		}
	}

	system := &model.StarSystem{
		Name:         cand.WDS,
		WDS:          cand.WDS,
		Components:   append([]string(nil), cand.Components...),
		Primary:      primary,
		Observations: cand.Observations,
		Orbits:       orbits,
	}
	for _, comp := range cand.Components {
		s := stars[comp]
		if s == primary {
			continue
		}
		s.Orbit = best[comp]
		system.Orbiters = append(system.Orbiters, s)
	}
	return system
}

// identify copies the orbit's catalogue numbers onto the primary; the
// first orbit to name one wins.
func (c *Creator) identify(wds string, primary *model.Star, o *model.Orb6Entry) {
	for cat, id := range map[string]*string{model.CatalogueHipparcos: o.HIP, model.CatalogueHD: o.HD} {
		if id == nil || *id == "" {
			continue
		}
		switch cur := primary.ID(cat); {
		case cur == "":
			primary.SetID(cat, *id)
		case cur != *id:
			c.log.Debug().Str("wds", wds).Str("catalogue", cat).
				Str("kept", cur).Str("ignored", *id).Msg("orbits disagree on identifier")
		}
	}
}

// choosePrimary picks A, else the brightest star carrying the lowest
// letter, else the lowest label.
func (c *Creator) choosePrimary(cand Candidate, stars map[string]*model.Star) *model.Star {
	if s, ok := stars["A"]; ok {
		return s
	}

	letter := cand.Components[0][0]
	var primary *model.Star
	for _, comp := range cand.Components {
		if comp[0] != letter {
			break
		}
		if s := stars[comp]; primary == nil || brighter(s, primary) {
			primary = s
		}
	}
	c.warn(WarnPrimaryTiebreak, cand.WDS, "no component A; chose %s among %s",
		primary.Component, strings.Join(cand.Components, ","))
	return primary
}

func brighter(a, b *model.Star) bool {
	return a.Magnitude != nil && (b.Magnitude == nil || *a.Magnitude < *b.Magnitude)
}

// photometry fills unset magnitude and spectral type
func photometry(s *model.Star, mag *float64, spectral string) {
	if s == nil {
		return
	}
	if s.Magnitude == nil && mag != nil {
		m := *mag
		s.Magnitude = &m
	}
	if s.SpectralType == "" {
		s.SpectralType = strings.TrimSpace(spectral)
	}
}

func placeholder(wds, component string) string {
	return wds + " " + component
}

// GetStarsFromIAU renames systems and stars from the supplied name list
// and returns the stars that received a canonical name. Entities match a
// star by HIP, then HD, then WDS designation plus component; an entity
// with a designation and no component names the whole system. Unmatched
// targets keep their placeholder names.
func (c *Creator) GetStarsFromIAU(systems []*model.StarSystem, list names.List) []*model.Star {
	byID := map[string]map[string]*model.Star{
		model.CatalogueHipparcos: {},
		model.CatalogueHD:        {},
	}
	byComponent := make(map[string]*model.Star)
	byWDS := make(map[string]*model.StarSystem)
	for _, sys := range systems {
		if _, ok := byWDS[sys.WDS]; !ok {
			byWDS[sys.WDS] = sys
		}
		for _, s := range sys.Stars() {
			for cat, idx := range byID {
				if id := s.ID(cat); id != "" {
					if _, ok := idx[id]; !ok {
						idx[id] = s
					}
				}
			}
			byComponent[placeholder(sys.WDS, s.Component)] = s
		}
	}

	starNames := make(map[*model.Star][]names.Entity)
	systemNames := make(map[*model.StarSystem][]names.Entity)
	unmatched := 0
	for _, e := range list {
		if s := matchStar(e, byID, byComponent); s != nil {
			starNames[s] = append(starNames[s], e)
			continue
		}
		if sys, ok := byWDS[e.Identifier(model.CatalogueWDS)]; ok && e.Component == "" {
			systemNames[sys] = append(systemNames[sys], e)
			continue
		}
		unmatched++
	}

	var named []*model.Star
	usedSystem := make(map[string]string)
	usedStar := make(map[string]string)
	for _, sys := range systems {
		if name, ok := c.canonical(sys.WDS, sys.WDS, systemNames[sys], usedSystem); ok {
			sys.Name = name
		}
		for _, s := range sys.Stars() {
			cands := starNames[s]
			name, ok := c.canonical(sys.WDS, placeholder(sys.WDS, s.Component), cands, usedStar)
			if !ok {
				continue
			}
			s.Name = name
			if m := c.resolver.Mass(cands); m != nil {
				s.Mass = m
			}
			named = append(named, s)
		}
	}

	c.log.Debug().Int("entities", len(list)).Int("named", len(named)).Int("unmatched", unmatched).Msg("applied names")
	return named
}

func matchStar(e names.Entity, byID map[string]map[string]*model.Star, byComponent map[string]*model.Star) *model.Star {
	for _, cat := range []string{model.CatalogueHipparcos, model.CatalogueHD} {
		if id := e.Identifier(cat); id != "" {
			if s, ok := byID[cat][id]; ok {
				return s
			}
		}
	}
	if wds := e.Identifier(model.CatalogueWDS); wds != "" && e.Component != "" {
		return byComponent[placeholder(wds, e.Component)]
	}
	return nil
}

// canonical resolves one target's name. A name already taken by an
// earlier target is refused with a duplicate_name warning.
func (c *Creator) canonical(key, target string, cands []names.Entity, used map[string]string) (string, bool) {
	best, all, ok := c.resolver.Resolve(cands)
	if !ok {
		return "", false
	}
	if len(all) > 1 {
		c.warn(WarnNameConflict, key, "%s has names %s; chose %s", target, strings.Join(all, ", "), best.Name)
	}
	if owner, taken := used[best.Name]; taken {
		c.warn(WarnDuplicateName, key, "%s is already the name of %s; %s keeps its placeholder", best.Name, owner, target)
		return "", false
	}
	used[best.Name] = target
	return best.Name, true
}

// Build runs system discovery and resolution, producing the intermediate
// that Create can reuse
func (c *Creator) Build() *Intermediate {
	c.warnings = nil
	systems := c.FindMultipleSystems(c.FindStarSystems())
	return &Intermediate{Systems: systems, Warnings: c.Warnings()}
}

// Create builds the galaxy. A nil cached intermediate is recomputed from
// the indexes; a non-nil one is cloned and reused, with the same result.
func (c *Creator) Create(list names.List, cached *Intermediate) (*galaxy.Galaxy, []Warning) {
	inter := cached
	if inter == nil {
		inter = c.Build()
	} else {
		c.log.Debug().Int("systems", len(inter.Systems)).Msg("reusing resolved systems")
	}

	systems := make([]*model.StarSystem, len(inter.Systems))
	for i, sys := range inter.Systems {
		systems[i] = sys.Clone()
	}
	c.warnings = append([]Warning(nil), inter.Warnings...)

	c.GetStarsFromIAU(systems, list)

	g := galaxy.New(systems)
	c.log.Info().Int("systems", g.Count()).Int("warnings", len(c.warnings)).Msg("created galaxy")
	return g, c.Warnings()
}

// LookupIdentifiers lists the identifiers a name source should resolve:
// each system's designation and every star's HIP and HD numbers
func (c *Creator) LookupIdentifiers(systems []*model.StarSystem) []model.CatalogueID {
	seen := make(map[model.CatalogueID]bool)
	var ids []model.CatalogueID
	add := func(id model.CatalogueID) {
		if id.ID != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, sys := range systems {
		add(model.CatalogueID{Catalogue: model.CatalogueWDS, ID: sys.WDS})
		for _, s := range sys.Stars() {
			add(model.CatalogueID{Catalogue: model.CatalogueHipparcos, ID: s.ID(model.CatalogueHipparcos)})
			add(model.CatalogueID{Catalogue: model.CatalogueHD, ID: s.ID(model.CatalogueHD)})
		}
	}
	return ids
}

// IdentifiersByCatalogue splits ids per catalogue, each list sorted
func IdentifiersByCatalogue(ids []model.CatalogueID) map[string][]string {
	out := make(map[string][]string)
	for _, id := range ids {
		out[id.Catalogue] = append(out[id.Catalogue], id.ID)
	}
	for _, v := range out {
		sort.Strings(v)
	}
	return out
}
