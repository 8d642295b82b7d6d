// Package catalogue provides read-only lookup structures over parsed
// catalogue entries.
//
// An Index is built once, in file order, and never mutated afterwards, so
// it is safe for concurrent readers.
package catalogue

import "github.com/ppiankov/astrolabium/internal/model"

// Group is a run of entries sharing a secondary key within one index key,
// e.g. all WDS observations of the AB pair of one system.
type Group[E model.Entry] struct {
	Key     string
	Entries []E
}

// Index maps entry keys to entries in file order
type Index[E model.Entry] struct {
	name     string
	entries  []E
	byKey    map[string][]E
	keys     []string
	groupKey func(E) string
}

// NewIndex builds an index. groupKey supplies the secondary key used by
// SelectEntriesGrouped; nil groups every entry of a key together.
func NewIndex[E model.Entry](name string, entries []E, groupKey func(E) string) *Index[E] {
	idx := &Index[E]{
		name:     name,
		entries:  entries,
		byKey:    make(map[string][]E),
		groupKey: groupKey,
	}
	for _, e := range entries {
		k := e.Key()
		if _, ok := idx.byKey[k]; !ok {
			idx.keys = append(idx.keys, k)
		}
		idx.byKey[k] = append(idx.byKey[k], e)
	}
	return idx
}

// Name returns the catalogue name
func (idx *Index[E]) Name() string {
	return idx.name
}

// Select returns the first entry with the key in file order
func (idx *Index[E]) Select(key string) (E, bool) {
	var zero E
	es := idx.byKey[key]
	if len(es) == 0 {
		return zero, false
	}
	return es[0], true
}

// SelectAll returns every entry with the key in file order
func (idx *Index[E]) SelectAll(key string) []E {
	return idx.byKey[key]
}

// SelectEntries returns every entry whose key is in keys, in file order.
// The order of keys and repeated keys do not matter.
func (idx *Index[E]) SelectEntries(keys []string) []E {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}

	var out []E
	for _, e := range idx.entries {
		if _, ok := set[e.Key()]; ok {
			out = append(out, e)
		}
	}
	return out
}

// SelectEntriesGrouped returns, per key, its entries grouped by the
// secondary key in order of first appearance. Unknown keys are omitted.
func (idx *Index[E]) SelectEntriesGrouped(keys []string) map[string][]Group[E] {
	out := make(map[string][]Group[E], len(keys))
	for _, k := range keys {
		es := idx.byKey[k]
		if len(es) == 0 {
			continue
		}
		out[k] = idx.group(es)
	}
	return out
}

func (idx *Index[E]) group(es []E) []Group[E] {
	var groups []Group[E]
	pos := make(map[string]int)
	for _, e := range es {
		g := ""
		if idx.groupKey != nil {
			g = idx.groupKey(e)
		}
		i, ok := pos[g]
		if !ok {
			i = len(groups)
			pos[g] = i
			groups = append(groups, Group[E]{Key: g})
		}
		groups[i].Entries = append(groups[i].Entries, e)
	}
	return groups
}

// Keys returns the distinct keys in order of first appearance
func (idx *Index[E]) Keys() []string {
	return idx.keys
}

// Len returns the number of entries
func (idx *Index[E]) Len() int {
	return len(idx.entries)
}

// All returns every entry in file order
func (idx *Index[E]) All() []E {
	return idx.entries
}

// Hipparcos indexes Hipparcos entries by HIP number
type Hipparcos = Index[*model.HipparcosEntry]

// WDS indexes WDS observations by system designation, grouped by
// component pair
type WDS = Index[*model.WDSEntry]

// Orb6 indexes orbits by system designation, grouped by discoverer
type Orb6 = Index[*model.Orb6Entry]

// NewHipparcos builds the Hipparcos index
func NewHipparcos(entries []*model.HipparcosEntry) *Hipparcos {
	return NewIndex(model.CatalogueHipparcos, entries, nil)
}

// NewWDS builds the WDS index
func NewWDS(entries []*model.WDSEntry) *WDS {
	return NewIndex(model.CatalogueWDS, entries, (*model.WDSEntry).Pair)
}

// NewOrb6 builds the ORB6 index
func NewOrb6(entries []*model.Orb6Entry) *Orb6 {
	return NewIndex(model.CatalogueOrb6, entries, (*model.Orb6Entry).Discoverer)
}
