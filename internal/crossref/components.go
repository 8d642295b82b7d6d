package crossref

import (
	"regexp"
	"strings"

	"github.com/ppiankov/astrolabium/internal/model"
)

// One upper-case letter, optionally followed by a sub-component suffix
var labelPattern = regexp.MustCompile(`[A-Z][a-z0-9]*`)

// pairSides splits a component field into the two sides of the pair:
// "AB" is [A] and [B], "AB,C" is [A B] and [C], "Aa,Ab" is [Aa] and [Ab].
// A blank field is the AB pair.
func pairSides(comp string) (first, second []string) {
	comp = strings.TrimSpace(comp)
	if comp == "" {
		return []string{"A"}, []string{"B"}
	}
	if i := strings.IndexByte(comp, ','); i >= 0 {
		return labels(comp[:i]), labels(comp[i+1:])
	}
	ls := labels(comp)
	if len(ls) < 2 {
		return ls, nil
	}
	return []string{ls[0]}, append([]string(nil), ls[1:]...)
}

func labels(s string) []string {
	return labelPattern.FindAllString(s, -1)
}

// componentLabels returns every label a component field implies
func componentLabels(comp string) []string {
	first, second := pairSides(comp)
	out := make([]string, 0, len(first)+len(second))
	out = append(out, first...)
	return append(out, second...)
}

// normalizeComponents returns the sorted label set with every label that
// has sub-components ("A" next to "Aa") replaced by them.
func normalizeComponents(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for l := range set {
		split := false
		for other := range set {
			if len(other) > len(l) && strings.HasPrefix(other, l) {
				split = true
				break
			}
		}
		if !split {
			out = append(out, l)
		}
	}
	model.SortComponents(out)
	return out
}

// resolveLabel maps a label onto a resolved component: the exact label,
// or the first of its sub-components.
func resolveLabel(stars map[string]*model.Star, components []string, label string) *model.Star {
	if s, ok := stars[label]; ok {
		return s
	}
	for _, c := range components {
		if len(c) > len(label) && strings.HasPrefix(c, label) {
			return stars[c]
		}
	}
	return nil
}

// orbitSides returns the primary and companion labels of an orbit: the
// first label of the first side and the last label of the second, B
// when the discoverer carries no component suffix.
func orbitSides(o *model.Orb6Entry) (primary, companion string) {
	first, second := pairSides(o.Components())
	primary, companion = "A", "B"
	if len(first) > 0 {
		primary = first[0]
	}
	if len(second) > 0 {
		companion = second[len(second)-1]
	}
	return primary, companion
}

// isStrictSubset reports whether every label of a is in b and b is larger
func isStrictSubset(a, b []string) bool {
	if len(a) >= len(b) {
		return false
	}
	in := make(map[string]bool, len(b))
	for _, l := range b {
		in[l] = true
	}
	for _, l := range a {
		if !in[l] {
			return false
		}
	}
	return true
}
