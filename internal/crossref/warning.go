package crossref

import "fmt"

// WarningKind classifies a recoverable cross-reference problem
type WarningKind string

const (
	WarnAmbiguity       WarningKind = "ambiguity"        // Contradictory component sets
	WarnUnmatchedOrbit  WarningKind = "unmatched_orbit"  // Orbit with no system or component
	WarnPrimaryTiebreak WarningKind = "primary_tiebreak" // No component A
	WarnNameConflict    WarningKind = "name_conflict"    // Several names for one target
	WarnDuplicateName   WarningKind = "duplicate_name"   // One name for several targets
)

// Warning is a problem that was resolved by a tie-break rule
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Key     string      `json:"key"` // WDS designation
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s %s: %s", w.Kind, w.Key, w.Message)
}

// CountByKind tallies warnings per kind
func CountByKind(warnings []Warning) map[WarningKind]int {
	counts := make(map[WarningKind]int)
	for _, w := range warnings {
		counts[w.Kind]++
	}
	return counts
}
