// Package ranking turns a working set into the visible list: a pure,
// synchronous filter-and-sort with no I/O and no failure mode.
package ranking

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"salon-discovery/internal/domain"
)

// Engine filters and orders salon sets for presentation. Name ordering is
// locale-aware so that accented names collate the way a local directory
// would list them.
type Engine struct {
	collator *collate.Collator
}

// New builds an Engine for the given BCP 47 locale tag. Unparseable tags
// fall back to English collation.
func New(locale string) *Engine {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return &Engine{collator: collate.New(tag, collate.IgnoreCase)}
}

// Compute returns the subset of set matching query, ordered by key. The
// input slice is never mutated. Filtering is a case-insensitive substring
// match over name, address, and city; an empty or blank query matches
// everything. Sorting is stable: entries that compare equal keep their
// working-set order, and entries without a distance sort after all entries
// with one.
func (e *Engine) Compute(set []domain.Salon, query string, key domain.SortKey) []domain.Salon {
	needle := strings.ToLower(strings.TrimSpace(query))

	out := make([]domain.Salon, 0, len(set))
	for _, s := range set {
		if needle == "" || matchesQuery(s, needle) {
			out = append(out, s)
		}
	}

	switch key {
	case domain.SortByDistance:
		slices.SortStableFunc(out, compareDistance)
	case domain.SortByName:
		slices.SortStableFunc(out, func(a, b domain.Salon) int {
			return e.collator.CompareString(a.Name, b.Name)
		})
	case domain.SortByRating:
		// No rating source exists in the directory yet; the filtered set
		// keeps its working-set order until one does.
	}

	return out
}

func matchesQuery(s domain.Salon, needle string) bool {
	return strings.Contains(strings.ToLower(s.Name), needle) ||
		strings.Contains(strings.ToLower(s.Address), needle) ||
		strings.Contains(strings.ToLower(s.City), needle)
}

// compareDistance orders ascending by distance with missing distances last.
func compareDistance(a, b domain.Salon) int {
	switch {
	case a.DistanceKm == nil && b.DistanceKm == nil:
		return 0
	case a.DistanceKm == nil:
		return 1
	case b.DistanceKm == nil:
		return -1
	case *a.DistanceKm < *b.DistanceKm:
		return -1
	case *a.DistanceKm > *b.DistanceKm:
		return 1
	default:
		return 0
	}
}
