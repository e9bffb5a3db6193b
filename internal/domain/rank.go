package domain

// SortKey selects the ordering applied to a ranked working set.
type SortKey string

const (
	SortByDistance SortKey = "distance"
	SortByName     SortKey = "name"
	SortByRating   SortKey = "rating"
)

// ParseSortKey validates a client-supplied sort key.
func ParseSortKey(s string) (SortKey, bool) {
	switch SortKey(s) {
	case SortByDistance, SortByName, SortByRating:
		return SortKey(s), true
	default:
		return "", false
	}
}
