// Package sorter orders matched nodes by one or more field paths.
package sorter

import (
	"sort"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/match"
)

type sortKey struct {
	value   any
	present bool
}

// Sort returns a stably sorted copy of nodes. fields[0] is the primary key,
// later fields break ties. Missing values sort last in either direction.
func Sort(nodes []*domain.Node, order *domain.Sort) []*domain.Node {
	sorted := append([]*domain.Node(nil), nodes...)
	if order.IsEmpty() || len(sorted) < 2 {
		return sorted
	}

	directions := make([]domain.SortDirection, len(order.Fields))
	for i := range order.Fields {
		directions[i] = order.Direction(i)
	}

	keys := make(map[*domain.Node][]sortKey, len(sorted))
	for _, node := range sorted {
		nodeKeys := make([]sortKey, len(order.Fields))
		for i, field := range order.Fields {
			nodeKeys[i] = extractKey(node, field)
		}
		keys[node] = nodeKeys
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		left := keys[sorted[i]]
		right := keys[sorted[j]]
		for k := range left {
			cmp := compareKeys(left[k], right[k], directions[k])
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
	return sorted
}

func extractKey(node *domain.Node, field string) sortKey {
	value, ok := match.ValueAt(node, field)
	if !ok || value == nil {
		return sortKey{}
	}
	if list, isList := value.([]any); isList {
		if len(list) == 0 || list[0] == nil {
			return sortKey{}
		}
		value = list[0]
	}
	return sortKey{value: value, present: true}
}

// compareKeys returns the ordering of a before b for the given direction.
func compareKeys(a, b sortKey, direction domain.SortDirection) int {
	switch {
	case !a.present && !b.present:
		return 0
	case !a.present:
		return 1
	case !b.present:
		return -1
	}
	cmp, ok := match.Compare(a.value, b.value)
	if !ok {
		cmp = match.Rank(a.value) - match.Rank(b.value)
	}
	if direction == domain.SortDirectionDesc {
		return -cmp
	}
	return cmp
}
