package engine

import (
	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/filter"
	"github.com/rpattn/nodequery/internal/match"
	"github.com/rpattn/nodequery/internal/sorter"
)

// assemble matches resolved nodes and shapes the result. First-only queries
// take the earliest match in candidate order and ignore sorting.
func assemble(q Query, clauses []*filter.Node, resolved []*domain.Node) (Result, error) {
	if q.FirstOnly {
		index, err := match.First(clauses, resolved)
		if err != nil {
			return Result{}, err
		}
		if index < 0 {
			return Result{Nodes: []*domain.Node{}}, nil
		}
		return Result{Nodes: []*domain.Node{resolved[index]}}, nil
	}

	matched, err := match.All(clauses, resolved)
	if err != nil {
		return Result{}, err
	}
	if len(matched) == 0 {
		return Result{NoResult: true}, nil
	}
	if !q.Args.Sort.IsEmpty() {
		matched = sorter.Sort(matched, q.Args.Sort)
	}
	return Result{Nodes: matched}, nil
}
