// Package match evaluates translated operator trees against resolved nodes.
//
// Evaluation works on candidate sets: descending into a field collects that
// field from every candidate, reaching through lists, so a comparison holds
// when any reachable value satisfies it. Negated comparisons ($ne, $nin) hold
// only when no reachable value satisfies the positive form.
package match

import (
	"fmt"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/filter"
)

// Matches reports whether doc satisfies every clause.
func Matches(clauses []*filter.Node, doc Getter) (bool, error) {
	root := []any{doc}
	for _, clause := range clauses {
		ok, err := eval(clause, root)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// First returns the index of the first node satisfying all clauses, or -1.
// With no clauses the first node matches.
func First(clauses []*filter.Node, nodes []*domain.Node) (int, error) {
	if len(clauses) == 0 {
		if len(nodes) == 0 {
			return -1, nil
		}
		return 0, nil
	}
	for i, node := range nodes {
		ok, err := Matches(clauses, node)
		if err != nil {
			return -1, fmt.Errorf("match node %s: %w", node.ID, err)
		}
		if ok {
			return i, nil
		}
	}
	return -1, nil
}

// All returns every node satisfying all clauses, in input order. With no
// clauses the input is returned unchanged.
func All(clauses []*filter.Node, nodes []*domain.Node) ([]*domain.Node, error) {
	if len(clauses) == 0 {
		return nodes, nil
	}
	matched := make([]*domain.Node, 0, len(nodes))
	for _, node := range nodes {
		ok, err := Matches(clauses, node)
		if err != nil {
			return nil, fmt.Errorf("match node %s: %w", node.ID, err)
		}
		if ok {
			matched = append(matched, node)
		}
	}
	return matched, nil
}

func eval(n *filter.Node, candidates []any) (bool, error) {
	switch n.Kind {
	case filter.OpField:
		return evalAll(n.Children, descend(candidates, n.Name))
	case filter.OpElemMatch:
		for _, candidate := range candidates {
			if list, ok := AsList(candidate); ok {
				for _, elem := range list {
					ok, err := evalAll(n.Children, []any{elem})
					if err != nil || ok {
						return ok, err
					}
				}
				continue
			}
			ok, err := evalAll(n.Children, []any{candidate})
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case filter.OpEq:
		return matchEq(candidates, n.Value), nil
	case filter.OpNe:
		return !matchEq(candidates, n.Value), nil
	case filter.OpIn:
		return matchIn(candidates, n.Value)
	case filter.OpNin:
		ok, err := matchIn(candidates, n.Value)
		return !ok, err
	case filter.OpGt, filter.OpGte, filter.OpLt, filter.OpLte:
		return matchOrdered(n.Kind, candidates, n.Value), nil
	case filter.OpRegex:
		for _, value := range expand(candidates) {
			if s, ok := value.(string); ok && n.Pattern.MatchString(s) {
				return true, nil
			}
		}
		return false, nil
	case filter.OpExists:
		want, ok := n.Value.(bool)
		if !ok {
			return false, fmt.Errorf("%s expects a boolean, got %T", n.Operator(), n.Value)
		}
		return hasValue(candidates) == want, nil
	case filter.OpUnsupported:
		return false, fmt.Errorf("%w: %s", filter.ErrUnsupportedOperator, n.Name)
	}
	return false, fmt.Errorf("%w: %s", filter.ErrUnsupportedOperator, n.Kind)
}

func evalAll(children []*filter.Node, candidates []any) (bool, error) {
	for _, child := range children {
		ok, err := eval(child, candidates)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// descend collects the named field from each candidate, reaching into lists.
func descend(candidates []any, name string) []any {
	next := make([]any, 0, len(candidates))
	for _, candidate := range candidates {
		if list, ok := AsList(candidate); ok {
			next = append(next, descend(list, name)...)
			continue
		}
		if value, ok := lookup(candidate, name); ok {
			next = append(next, value)
		}
	}
	return next
}

// expand returns the candidates plus the elements of list candidates, so a
// comparison can hit either a whole list or one of its elements.
func expand(candidates []any) []any {
	values := make([]any, 0, len(candidates))
	for _, candidate := range candidates {
		values = append(values, candidate)
		if list, ok := AsList(candidate); ok {
			values = append(values, list...)
		}
	}
	return values
}

func hasValue(candidates []any) bool {
	for _, candidate := range candidates {
		if candidate != nil {
			return true
		}
	}
	return false
}

func matchEq(candidates []any, expected any) bool {
	if expected == nil && !hasValue(candidates) {
		return true
	}
	for _, value := range expand(candidates) {
		if Equal(value, expected) {
			return true
		}
	}
	return false
}

func matchIn(candidates []any, expected any) (bool, error) {
	list, ok := AsList(expected)
	if !ok {
		return false, fmt.Errorf("$in expects a list, got %T", expected)
	}
	for _, want := range list {
		if matchEq(candidates, want) {
			return true, nil
		}
	}
	return false, nil
}

func matchOrdered(kind filter.OpKind, candidates []any, expected any) bool {
	for _, value := range expand(candidates) {
		if _, isList := AsList(value); isList {
			continue
		}
		cmp, ok := Compare(value, expected)
		if !ok {
			continue
		}
		switch kind {
		case filter.OpGt:
			if cmp > 0 {
				return true
			}
		case filter.OpGte:
			if cmp >= 0 {
				return true
			}
		case filter.OpLt:
			if cmp < 0 {
				return true
			}
		case filter.OpLte:
			if cmp <= 0 {
				return true
			}
		}
	}
	return false
}
