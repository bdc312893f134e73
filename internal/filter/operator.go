// Package filter translates filter specifications into operator trees that
// the matcher evaluates.
package filter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedOperator is returned for leaf operators outside the
	// recognized set.
	ErrUnsupportedOperator = errors.New("unsupported filter operator")
	// ErrInvalidPattern is returned when a regex or glob fails to compile.
	ErrInvalidPattern = errors.New("invalid filter pattern")
)

// OperatorMarker prefixes every translated operator name.
const OperatorMarker = "$"

// OpKind enumerates operator tree node kinds.
type OpKind int

const (
	// OpField descends into the named field and ANDs its children.
	OpField OpKind = iota
	// OpElemMatch holds when any array element satisfies all children.
	OpElemMatch
	OpEq
	OpNe
	OpIn
	OpNin
	OpGt
	OpGte
	OpLt
	OpLte
	OpRegex
	OpExists
	// OpUnsupported records an operator name outside the recognized set.
	OpUnsupported
)

var opNames = map[OpKind]string{
	OpField:     "field",
	OpElemMatch: "$elemMatch",
	OpEq:        "$eq",
	OpNe:        "$ne",
	OpIn:        "$in",
	OpNin:       "$nin",
	OpGt:        "$gt",
	OpGte:       "$gte",
	OpLt:        "$lt",
	OpLte:       "$lte",
	OpRegex:     "$regex",
	OpExists:    "$exists",
}

// leafOps maps filter leaf keys to their operator kind. regex and glob are
// handled separately because their values are compiled.
var leafOps = map[string]OpKind{
	"eq":     OpEq,
	"ne":     OpNe,
	"in":     OpIn,
	"nin":    OpNin,
	"gt":     OpGt,
	"gte":    OpGte,
	"lt":     OpLt,
	"lte":    OpLte,
	"exists": OpExists,
}

// IsLeafOperator reports whether key names a recognized leaf operator.
func IsLeafOperator(key string) bool {
	if _, ok := leafOps[key]; ok {
		return true
	}
	return key == "regex" || key == "glob"
}

func (k OpKind) String() string {
	if name, ok := opNames[k]; ok {
		return name
	}
	if k == OpUnsupported {
		return "unsupported"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Pattern is a compiled string pattern.
type Pattern interface {
	MatchString(s string) bool
	String() string
}

// Node is one operator tree node.
type Node struct {
	Kind OpKind
	// Name is the field name for OpField and the marked operator name
	// ($foo) for OpUnsupported.
	Name     string
	Value    any
	Pattern  Pattern
	Children []*Node
}

// Operator returns the marked operator name of a leaf node.
func (n *Node) Operator() string {
	if n.Kind == OpUnsupported {
		return n.Name
	}
	return n.Kind.String()
}

// IsLeaf reports whether the node compares a value.
func (n *Node) IsLeaf() bool {
	return n.Kind != OpField && n.Kind != OpElemMatch
}

func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	switch n.Kind {
	case OpField, OpElemMatch:
		if n.Kind == OpField {
			b.WriteString(n.Name)
		} else {
			b.WriteString(OpElemMatch.String())
		}
		b.WriteString(":{")
		for i, child := range n.Children {
			if i > 0 {
				b.WriteByte(',')
			}
			child.write(b)
		}
		b.WriteByte('}')
	case OpRegex:
		fmt.Fprintf(b, "%s:%s", n.Operator(), n.Pattern)
	default:
		fmt.Fprintf(b, "%s:%v", n.Operator(), n.Value)
	}
}

// Validate returns ErrUnsupportedOperator for the first unsupported operator
// found in clauses.
func Validate(clauses []*Node) error {
	for _, clause := range clauses {
		if err := validate(clause); err != nil {
			return err
		}
	}
	return nil
}

func validate(n *Node) error {
	if n.Kind == OpUnsupported {
		return fmt.Errorf("%w: %s", ErrUnsupportedOperator, n.Name)
	}
	for _, child := range n.Children {
		if err := validate(child); err != nil {
			return err
		}
	}
	return nil
}
