// Package store defines the node store contract consumed by the engine and
// an in-memory implementation.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/nodequery/internal/domain"
)

// ErrInvalidNode is returned when a node cannot be stored.
var ErrInvalidNode = errors.New("invalid node")

// NodeStore is the backing collection of nodes.
type NodeStore interface {
	// GetNode returns nil and no error when no node has the id.
	GetNode(ctx context.Context, id string) (*domain.Node, error)
	// GetNodesByType returns the nodes of a type in insertion order.
	GetNodesByType(ctx context.Context, typeName string) ([]*domain.Node, error)
}

// BatchGetter is implemented by stores that look up many ids at once. The
// result has one entry per id, nil where the id is unknown.
type BatchGetter interface {
	GetNodes(ctx context.Context, ids []string) ([]*domain.Node, error)
}

// Writer is implemented by stores that can be seeded with nodes.
type Writer interface {
	Put(ctx context.Context, nodes ...*domain.Node) error
}

// GetNodes looks ids up through BatchGetter when s supports it and falls
// back to one GetNode call per id.
func GetNodes(ctx context.Context, s NodeStore, ids []string) ([]*domain.Node, error) {
	if batch, ok := s.(BatchGetter); ok {
		return batch.GetNodes(ctx, ids)
	}
	nodes := make([]*domain.Node, len(ids))
	for i, id := range ids {
		node, err := s.GetNode(ctx, id)
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}
	return nodes, nil
}

// ValidateNode checks that node can be stored.
func ValidateNode(node *domain.Node) error {
	if node == nil {
		return fmt.Errorf("%w: node is nil", ErrInvalidNode)
	}
	if node.ID == "" {
		return fmt.Errorf("%w: node id is empty", ErrInvalidNode)
	}
	if node.Internal.Type == "" {
		return fmt.Errorf("%w: node %s has no internal.type", ErrInvalidNode, node.ID)
	}
	return nil
}
