package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/rpattn/nodequery/internal/domain"
)

// Memory is a NodeStore held in process memory.
type Memory struct {
	mu     sync.RWMutex
	nodes  map[string]*domain.Node
	byType map[string][]string
}

// NewMemory creates a memory store seeded with nodes.
func NewMemory(nodes ...*domain.Node) (*Memory, error) {
	m := &Memory{
		nodes:  make(map[string]*domain.Node),
		byType: make(map[string][]string),
	}
	if err := m.Put(context.Background(), nodes...); err != nil {
		return nil, err
	}
	return m, nil
}

// Put stores nodes. Replacing a node keeps its original position in the
// type order; ids are unique in the store, so a node that changes type is
// rejected.
func (m *Memory) Put(_ context.Context, nodes ...*domain.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, node := range nodes {
		if err := ValidateNode(node); err != nil {
			return err
		}
		if existing, ok := m.nodes[node.ID]; ok {
			if existing.Internal.Type != node.Internal.Type {
				return fmt.Errorf("%w: node %s cannot change type from %s to %s",
					ErrInvalidNode, node.ID, existing.Internal.Type, node.Internal.Type)
			}
			m.nodes[node.ID] = node
			continue
		}
		m.nodes[node.ID] = node
		m.byType[node.Internal.Type] = append(m.byType[node.Internal.Type], node.ID)
	}
	return nil
}

// GetNode implements NodeStore.
func (m *Memory) GetNode(_ context.Context, id string) (*domain.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.nodes[id], nil
}

// GetNodes implements BatchGetter.
func (m *Memory) GetNodes(_ context.Context, ids []string) ([]*domain.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	nodes := make([]*domain.Node, len(ids))
	for i, id := range ids {
		nodes[i] = m.nodes[id]
	}
	return nodes, nil
}

// GetNodesByType implements NodeStore.
func (m *Memory) GetNodesByType(_ context.Context, typeName string) ([]*domain.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byType[typeName]
	nodes := make([]*domain.Node, 0, len(ids))
	for _, id := range ids {
		nodes = append(nodes, m.nodes[id])
	}
	return nodes, nil
}

// Len returns the number of stored nodes.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}
