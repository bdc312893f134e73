package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/store"
)

const (
	selectNodeSQL     = `SELECT document FROM nodes WHERE id = $1`
	selectNodesSQL    = `SELECT document FROM nodes WHERE id = ANY($1)`
	selectByTypeSQL   = `SELECT document FROM nodes WHERE type = $1 ORDER BY seq`
	selectNodeTypeSQL = `SELECT type FROM nodes WHERE id = $1`
	upsertNodeSQL     = `INSERT INTO nodes (id, type, document) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET document = EXCLUDED.document`
)

// Store implements store.NodeStore on a nodes table.
type Store struct {
	conn *Connection
}

var (
	_ store.NodeStore   = (*Store)(nil)
	_ store.BatchGetter = (*Store)(nil)
	_ store.Writer      = (*Store)(nil)
)

// NewStore creates a store on an open connection.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

// GetNode implements store.NodeStore.
func (s *Store) GetNode(ctx context.Context, id string) (*domain.Node, error) {
	var document []byte
	err := s.conn.Pool.QueryRow(ctx, selectNodeSQL, id).Scan(&document)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	return decodeNode(document)
}

// GetNodes implements store.BatchGetter.
func (s *Store) GetNodes(ctx context.Context, ids []string) ([]*domain.Node, error) {
	rows, err := s.conn.Pool.Query(ctx, selectNodesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes: %w", err)
	}
	found, err := scanNodes(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*domain.Node, len(found))
	for _, node := range found {
		byID[node.ID] = node
	}
	nodes := make([]*domain.Node, len(ids))
	for i, id := range ids {
		nodes[i] = byID[id]
	}
	return nodes, nil
}

// GetNodesByType implements store.NodeStore.
func (s *Store) GetNodesByType(ctx context.Context, typeName string) ([]*domain.Node, error) {
	rows, err := s.conn.Pool.Query(ctx, selectByTypeSQL, typeName)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes of type %s: %w", typeName, err)
	}
	return scanNodes(rows)
}

// Put implements store.Writer. All nodes are written in one transaction.
func (s *Store) Put(ctx context.Context, nodes ...*domain.Node) error {
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		for _, node := range nodes {
			if err := store.ValidateNode(node); err != nil {
				return err
			}

			var existingType string
			err := tx.QueryRow(ctx, selectNodeTypeSQL, node.ID).Scan(&existingType)
			switch {
			case errors.Is(err, pgx.ErrNoRows):
			case err != nil:
				return fmt.Errorf("failed to check node %s: %w", node.ID, err)
			case existingType != node.Internal.Type:
				return fmt.Errorf("%w: node %s cannot change type from %s to %s",
					store.ErrInvalidNode, node.ID, existingType, node.Internal.Type)
			}

			document, err := json.Marshal(node)
			if err != nil {
				return fmt.Errorf("failed to encode node %s: %w", node.ID, err)
			}
			if _, err := tx.Exec(ctx, upsertNodeSQL, node.ID, node.Internal.Type, document); err != nil {
				return fmt.Errorf("failed to store node %s: %w", node.ID, err)
			}
		}
		return nil
	})
}

func scanNodes(rows pgx.Rows) ([]*domain.Node, error) {
	documents, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("failed to scan nodes: %w", err)
	}
	nodes := make([]*domain.Node, 0, len(documents))
	for _, document := range documents {
		node, err := decodeNode(document)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func decodeNode(document []byte) (*domain.Node, error) {
	var node domain.Node
	if err := json.Unmarshal(document, &node); err != nil {
		return nil, fmt.Errorf("failed to decode node document: %w", err)
	}
	return &node, nil
}
