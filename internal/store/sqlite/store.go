// Package sqlite is a node store backed by an SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/store"
)

const ddl = `
CREATE TABLE IF NOT EXISTS nodes (
    seq      INTEGER PRIMARY KEY AUTOINCREMENT,
    id       TEXT NOT NULL UNIQUE,
    type     TEXT NOT NULL,
    document TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS nodes_type_seq_idx ON nodes (type, seq);
`

const (
	selectNodeSQL     = `SELECT document FROM nodes WHERE id = ?`
	selectByTypeSQL   = `SELECT document FROM nodes WHERE type = ? ORDER BY seq`
	selectNodeTypeSQL = `SELECT type FROM nodes WHERE id = ?`
	upsertNodeSQL     = `INSERT INTO nodes (id, type, document) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET document = excluded.document`
)

// Store implements store.NodeStore on an SQLite nodes table.
type Store struct {
	db *sql.DB
}

var (
	_ store.NodeStore   = (*Store)(nil)
	_ store.BatchGetter = (*Store)(nil)
	_ store.Writer      = (*Store)(nil)
)

// Open opens (creating if needed) the database at path. ":memory:" keeps the
// database in memory for the lifetime of the store.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" && !strings.Contains(dsn, "?") {
		dsn += "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create nodes table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetNode implements store.NodeStore.
func (s *Store) GetNode(ctx context.Context, id string) (*domain.Node, error) {
	var document string
	err := s.db.QueryRowContext(ctx, selectNodeSQL, id).Scan(&document)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node %s: %w", id, err)
	}
	return decodeNode(document)
}

// GetNodes implements store.BatchGetter.
func (s *Store) GetNodes(ctx context.Context, ids []string) ([]*domain.Node, error) {
	nodes := make([]*domain.Node, len(ids))
	if len(ids) == 0 {
		return nodes, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, "SELECT document FROM nodes WHERE id IN ("+placeholders+")", args...)
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
	for i, id := range ids {
		nodes[i] = byID[id]
	}
	return nodes, nil
}

// GetNodesByType implements store.NodeStore.
func (s *Store) GetNodesByType(ctx context.Context, typeName string) ([]*domain.Node, error) {
	rows, err := s.db.QueryContext(ctx, selectByTypeSQL, typeName)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes of type %s: %w", typeName, err)
	}
	return scanNodes(rows)
}

// Put implements store.Writer.
func (s *Store) Put(ctx context.Context, nodes ...*domain.Node) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, node := range nodes {
		if err := store.ValidateNode(node); err != nil {
			return err
		}

		var existingType string
		err := tx.QueryRowContext(ctx, selectNodeTypeSQL, node.ID).Scan(&existingType)
		switch {
		case errors.Is(err, sql.ErrNoRows):
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
		if _, err := tx.ExecContext(ctx, upsertNodeSQL, node.ID, node.Internal.Type, string(document)); err != nil {
			return fmt.Errorf("failed to store node %s: %w", node.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func scanNodes(rows *sql.Rows) ([]*domain.Node, error) {
	defer rows.Close()
	var nodes []*domain.Node
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		node, err := decodeNode(document)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read nodes: %w", err)
	}
	return nodes, nil
}

func decodeNode(document string) (*domain.Node, error) {
	var node domain.Node
	if err := json.Unmarshal([]byte(document), &node); err != nil {
		return nil, fmt.Errorf("failed to decode node document: %w", err)
	}
	return &node, nil
}
