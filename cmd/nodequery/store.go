package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rpattn/nodequery/internal/config"
	"github.com/rpattn/nodequery/internal/fixtures"
	"github.com/rpattn/nodequery/internal/store"
	"github.com/rpattn/nodequery/internal/store/postgres"
	"github.com/rpattn/nodequery/internal/store/sqlite"
)

// openedStore is a node store that can be seeded and closed.
type openedStore struct {
	store.NodeStore
	store.Writer
	close func()
}

func (s *openedStore) Close() {
	if s.close != nil {
		s.close()
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (*openedStore, error) {
	var opened *openedStore
	switch cfg.Driver {
	case config.DriverMemory:
		mem, err := store.NewMemory()
		if err != nil {
			return nil, err
		}
		opened = &openedStore{NodeStore: mem, Writer: mem}
	case config.DriverSQLite:
		path := cfg.DSN
		if path == "" {
			path = ":memory:"
		}
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, err
		}
		opened = &openedStore{NodeStore: db, Writer: db, close: func() { _ = db.Close() }}
	case config.DriverPostgres:
		pgConfig := postgres.DefaultConfig()
		pgConfig.DSN = cfg.DSN
		if err := postgres.RunMigrations(pgConfig); err != nil {
			return nil, err
		}
		conn, err := postgres.NewConnection(ctx, pgConfig)
		if err != nil {
			return nil, err
		}
		pg := postgres.NewStore(conn)
		opened = &openedStore{NodeStore: pg, Writer: pg, close: conn.Close}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}

	if len(cfg.Fixtures) > 0 {
		count, err := fixtures.Seed(ctx, opened.Writer, cfg.Fixtures...)
		if err != nil {
			opened.Close()
			return nil, err
		}
		logger.Debug("loaded fixtures", "nodes", count, "files", len(cfg.Fixtures))
	}
	return opened, nil
}
