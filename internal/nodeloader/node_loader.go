// Package nodeloader batches node lookups made by field resolvers during a
// single query.
package nodeloader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/store"
)

// Options tunes batching.
type Options struct {
	// Wait is how long the loader collects keys before dispatching a batch.
	Wait time.Duration
	// BatchCapacity caps the number of keys per batch; zero means no cap.
	BatchCapacity int
}

// DefaultOptions returns the batching defaults.
func DefaultOptions() Options {
	return Options{Wait: 2 * time.Millisecond, BatchCapacity: 100}
}

// Loader resolves node ids through a dataloader and memoizes GetNodesByType
// for the loader's lifetime. It implements schema.NodeLookup.
type Loader struct {
	store  store.NodeStore
	loader *dataloader.Loader

	mu     sync.Mutex
	byType map[string]*typeResult
}

type typeResult struct {
	mu    sync.Mutex
	done  bool
	nodes []*domain.Node
	err   error
}

// New creates a loader over s. One loader serves one query.
func New(s store.NodeStore, opts Options) *Loader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()

		nodes, err := store.GetNodes(ctx, s, ids)
		if err == nil && len(nodes) != len(ids) {
			err = fmt.Errorf("node store returned %d nodes for %d ids", len(nodes), len(ids))
		}
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Build results in the same order as keys
		results := make([]*dataloader.Result, len(keys))
		for i, node := range nodes {
			if node == nil {
				results[i] = &dataloader.Result{Data: nil}
				continue
			}
			results[i] = &dataloader.Result{Data: node}
		}
		return results
	}

	loaderOpts := []dataloader.Option{dataloader.WithWait(opts.Wait)}
	if opts.BatchCapacity > 0 {
		loaderOpts = append(loaderOpts, dataloader.WithBatchCapacity(opts.BatchCapacity))
	}

	return &Loader{
		store:  s,
		loader: dataloader.NewBatchedLoader(batchFn, loaderOpts...),
		byType: make(map[string]*typeResult),
	}
}

// Load returns the node with id, or nil when it does not exist.
func (l *Loader) Load(ctx context.Context, id string) (*domain.Node, error) {
	data, err := l.loader.Load(ctx, dataloader.StringKey(id))()
	if err != nil {
		return nil, fmt.Errorf("failed to load node %s: %w", id, err)
	}
	return asNode(data)
}

// LoadMany returns one entry per id, nil where the node does not exist.
func (l *Loader) LoadMany(ctx context.Context, ids []string) ([]*domain.Node, error) {
	if len(ids) == 0 {
		return []*domain.Node{}, nil
	}
	data, errs := l.loader.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))()
	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to load node %s: %w", ids[i], err)
		}
	}

	nodes := make([]*domain.Node, len(ids))
	for i, raw := range data {
		node, err := asNode(raw)
		if err != nil {
			return nil, err
		}
		nodes[i] = node
	}
	return nodes, nil
}

// ByType returns the nodes of typeName, reading the store once per type.
// A read that fails because the caller's context ended is not remembered.
func (l *Loader) ByType(ctx context.Context, typeName string) ([]*domain.Node, error) {
	l.mu.Lock()
	result, ok := l.byType[typeName]
	if !ok {
		result = &typeResult{}
		l.byType[typeName] = result
	}
	l.mu.Unlock()

	result.mu.Lock()
	defer result.mu.Unlock()
	if result.done {
		return result.nodes, result.err
	}
	nodes, err := l.store.GetNodesByType(ctx, typeName)
	if err != nil && ctx.Err() != nil {
		return nil, err
	}
	result.nodes, result.err, result.done = nodes, err, true
	return nodes, err
}

func asNode(data any) (*domain.Node, error) {
	if data == nil {
		return nil, nil
	}
	node, ok := data.(*domain.Node)
	if !ok {
		return nil, fmt.Errorf("unexpected type %T for node", data)
	}
	return node, nil
}
