package nodeloader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/store"
)

type countingStore struct {
	*store.Memory
	mu          sync.Mutex
	batches     [][]string
	byTypeCalls int
	err         error
}

func (s *countingStore) GetNodes(ctx context.Context, ids []string) ([]*domain.Node, error) {
	s.mu.Lock()
	s.batches = append(s.batches, append([]string(nil), ids...))
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.Memory.GetNodes(ctx, ids)
}

func (s *countingStore) GetNodesByType(ctx context.Context, typeName string) ([]*domain.Node, error) {
	s.mu.Lock()
	s.byTypeCalls++
	s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Memory.GetNodesByType(ctx, typeName)
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()
	m, err := store.NewMemory(
		domain.NewNode("a1", "Author", map[string]any{"name": "kim"}),
		domain.NewNode("a2", "Author", map[string]any{"name": "lee"}),
		domain.NewNode("a3", "Author", map[string]any{"name": "park"}),
	)
	require.NoError(t, err)
	return &countingStore{Memory: m}
}

func TestLoaderBatchesConcurrentLoads(t *testing.T) {
	s := newCountingStore(t)
	loader := New(s, Options{Wait: 50 * time.Millisecond})

	ids := []string{"a3", "a1", "missing", "a2"}
	results := make([]*domain.Node, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			node, err := loader.Load(context.Background(), id)
			assert.NoError(t, err)
			results[i] = node
		}()
	}
	wg.Wait()

	assert.Equal(t, "a3", results[0].ID)
	assert.Equal(t, "a1", results[1].ID)
	assert.Nil(t, results[2])
	assert.Equal(t, "a2", results[3].ID)
	assert.Len(t, s.batches, 1)
	assert.ElementsMatch(t, ids, s.batches[0])
}

func TestLoaderLoadManyKeepsOrder(t *testing.T) {
	s := newCountingStore(t)
	loader := New(s, DefaultOptions())

	nodes, err := loader.LoadMany(context.Background(), []string{"a2", "nope", "a1"})
	require.NoError(t, err)
	require.Len(t, nodes, 3)
	assert.Equal(t, "a2", nodes[0].ID)
	assert.Nil(t, nodes[1])
	assert.Equal(t, "a1", nodes[2].ID)

	empty, err := loader.LoadMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLoaderPropagatesErrors(t *testing.T) {
	s := newCountingStore(t)
	s.err = errors.New("boom")
	loader := New(s, DefaultOptions())

	_, err := loader.Load(context.Background(), "a1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestLoaderByTypeReadsOnce(t *testing.T) {
	s := newCountingStore(t)
	loader := New(s, DefaultOptions())

	for range 3 {
		nodes, err := loader.ByType(context.Background(), "Author")
		require.NoError(t, err)
		assert.Len(t, nodes, 3)
	}
	assert.Equal(t, 1, s.byTypeCalls)
}

func TestLoaderByTypeRetriesAfterCancelledCaller(t *testing.T) {
	s := newCountingStore(t)
	loader := New(s, DefaultOptions())

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := loader.ByType(cancelled, "Author")
	require.ErrorIs(t, err, context.Canceled)

	nodes, err := loader.ByType(context.Background(), "Author")
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	nodes, err = loader.ByType(context.Background(), "Author")
	require.NoError(t, err)
	assert.Len(t, nodes, 3)
	assert.Equal(t, 2, s.byTypeCalls)
}

func TestLoaderByTypeRemembersStoreErrors(t *testing.T) {
	s := &failingTypeStore{countingStore: newCountingStore(t), err: errors.New("disk gone")}
	loader := New(s, DefaultOptions())

	for range 2 {
		_, err := loader.ByType(context.Background(), "Author")
		require.ErrorIs(t, err, s.err)
	}
	assert.Equal(t, 1, s.byTypeCalls)
}

type failingTypeStore struct {
	*countingStore
	err error
}

func (s *failingTypeStore) GetNodesByType(ctx context.Context, typeName string) ([]*domain.Node, error) {
	if _, err := s.countingStore.GetNodesByType(ctx, typeName); err != nil {
		return nil, err
	}
	return nil, s.err
}
