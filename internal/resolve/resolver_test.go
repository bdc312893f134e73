package resolve

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/schema"
)

func postNodes(n int) []*domain.Node {
	nodes := make([]*domain.Node, n)
	for i := range nodes {
		nodes[i] = domain.NewNode(fmt.Sprintf("p%d", i), "Post", map[string]any{"index": i})
	}
	return nodes
}

func TestResolveNodesKeepsInputOrder(t *testing.T) {
	const n = 8
	var finished []int
	var mu sync.Mutex

	registry := schema.NewRegistry(schema.NewType("Post", &schema.Field{
		Name: "slow",
		Resolve: func(ctx context.Context, p schema.ResolveParams) (any, error) {
			index, _ := schema.FieldValue(p.Source, "index")
			i := index.(int)
			// later nodes finish first
			time.Sleep(time.Duration(n-i) * 5 * time.Millisecond)
			mu.Lock()
			finished = append(finished, i)
			mu.Unlock()
			return fmt.Sprintf("value-%d", i), nil
		},
	}))

	r := New(registry, nil, Options{Concurrency: n})
	nodes := postNodes(n)
	resolved, err := r.ResolveNodes(context.Background(), nodes, "Post", domain.FieldSet{"slow": {}})
	require.NoError(t, err)
	require.Len(t, resolved, n)

	for i, node := range resolved {
		assert.Equal(t, nodes[i].ID, node.ID)
		assert.Equal(t, fmt.Sprintf("value-%d", i), node.Fields["slow"])
		assert.NotContains(t, nodes[i].Fields, "slow")
	}
	require.Len(t, finished, n)
	assert.Equal(t, n-1, finished[0])
}

func TestResolveNodesFailsBatch(t *testing.T) {
	registry := schema.NewRegistry(schema.NewType("Post", &schema.Field{
		Name: "broken",
		Resolve: func(ctx context.Context, p schema.ResolveParams) (any, error) {
			index, _ := schema.FieldValue(p.Source, "index")
			if index.(int) == 2 {
				return nil, errors.New("boom")
			}
			return "ok", nil
		},
	}))

	r := New(registry, nil, Options{})
	resolved, err := r.ResolveNodes(context.Background(), postNodes(4), "Post", domain.FieldSet{"broken": {}})
	require.Error(t, err)
	assert.Nil(t, resolved)
	assert.Contains(t, err.Error(), "p2")
	assert.Contains(t, err.Error(), "Post.broken")
	assert.Contains(t, err.Error(), "boom")
}

func TestResolveNodesWithoutFields(t *testing.T) {
	nodes := postNodes(3)
	r := New(nil, nil, Options{})
	resolved, err := r.ResolveNodes(context.Background(), nodes, "Post", nil)
	require.NoError(t, err)
	assert.Equal(t, nodes, resolved)
}

func TestResolveNodesStoredValues(t *testing.T) {
	node := domain.NewNode("p1", "Post", map[string]any{"title": "Hello"})
	r := New(nil, nil, Options{})

	resolved, err := r.ResolveNodes(context.Background(), []*domain.Node{node}, "Post", domain.FieldSet{"title": {}, "missing": {}, "id": {}})
	require.NoError(t, err)
	assert.Equal(t, "Hello", resolved[0].Fields["title"])
	assert.NotContains(t, resolved[0].Fields, "missing")
	assert.NotContains(t, resolved[0].Fields, "id")
}

func TestResolveNodesHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	registry := schema.NewRegistry(schema.NewType("Post", &schema.Field{
		Name: "x",
		Resolve: func(ctx context.Context, p schema.ResolveParams) (any, error) {
			calls.Add(1)
			return 1, nil
		},
	}))
	r := New(registry, nil, Options{Concurrency: 1})
	_, err := r.ResolveNodes(ctx, postNodes(5), "Post", domain.FieldSet{"x": {}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls.Load())
}

func TestResolveNestedFields(t *testing.T) {
	author := domain.NewNode("a1", "Author", map[string]any{"first": "Kim", "last": "Lee"})
	fullName := func(ctx context.Context, p schema.ResolveParams) (any, error) {
		first, _ := schema.FieldValue(p.Source, "first")
		last, _ := schema.FieldValue(p.Source, "last")
		return fmt.Sprintf("%v %v", first, last), nil
	}
	slug := func(ctx context.Context, p schema.ResolveParams) (any, error) {
		title, _ := schema.FieldValue(p.Source, "title")
		return fmt.Sprintf("/%v", title), nil
	}

	registry := schema.NewRegistry(
		schema.NewType("Post",
			&schema.Field{Name: "author", Type: schema.TypeRef{Name: "Author"}, Resolve: func(ctx context.Context, p schema.ResolveParams) (any, error) {
				return author, nil
			}},
			&schema.Field{Name: "sections", Type: schema.TypeRef{Name: "Section", List: true}},
			&schema.Field{Name: "meta", Type: schema.TypeRef{Name: "Meta"}},
			&schema.Field{Name: "nobody", Type: schema.TypeRef{Name: "Author"}, Resolve: func(ctx context.Context, p schema.ResolveParams) (any, error) {
				return (*domain.Node)(nil), nil
			}},
		),
		schema.NewType("Author", &schema.Field{Name: "fullName", Resolve: fullName}),
		schema.NewType("Section", &schema.Field{Name: "slug", Resolve: slug}),
		schema.NewType("Meta", &schema.Field{Name: "hidden", Resolve: func(ctx context.Context, p schema.ResolveParams) (any, error) {
			return nil, nil
		}}),
	)

	post := domain.NewNode("p1", "Post", map[string]any{
		"sections": []any{map[string]any{"title": "intro"}, map[string]any{"title": "end"}},
		"meta":     map[string]any{"hidden": "stored", "kept": 1},
	})

	r := New(registry, nil, Options{})
	resolved, err := r.ResolveNode(context.Background(), post, "Post", domain.FieldSet{
		"author":   {"fullName": {}},
		"sections": {"slug": {}},
		"meta":     {"hidden": {}},
		"nobody":   {"fullName": {}},
	})
	require.NoError(t, err)

	linked, ok := resolved.Fields["author"].(*domain.Node)
	require.True(t, ok)
	assert.Equal(t, "Kim Lee", linked.Fields["fullName"])
	assert.NotContains(t, author.Fields, "fullName")

	assert.Equal(t, []any{
		map[string]any{"title": "intro", "slug": "/intro"},
		map[string]any{"title": "end", "slug": "/end"},
	}, resolved.Fields["sections"])
	assert.Equal(t, map[string]any{"kept": 1}, resolved.Fields["meta"])
	assert.NotContains(t, resolved.Fields, "nobody")
}

func TestResolveNestedTypedSlices(t *testing.T) {
	kim := domain.NewNode("a1", "Author", map[string]any{"name": "kim"})
	lee := domain.NewNode("a2", "Author", map[string]any{"name": "lee"})
	upper := func(ctx context.Context, p schema.ResolveParams) (any, error) {
		name, _ := schema.FieldValue(p.Source, "name")
		return strings.ToUpper(name.(string)), nil
	}

	registry := schema.NewRegistry(
		schema.NewType("Post",
			&schema.Field{Name: "authors", Type: schema.TypeRef{Name: "Author", List: true}, Resolve: func(ctx context.Context, p schema.ResolveParams) (any, error) {
				return []*domain.Node{kim, nil, lee}, nil
			}},
			&schema.Field{Name: "blocks", Type: schema.TypeRef{Name: "Block", List: true}},
		),
		schema.NewType("Author", &schema.Field{Name: "upper", Resolve: upper}),
		schema.NewType("Block", &schema.Field{Name: "size", Resolve: func(ctx context.Context, p schema.ResolveParams) (any, error) {
			text, _ := schema.FieldValue(p.Source, "text")
			return len(text.(string)), nil
		}}),
	)

	post := domain.NewNode("p1", "Post", map[string]any{
		"blocks": []map[string]any{{"text": "ab"}, {"text": "abcd"}},
	})

	r := New(registry, nil, Options{})
	resolved, err := r.ResolveNode(context.Background(), post, "Post", domain.FieldSet{
		"authors": {"upper": {}},
		"blocks":  {"size": {}},
	})
	require.NoError(t, err)

	authors, ok := resolved.Fields["authors"].([]any)
	require.True(t, ok, "got %T", resolved.Fields["authors"])
	require.Len(t, authors, 2)
	assert.Equal(t, "KIM", authors[0].(*domain.Node).Fields["upper"])
	assert.Equal(t, "LEE", authors[1].(*domain.Node).Fields["upper"])

	assert.Equal(t, []any{
		map[string]any{"text": "ab", "size": 2},
		map[string]any{"text": "abcd", "size": 4},
	}, resolved.Fields["blocks"])
}

func TestResolveMiddlewareOrder(t *testing.T) {
	var calls []string
	var mu sync.Mutex
	record := func(name string) Middleware {
		return func(typeName, fieldName string, next schema.ResolveFunc) schema.ResolveFunc {
			return func(ctx context.Context, p schema.ResolveParams) (any, error) {
				mu.Lock()
				calls = append(calls, name+":"+typeName+"."+fieldName)
				mu.Unlock()
				return next(ctx, p)
			}
		}
	}

	registry := schema.NewRegistry(schema.NewType("Post", &schema.Field{
		Name:    "x",
		Resolve: func(ctx context.Context, p schema.ResolveParams) (any, error) { return 1, nil },
	}))
	r := New(registry, nil, Options{Middleware: []Middleware{record("outer"), record("inner")}})
	_, err := r.ResolveNodes(context.Background(), postNodes(1), "Post", domain.FieldSet{"x": {}, "index": {}})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer:Post.x", "inner:Post.x"}, calls)
}

func TestResolveNodesSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	r := New(nil, nil, Options{Tracer: tp.Tracer("test")})
	_, err := r.ResolveNodes(context.Background(), postNodes(2), "Post", domain.FieldSet{"index": {}})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "nodequery.ResolveNodes", spans[0].Name())
}
