// Package engine runs node queries: it translates the filter, resolves the
// fields the query depends on, matches, sorts and assembles the result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/filter"
	"github.com/rpattn/nodequery/internal/nodeloader"
	"github.com/rpattn/nodequery/internal/queryfields"
	"github.com/rpattn/nodequery/internal/resolve"
	"github.com/rpattn/nodequery/internal/schema"
	"github.com/rpattn/nodequery/internal/store"
)

// ErrUnknownType is returned when the queried type is not registered.
var ErrUnknownType = errors.New("unknown node type")

const tracerName = "github.com/rpattn/nodequery/internal/engine"

// Query describes one engine invocation.
type Query struct {
	Args domain.QueryArgs
	// Type is the queried node type.
	Type string
	// FirstOnly requests at most one node.
	FirstOnly bool
	// AllowedTypeNames restricts the types the id fast path may return.
	// Empty means only Type.
	AllowedTypeNames []string
	// Nodes overrides the candidate set; nil means every node of Type.
	Nodes []*domain.Node
}

// Result is the outcome of a query. NoResult is only set for collection
// queries that matched nothing.
type Result struct {
	Nodes    []*domain.Node
	NoResult bool
}

// First returns the first node of the result, or nil.
func (r Result) First() *domain.Node {
	if len(r.Nodes) == 0 {
		return nil
	}
	return r.Nodes[0]
}

// Engine executes queries against a node store and schema registry.
type Engine struct {
	store       store.NodeStore
	registry    *schema.Registry
	logger      *slog.Logger
	tracer      trace.Tracer
	concurrency int
	batch       nodeloader.Options
	middleware  []resolve.Middleware
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithTracerProvider sets the provider spans are created from.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithConcurrency bounds concurrent node resolution.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = n }
}

// WithBatchOptions tunes the per-query node loader.
func WithBatchOptions(opts nodeloader.Options) Option {
	return func(e *Engine) { e.batch = opts }
}

// WithMiddleware wraps every field resolver call.
func WithMiddleware(mw ...resolve.Middleware) Option {
	return func(e *Engine) { e.middleware = append(e.middleware, mw...) }
}

// New creates an engine. registry may be nil, in which case every field is
// read from the stored documents.
func New(s store.NodeStore, registry *schema.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:       s,
		registry:    registry,
		logger:      slog.Default(),
		tracer:      noop.NewTracerProvider().Tracer(tracerName),
		concurrency: resolve.DefaultConcurrency,
		batch:       nodeloader.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes q.
func (e *Engine) Run(ctx context.Context, q Query) (Result, error) {
	queryID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "nodequery.Run", trace.WithAttributes(
		attribute.String("nodequery.query_id", queryID),
		attribute.String("nodequery.type", q.Type),
		attribute.Bool("nodequery.first_only", q.FirstOnly),
	))
	defer span.End()

	result, err := e.run(ctx, queryID, q, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.DebugContext(ctx, "query failed", "query_id", queryID, "type", q.Type, "error", err)
		return Result{}, err
	}
	return result, nil
}

func (e *Engine) run(ctx context.Context, queryID string, q Query, span trace.Span) (Result, error) {
	if q.Type == "" {
		return Result{}, fmt.Errorf("%w: type is required", ErrUnknownType)
	}
	if e.registry != nil {
		if _, ok := e.registry.Type(q.Type); !ok {
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownType, q.Type)
		}
	}

	clauses, err := filter.Translate(q.Args.Filter)
	if err != nil {
		return Result{}, fmt.Errorf("failed to translate filter: %w", err)
	}
	if err := filter.Validate(clauses); err != nil {
		return Result{}, err
	}
	fields := queryfields.Extract(q.Args)

	loader := nodeloader.New(e.store, e.batch)
	resolver := resolve.New(e.registry, loader, resolve.Options{
		Concurrency: e.concurrency,
		Middleware:  e.middleware,
		Tracer:      e.tracer,
	})

	if id, ok := eqIDFastPath(q.FirstOnly, fields, clauses); ok && !e.resolvesID(q.Type) {
		span.SetAttributes(attribute.Bool("nodequery.fast_path", true))
		e.logger.DebugContext(ctx, "running id lookup", "query_id", queryID, "type", q.Type, "id", id)
		return e.runByID(ctx, resolver, q, id, fields)
	}

	candidates := q.Nodes
	if candidates == nil {
		candidates, err = e.store.GetNodesByType(ctx, q.Type)
		if err != nil {
			return Result{}, fmt.Errorf("failed to list nodes of type %s: %w", q.Type, err)
		}
	}
	span.SetAttributes(attribute.Int("nodequery.candidates", len(candidates)))

	resolved, err := resolver.ResolveNodes(ctx, candidates, q.Type, fields)
	if err != nil {
		return Result{}, err
	}

	result, err := assemble(q, clauses, resolved)
	if err != nil {
		return Result{}, err
	}
	e.logger.DebugContext(ctx, "query finished",
		"query_id", queryID,
		"type", q.Type,
		"candidates", len(candidates),
		"matches", len(result.Nodes),
		"no_result", result.NoResult,
	)
	return result, nil
}
