// Package memo is a small incremental computation engine. Results are cached
// per Key, concurrent computations of one key are collapsed, and every cell
// remembers which cells and inputs it read so that changing an input only
// drops the cells that depend on it.
package memo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxEntries bounds the number of cached cells.
const DefaultMaxEntries = 100_000

// Engine stores memoized cells and their dependency edges.
type Engine struct {
	logger  *zap.Logger
	metrics *Metrics
	group   singleflight.Group

	mu         sync.Mutex
	cells      *lru.Cache
	dependents map[Key]map[Key]struct{}
	epoch      uint64
}

type cell struct {
	value any
	err   error
}

type options struct {
	logger     *zap.Logger
	maxEntries int
	registerer prometheus.Registerer
}

// Option configures an Engine.
type Option func(*options)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMaxEntries bounds the cell cache.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// WithRegisterer registers the engine metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// NewEngine creates an engine.
func NewEngine(opts ...Option) (*Engine, error) {
	o := options{
		logger:     zap.NewNop(),
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(&o)
	}

	cells, err := lru.New(o.maxEntries)
	if err != nil {
		return nil, fmt.Errorf("creating memo cache: %w", err)
	}

	return &Engine{
		logger:     o.logger,
		metrics:    newMetrics(o.registerer),
		cells:      cells,
		dependents: make(map[Key]map[Key]struct{}),
	}, nil
}

// MustEngine is NewEngine for callers with static options.
func MustEngine(opts ...Option) *Engine {
	e, err := NewEngine(opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Metrics returns the engine counters.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// Len returns the number of cached cells.
func (e *Engine) Len() int {
	return e.cells.Len()
}

// Cached reports whether a value for key is currently cached.
func (e *Engine) Cached(key Key) bool {
	return e.cells.Contains(key)
}

// Get returns the memoized result of compute for key, computing it at most
// once at a time. Calls made from inside another computation record a
// dependency of that computation on key.
func Get[T any](ctx context.Context, e *Engine, key Key, compute func(ctx context.Context) (T, error)) (T, error) {
	recordDependency(ctx, key)

	v, err := e.get(ctx, key, func(ctx context.Context) (any, error) {
		return compute(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if v == nil {
		var zero T
		return zero, nil
	}
	return v.(T), nil
}

func (e *Engine) get(ctx context.Context, key Key, compute func(context.Context) (any, error)) (any, error) {
	if c, ok := e.lookup(key); ok {
		e.metrics.Hits.Inc()
		return c.value, c.err
	}
	e.metrics.Misses.Inc()

	v, err, _ := e.group.Do(string(key), func() (any, error) {
		if c, ok := e.lookup(key); ok {
			return c.value, c.err
		}

		e.mu.Lock()
		epoch := e.epoch
		e.mu.Unlock()

		t := &tracker{deps: make(map[Key]struct{})}
		e.metrics.Computations.Inc()
		e.logger.Debug("computing cell", zap.String("key", string(key)))

		value, err := compute(context.WithValue(ctx, trackerKey{}, t))
		if isCancellation(err) {
			return value, err
		}

		e.mu.Lock()
		defer e.mu.Unlock()

		t.mu.Lock()
		for dep := range t.deps {
			set, ok := e.dependents[dep]
			if !ok {
				set = make(map[Key]struct{})
				e.dependents[dep] = set
			}
			set[key] = struct{}{}
		}
		t.mu.Unlock()

		// An input changed while computing; the result may be stale.
		if e.epoch != epoch {
			return value, err
		}
		if evicted := e.cells.Add(key, &cell{value: value, err: err}); evicted {
			e.metrics.Evictions.Inc()
		}
		return value, err
	})
	return v, err
}

func (e *Engine) lookup(key Key) (*cell, bool) {
	c, ok := e.cells.Get(key)
	if !ok {
		return nil, false
	}
	return c.(*cell), true
}

// Invalidate drops the cell for key and every cell that transitively read it.
func (e *Engine) Invalidate(key Key) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.epoch++
	dropped := 0
	seen := make(map[Key]struct{})
	stack := []Key{key}
	for len(stack) > 0 {
		k := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}

		if e.cells.Remove(k) {
			dropped++
			e.metrics.Invalidations.Inc()
		}
		e.group.Forget(string(k))
		for dep := range e.dependents[k] {
			stack = append(stack, dep)
		}
		delete(e.dependents, k)
	}

	e.logger.Debug("invalidated cells", zap.String("key", string(key)), zap.Int("dropped", dropped))
}

// Purge drops every cell.
func (e *Engine) Purge() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.epoch++
	e.cells.Purge()
	e.dependents = make(map[Key]map[Key]struct{})
}

type trackerKey struct{}

type tracker struct {
	mu   sync.Mutex
	deps map[Key]struct{}
}

func recordDependency(ctx context.Context, key Key) {
	t, ok := ctx.Value(trackerKey{}).(*tracker)
	if !ok {
		return
	}
	t.mu.Lock()
	t.deps[key] = struct{}{}
	t.mu.Unlock()
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
