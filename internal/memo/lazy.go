package memo

import (
	"context"
	"sync"
)

// Lazy computes a value on first use and keeps it. Failed computations
// caused by cancellation are retried on the next call.
type Lazy[T any] struct {
	compute func(ctx context.Context) (T, error)

	mu    sync.Mutex
	done  bool
	value T
	err   error
}

// NewLazy wraps compute.
func NewLazy[T any](compute func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{compute: compute}
}

// Get returns the value, computing it if needed.
func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done {
		return l.value, l.err
	}
	v, err := l.compute(ctx)
	if isCancellation(err) {
		return v, err
	}
	l.value, l.err, l.done = v, err, true
	return v, err
}

// Computed reports whether Get has produced a value.
func (l *Lazy[T]) Computed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}
