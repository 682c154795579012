package memo

import (
	"context"
	"sync"
)

// Input is a mutable value read by computations. Setting it invalidates
// every cell that read it.
type Input[T any] struct {
	engine *Engine
	key    Key

	mu    sync.RWMutex
	value T
}

// NewInput creates an input identified by key.
func NewInput[T any](e *Engine, key Key, value T) *Input[T] {
	return &Input[T]{engine: e, key: key, value: value}
}

// Key returns the input key.
func (in *Input[T]) Key() Key {
	return in.key
}

// Get returns the current value and records a dependency on it.
func (in *Input[T]) Get(ctx context.Context) T {
	recordDependency(ctx, in.key)
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.value
}

// Set replaces the value and invalidates dependents.
func (in *Input[T]) Set(value T) {
	in.mu.Lock()
	in.value = value
	in.mu.Unlock()
	in.engine.Invalidate(in.key)
}
