package chunk

import (
	"strings"

	"github.com/conduit-lang/pack/internal/ident"
)

// EvaluatableAssets is an insertion ordered set of assets that must be
// executed when a chunk group is loaded.
type EvaluatableAssets struct {
	items []Chunkable
	index map[ident.Key]struct{}
}

// NewEvaluatableAssets creates a set from assets, dropping duplicates.
func NewEvaluatableAssets(assets ...Chunkable) *EvaluatableAssets {
	e := &EvaluatableAssets{index: make(map[ident.Key]struct{})}
	for _, a := range assets {
		e.add(a)
	}
	return e
}

func (e *EvaluatableAssets) add(a Chunkable) bool {
	k := a.Ident().Key()
	if _, ok := e.index[k]; ok {
		return false
	}
	e.index[k] = struct{}{}
	e.items = append(e.items, a)
	return true
}

// With returns a new set with a appended.
func (e *EvaluatableAssets) With(a Chunkable) *EvaluatableAssets {
	out := NewEvaluatableAssets(e.Items()...)
	out.add(a)
	return out
}

// Items returns the assets in insertion order.
func (e *EvaluatableAssets) Items() []Chunkable {
	if e == nil {
		return nil
	}
	out := make([]Chunkable, len(e.items))
	copy(out, e.items)
	return out
}

// Len returns the number of assets.
func (e *EvaluatableAssets) Len() int {
	if e == nil {
		return 0
	}
	return len(e.items)
}

// Fingerprint implements the memo key contract.
func (e *EvaluatableAssets) Fingerprint() string {
	if e == nil {
		return "evaluatables:"
	}
	keys := make([]string, len(e.items))
	for i, a := range e.items {
		keys[i] = a.Ident().Key().String()
	}
	return "evaluatables:" + strings.Join(keys, ",")
}
