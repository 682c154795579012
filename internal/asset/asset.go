// Package asset defines the asset and chunk model shared by every stage of
// the build: modules, chunks and emitted output files are all assets.
package asset

import (
	"context"

	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/vpath"
)

// Asset is a node of the build graph.
type Asset interface {
	Ident() ident.AssetIdent
	Content(ctx context.Context) (Content, error)
	References(ctx context.Context) ([]Reference, error)
}

// Reference is an edge from one asset to another.
type Reference struct {
	Asset       Asset
	Description string
}

// Chunk is an asset that groups other assets and may require sibling chunks
// to be loaded alongside it.
type Chunk interface {
	Asset
	ParallelChunks(ctx context.Context) ([]Chunk, error)
}

// Output is an asset that is written to disk at OutputPath.
type Output interface {
	Asset
	OutputPath(ctx context.Context) (vpath.Path, error)
}

// Kind classifies chunks for optimization.
type Kind int

const (
	KindScript Kind = iota
	KindStyle
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindStyle:
		return "style"
	default:
		return "other"
	}
}

// Kinded is implemented by chunks that know their kind.
type Kinded interface {
	ChunkKind() Kind
}

// KindOf returns the kind of c, KindOther when it does not declare one.
func KindOf(c Chunk) Kind {
	if k, ok := c.(Kinded); ok {
		return k.ChunkKind()
	}
	return KindOther
}

// Dedup removes assets with duplicate idents, keeping the first occurrence.
func Dedup[A Asset](assets []A) []A {
	seen := make(map[ident.Key]struct{}, len(assets))
	out := make([]A, 0, len(assets))
	for _, a := range assets {
		k := a.Ident().Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, a)
	}
	return out
}

// OutputReferences returns the referenced assets of a that are outputs.
func OutputReferences(ctx context.Context, a Asset) ([]Output, error) {
	refs, err := a.References(ctx)
	if err != nil {
		return nil, err
	}
	var out []Output
	for _, r := range refs {
		if o, ok := r.Asset.(Output); ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// ReferencesTo wraps outputs as references with a shared description.
func ReferencesTo[A Asset](assets []A, description string) []Reference {
	refs := make([]Reference, 0, len(assets))
	for _, a := range assets {
		refs = append(refs, Reference{Asset: a, Description: description})
	}
	return refs
}
