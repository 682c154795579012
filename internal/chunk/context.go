// Package chunk defines the chunking context contract and the chunk graph
// operations shared by every chunking context: parallel chunk traversal,
// chunk optimization and chunk data.
package chunk

import (
	"context"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/memo"
	"github.com/conduit-lang/pack/internal/runtime"
	"github.com/conduit-lang/pack/internal/vpath"
)

// Context decides where chunks are placed and how chunk groups are formed.
// Implementations are immutable values.
type Context interface {
	// Fingerprint is equal for contexts with equal configuration.
	Fingerprint() string

	ContextPath() vpath.Path
	OutputRoot() vpath.Path
	Environment() runtime.Environment
	RuntimeType() runtime.Type
	Engine() *memo.Engine

	// Layer returns the current layer name, "" when unset.
	Layer() string
	// WithLayer derives a context placing chunks under the named layer.
	// An empty name clears the layer.
	WithLayer(layer string) Context

	ChunkPath(ctx context.Context, id ident.AssetIdent, ext string) (vpath.Path, error)
	AssetPath(contentHash string, original ident.AssetIdent) (vpath.Path, error)
	CanBeInSameChunk(ctx context.Context, a, b asset.Asset) (bool, error)
	ReferenceChunkSourceMaps(chunk asset.Asset) bool

	ChunkGroup(ctx context.Context, entry asset.Chunk) ([]asset.Output, error)
	EvaluatedChunkGroup(ctx context.Context, entry asset.Chunk, evaluatables *EvaluatableAssets) ([]asset.Output, error)
}

// Chunkable is an asset that can start a chunk of its own.
type Chunkable interface {
	asset.Asset
	AsRootChunk(cc Context) asset.Chunk
}
