package chunk

import (
	"context"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/graph"
	"github.com/conduit-lang/pack/internal/ident"
)

// ParallelChunks returns every chunk reachable from roots through parallel
// chunk edges, children before parents, each chunk once.
func ParallelChunks(ctx context.Context, roots []asset.Chunk) ([]asset.Chunk, error) {
	return graph.ReverseTopological(ctx, roots,
		func(c asset.Chunk) ident.Key { return c.Ident().Key() },
		func(ctx context.Context, c asset.Chunk) ([]asset.Chunk, error) {
			return c.ParallelChunks(ctx)
		},
	)
}

// Optimize orders chunks by kind: script chunks, then style chunks, then
// everything else. The relative order within a kind is preserved.
//
// Merging small chunks and splitting large ones would happen here; neither
// is done today.
func Optimize(chunks []asset.Chunk) []asset.Chunk {
	var scripts, styles, others []asset.Chunk
	for _, c := range chunks {
		switch asset.KindOf(c) {
		case asset.KindScript:
			scripts = append(scripts, c)
		case asset.KindStyle:
			styles = append(styles, c)
		default:
			others = append(others, c)
		}
	}

	out := make([]asset.Chunk, 0, len(chunks))
	out = append(out, scripts...)
	out = append(out, styles...)
	return append(out, others...)
}
