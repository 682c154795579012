package chunking

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunk"
	"github.com/conduit-lang/pack/internal/ecmascript"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/issue"
	"github.com/conduit-lang/pack/internal/memo"
)

// ChunkGroup implements chunk.Context. It returns the emitted chunks that
// must be loaded for entry, script chunks first.
func (c *BuildContext) ChunkGroup(ctx context.Context, entry asset.Chunk) ([]asset.Output, error) {
	key := memo.NewKey("chunking.chunkGroup", c, entry.Ident())
	return memo.Get(ctx, c.engine, key, func(ctx context.Context) ([]asset.Output, error) {
		chunks, err := chunk.ParallelChunks(ctx, []asset.Chunk{entry})
		if err != nil {
			return nil, fmt.Errorf("chunk group of %s: %w", entry.Ident(), err)
		}
		out, err := c.generateChunks(chunk.Optimize(chunks))
		if err != nil {
			return nil, err
		}
		c.logger.Debug("computed chunk group",
			zap.String("entry", entry.Ident().String()),
			zap.Int("chunks", len(out)))
		return out, nil
	})
}

// EvaluatedChunkGroup implements chunk.Context. The group loads the entry
// and every evaluatable asset; a synthesized evaluation chunk comes last.
func (c *BuildContext) EvaluatedChunkGroup(ctx context.Context, entry asset.Chunk, evaluatables *chunk.EvaluatableAssets) ([]asset.Output, error) {
	key := memo.NewKey("chunking.evaluatedChunkGroup", c, entry.Ident(), evaluatables)
	return memo.Get(ctx, c.engine, key, func(ctx context.Context) ([]asset.Output, error) {
		assets, err := c.evaluateChunkAssets(ctx, entry, evaluatables)
		if err != nil {
			return nil, err
		}
		evaluate := newEvaluateChunk(c, entry, assets, evaluatables, nil)
		return append(assets, evaluate), nil
	})
}

// GenerateExportedChunk returns a single evaluation chunk that loads the
// chunk group of module, runs the evaluatables and exports module.
func (c *BuildContext) GenerateExportedChunk(ctx context.Context, module ecmascript.Placeable, evaluatables *chunk.EvaluatableAssets) (asset.Output, error) {
	entry := module.AsRootChunk(c)
	assets, err := c.evaluateChunkAssets(ctx, entry, evaluatables)
	if err != nil {
		return nil, err
	}
	return newEvaluateChunk(c, entry, assets, evaluatables, module), nil
}

func (c *BuildContext) evaluateChunkAssets(ctx context.Context, entry asset.Chunk, evaluatables *chunk.EvaluatableAssets) ([]asset.Output, error) {
	// Evaluatable roots come first; the entry is appended unless one of
	// them already is the entry.
	var roots []asset.Chunk
	seen := make(map[ident.Key]struct{})
	add := func(root asset.Chunk) {
		if _, ok := seen[root.Ident().Key()]; ok {
			return
		}
		seen[root.Ident().Key()] = struct{}{}
		roots = append(roots, root)
	}
	for _, e := range evaluatables.Items() {
		add(e.AsRootChunk(c))
	}
	add(entry)

	chunks, err := chunk.ParallelChunks(ctx, roots)
	if err != nil {
		return nil, fmt.Errorf("evaluated chunk group of %s: %w", entry.Ident(), err)
	}
	return c.generateChunks(chunk.Optimize(chunks))
}

// generateChunks turns chunks into emitted assets. Script chunks are
// wrapped into node chunks; other chunks are already outputs.
func (c *BuildContext) generateChunks(chunks []asset.Chunk) ([]asset.Output, error) {
	out := make([]asset.Output, 0, len(chunks))
	for _, ch := range chunks {
		switch v := ch.(type) {
		case *ecmascript.Chunk:
			out = append(out, newNodeChunk(c, v))
		case asset.Output:
			out = append(out, v)
		default:
			return nil, issue.NewGraphShapeError(ch.Ident(), "chunk cannot be emitted")
		}
	}
	return out, nil
}
