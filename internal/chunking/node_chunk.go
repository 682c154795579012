package chunking

import (
	"context"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/code"
	"github.com/conduit-lang/pack/internal/ecmascript"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/memo"
	"github.com/conduit-lang/pack/internal/version"
	"github.com/conduit-lang/pack/internal/vpath"
)

// NodeChunk is the emitted form of a script chunk: a CommonJS file exporting
// the module map.
type NodeChunk struct {
	cc    *BuildContext
	chunk *ecmascript.Chunk
}

func newNodeChunk(cc *BuildContext, c *ecmascript.Chunk) *NodeChunk {
	return &NodeChunk{cc: cc, chunk: c}
}

// Chunk returns the wrapped script chunk.
func (n *NodeChunk) Chunk() *ecmascript.Chunk {
	return n.chunk
}

// Ident implements asset.Asset.
func (n *NodeChunk) Ident() ident.AssetIdent {
	return n.chunk.Ident()
}

// ChunkKind implements asset.Kinded.
func (n *NodeChunk) ChunkKind() asset.Kind {
	return asset.KindScript
}

// OutputPath implements asset.Output.
func (n *NodeChunk) OutputPath(ctx context.Context) (vpath.Path, error) {
	return n.cc.ChunkPath(ctx, n.chunk.Ident(), ".js")
}

// Content implements asset.Asset.
func (n *NodeChunk) Content(ctx context.Context) (asset.Content, error) {
	key := memo.NewKey("chunking.nodeChunkContent", n.cc, n.chunk.Ident())
	return memo.Get(ctx, n.cc.engine, key, func(ctx context.Context) (asset.Content, error) {
		factories, err := n.chunk.ModuleFactories(ctx)
		if err != nil {
			return asset.Content{}, err
		}

		var b code.Builder
		b.Writeln("module.exports = {")
		b.Writeln("")
		ecmascript.WriteModuleMap(&b, factories)
		b.Writeln("};")

		src := b.String()
		if n.cc.minify {
			p, err := n.OutputPath(ctx)
			if err != nil {
				return asset.Content{}, err
			}
			if src, err = minify(src, p.String()); err != nil {
				return asset.Content{}, err
			}
		}
		return asset.NewStringContent(src), nil
	})
}

// References implements asset.Asset. Only emitted assets are referenced.
func (n *NodeChunk) References(ctx context.Context) ([]asset.Reference, error) {
	refs, err := n.chunk.References(ctx)
	if err != nil {
		return nil, err
	}
	out := refs[:0:0]
	for _, r := range refs {
		if _, ok := r.Asset.(asset.Output); ok {
			out = append(out, r)
		}
	}
	return out, nil
}

// VersionedContent implements version.Provider with the development
// rendering of the chunk.
func (n *NodeChunk) VersionedContent(ctx context.Context) (version.Content, error) {
	return ecmascript.NewDevChunkContent(ctx, n.chunk)
}
