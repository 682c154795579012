package ecmascript

import (
	"context"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunk"
	"github.com/conduit-lang/pack/internal/code"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/memo"
)

// ManifestLoaderItem is the chunk item placed where a dynamic import
// occurs. It loads the manifest chunk, asks the manifest for the chunks of
// the target, loads those and finally imports the target.
//
// The loader only depends on the manifest ident and the manifest chunk
// group, never on what the target imports.
type ManifestLoaderItem struct {
	manifest *ManifestChunkAsset
}

// NewManifestLoaderItem creates the loader for manifest.
func NewManifestLoaderItem(manifest *ManifestChunkAsset) *ManifestLoaderItem {
	return &ManifestLoaderItem{manifest: manifest}
}

// Manifest returns the manifest the loader loads.
func (l *ManifestLoaderItem) Manifest() *ManifestChunkAsset {
	return l.manifest
}

// AssetIdent implements ChunkItem.
func (l *ManifestLoaderItem) AssetIdent() ident.AssetIdent {
	return l.manifest.Ident().WithModifier("loader")
}

// ChunksData returns the data of the chunks holding the manifest.
func (l *ManifestLoaderItem) ChunksData(ctx context.Context) ([]chunk.Data, error) {
	chunks, err := l.manifest.ManifestChunks(ctx)
	if err != nil {
		return nil, err
	}
	return chunk.DataFromAssets(ctx, l.manifest.cc.OutputRoot(), chunks)
}

// References implements ChunkItem: the manifest chunks followed by the
// chunk data references.
func (l *ManifestLoaderItem) References(ctx context.Context) ([]asset.Reference, error) {
	chunks, err := l.manifest.ManifestChunks(ctx)
	if err != nil {
		return nil, err
	}
	data, err := chunk.DataFromAssets(ctx, l.manifest.cc.OutputRoot(), chunks)
	if err != nil {
		return nil, err
	}
	refs := asset.ReferencesTo(chunks, "manifest chunk")
	return append(refs, chunk.DataReferences(data)...), nil
}

// Code implements ChunkItem.
func (l *ManifestLoaderItem) Code(ctx context.Context) (string, error) {
	cc := l.manifest.cc
	key := memo.NewKey("ecmascript.loaderCode", cc, l.AssetIdent())
	return memo.Get(ctx, cc.Engine(), key, func(ctx context.Context) (string, error) {
		data, err := l.ChunksData(ctx)
		if err != nil {
			return "", err
		}

		var b code.Builder
		b.Writedoc(`
			__turbopack_context__.v((__turbopack_import__) => {
			    return Promise.all(%s.map((chunk) => __turbopack_context__.l(chunk))).then(() => {
			        return __turbopack_context__.r(%s);
			    }).then((chunks) => {
			        return Promise.all(chunks.map((chunk) => __turbopack_context__.l(chunk)));
			    }).then(() => {
			        return __turbopack_import__(%s);
			    });
			});
		`,
			StringifyJs(chunk.Paths(data)),
			StringifyJs(ModuleID(cc, l.manifest.Ident())),
			StringifyJs(ModuleID(cc, l.manifest.target.Ident())),
		)
		return b.String(), nil
	})
}
