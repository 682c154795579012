package ecmascript

import (
	"context"
	"fmt"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunk"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/memo"
)

// ManifestChunkAsset stands in for the target of a dynamic import. The
// chunk it lives in is small and cheap to compute; the chunk group of the
// target is only computed when the manifest itself is rendered.
type ManifestChunkAsset struct {
	cc     chunk.Context
	target Placeable
}

// NewManifestChunkAsset creates the manifest for target.
func NewManifestChunkAsset(cc chunk.Context, target Placeable) *ManifestChunkAsset {
	return &ManifestChunkAsset{cc: cc, target: target}
}

// Ident implements asset.Asset.
func (m *ManifestChunkAsset) Ident() ident.AssetIdent {
	return m.target.Ident().WithModifier("manifest chunk")
}

// Context returns the chunking context of the manifest.
func (m *ManifestChunkAsset) Context() chunk.Context {
	return m.cc
}

// Target returns the dynamically imported module.
func (m *ManifestChunkAsset) Target() Placeable {
	return m.target
}

// ManifestChunks returns the chunk group holding the manifest itself.
func (m *ManifestChunkAsset) ManifestChunks(ctx context.Context) ([]asset.Output, error) {
	return m.cc.ChunkGroup(ctx, m.AsRootChunk(m.cc))
}

// TargetChunks returns the chunk group of the dynamically imported module.
func (m *ManifestChunkAsset) TargetChunks(ctx context.Context) ([]asset.Output, error) {
	key := memo.NewKey("ecmascript.manifestTargetChunks", m.cc, m.Ident())
	return memo.Get(ctx, m.cc.Engine(), key, func(ctx context.Context) ([]asset.Output, error) {
		chunks, err := m.cc.ChunkGroup(ctx, m.target.AsRootChunk(m.cc))
		if err != nil {
			return nil, fmt.Errorf("chunk group of %s: %w", m.target.Ident(), err)
		}
		return chunks, nil
	})
}

// Content implements asset.Asset.
func (m *ManifestChunkAsset) Content(ctx context.Context) (asset.Content, error) {
	src, err := m.AsChunkItem(m.cc).Code(ctx)
	if err != nil {
		return asset.Content{}, err
	}
	return asset.NewStringContent(src), nil
}

// References implements asset.Asset.
func (m *ManifestChunkAsset) References(ctx context.Context) ([]asset.Reference, error) {
	chunks, err := m.TargetChunks(ctx)
	if err != nil {
		return nil, err
	}
	return asset.ReferencesTo(chunks, "manifest target chunk"), nil
}

// ModuleReferences implements Placeable. The target is not imported
// statically, so the manifest chunk does not pull it in.
func (m *ManifestChunkAsset) ModuleReferences() []ModuleReference {
	return nil
}

// AsRootChunk implements chunk.Chunkable.
func (m *ManifestChunkAsset) AsRootChunk(cc chunk.Context) asset.Chunk {
	return NewChunk(cc, m)
}

// AsChunkItem implements Placeable.
func (m *ManifestChunkAsset) AsChunkItem(cc chunk.Context) ChunkItem {
	return &manifestItem{cc: cc, manifest: m}
}

// manifestItem exports the list of chunks the target needs.
type manifestItem struct {
	cc       chunk.Context
	manifest *ManifestChunkAsset
}

func (i *manifestItem) AssetIdent() ident.AssetIdent {
	return i.manifest.Ident()
}

func (i *manifestItem) chunksData(ctx context.Context) ([]chunk.Data, error) {
	chunks, err := i.manifest.TargetChunks(ctx)
	if err != nil {
		return nil, err
	}
	return chunk.DataFromAssets(ctx, i.cc.OutputRoot(), chunks)
}

func (i *manifestItem) References(ctx context.Context) ([]asset.Reference, error) {
	data, err := i.chunksData(ctx)
	if err != nil {
		return nil, err
	}
	return chunk.DataReferences(data), nil
}

func (i *manifestItem) Code(ctx context.Context) (string, error) {
	data, err := i.chunksData(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("__turbopack_context__.v(%s);", StringifyJs(chunk.Paths(data))), nil
}
