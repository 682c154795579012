// Package static implements opaque assets such as images and fonts. They
// are emitted unchanged under a content addressed name.
package static

import (
	"context"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunk"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/vpath"
)

// ModuleAsset is a static source file.
type ModuleAsset struct {
	id     ident.AssetIdent
	source asset.Source
}

// NewModuleAsset creates a static module.
func NewModuleAsset(id ident.AssetIdent, source asset.Source) *ModuleAsset {
	return &ModuleAsset{id: id, source: source}
}

// Ident implements asset.Asset.
func (m *ModuleAsset) Ident() ident.AssetIdent { return m.id }

// Content implements asset.Asset.
func (m *ModuleAsset) Content(ctx context.Context) (asset.Content, error) {
	return m.source.Content(ctx)
}

// References implements asset.Asset.
func (m *ModuleAsset) References(context.Context) ([]asset.Reference, error) {
	return nil, nil
}

// AsRootChunk implements chunk.Chunkable.
func (m *ModuleAsset) AsRootChunk(cc chunk.Context) asset.Chunk {
	return &Chunk{cc: cc, module: m}
}

// Chunk emits a static module as is.
type Chunk struct {
	cc     chunk.Context
	module *ModuleAsset
}

// Ident implements asset.Asset.
func (c *Chunk) Ident() ident.AssetIdent {
	return c.module.Ident().WithModifier("static")
}

// ChunkKind implements asset.Kinded.
func (c *Chunk) ChunkKind() asset.Kind {
	return asset.KindOther
}

// OutputPath implements asset.Output. The path depends on the content hash.
func (c *Chunk) OutputPath(ctx context.Context) (vpath.Path, error) {
	content, err := c.module.Content(ctx)
	if err != nil {
		return "", err
	}
	return c.cc.AssetPath(content.Hash(), c.module.Ident())
}

// Content implements asset.Asset.
func (c *Chunk) Content(ctx context.Context) (asset.Content, error) {
	return c.module.Content(ctx)
}

// References implements asset.Asset.
func (c *Chunk) References(context.Context) ([]asset.Reference, error) {
	return nil, nil
}

// ParallelChunks implements asset.Chunk.
func (c *Chunk) ParallelChunks(context.Context) ([]asset.Chunk, error) {
	return nil, nil
}

var (
	_ asset.Output    = (*Chunk)(nil)
	_ asset.Chunk     = (*Chunk)(nil)
	_ chunk.Chunkable = (*ModuleAsset)(nil)
)
