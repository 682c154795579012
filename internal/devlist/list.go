// Package devlist implements development chunk lists: a registration script
// naming the chunks of a chunk group, versioned so that clients receive
// incremental updates when any member changes.
package devlist

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunk"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/version"
	"github.com/conduit-lang/pack/internal/vpath"
)

// Source records why a chunk list exists.
type Source int

const (
	SourceEntry Source = iota
	SourceDynamicImport
)

func (s Source) String() string {
	if s == SourceDynamicImport {
		return "dynamicImport"
	}
	return "entry"
}

// MarshalJSON renders the source name.
func (s Source) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ChunkList is the output asset registering a chunk group with the
// development runtime.
type ChunkList struct {
	cc     chunk.Context
	entry  ident.AssetIdent
	chunks []asset.Output
	source Source
}

// New creates the chunk list of a chunk group whose entry is entry.
func New(cc chunk.Context, entry ident.AssetIdent, chunks []asset.Output, source Source) *ChunkList {
	return &ChunkList{cc: cc, entry: entry, chunks: chunks, source: source}
}

// Ident implements asset.Asset.
func (l *ChunkList) Ident() ident.AssetIdent {
	return l.entry.WithModifier("chunk list")
}

// Chunks returns the members of the list.
func (l *ChunkList) Chunks() []asset.Output {
	return l.chunks
}

// Source returns the provenance of the list.
func (l *ChunkList) Source() Source {
	return l.source
}

// OutputPath implements asset.Output.
func (l *ChunkList) OutputPath(ctx context.Context) (vpath.Path, error) {
	return l.cc.ChunkPath(ctx, l.Ident(), ".js")
}

// Content implements asset.Asset.
func (l *ChunkList) Content(ctx context.Context) (asset.Content, error) {
	c, err := NewContent(ctx, l)
	if err != nil {
		return asset.Content{}, err
	}
	return c.Content(ctx)
}

// References implements asset.Asset.
func (l *ChunkList) References(context.Context) ([]asset.Reference, error) {
	return asset.ReferencesTo(l.chunks, "chunk list member"), nil
}

// VersionedContent implements version.Provider.
func (l *ChunkList) VersionedContent(ctx context.Context) (version.Content, error) {
	c, err := NewContent(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("chunk list %s: %w", l.entry, err)
	}
	return c, nil
}

var (
	_ asset.Output     = (*ChunkList)(nil)
	_ version.Provider = (*ChunkList)(nil)
)
