// Package ecmascript implements script modules and the script chunks they
// are placed into, including the split of dynamic imports into a loader
// item and a lazily computed manifest chunk.
package ecmascript

import (
	"context"
	"fmt"
	"strings"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunk"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/issue"
)

// ReferenceKind distinguishes static from dynamic imports.
type ReferenceKind int

const (
	ImportStatic ReferenceKind = iota
	ImportDynamic
)

func (k ReferenceKind) String() string {
	if k == ImportDynamic {
		return "dynamic import"
	}
	return "import"
}

// ModuleReference is an import of another asset.
type ModuleReference struct {
	Kind   ReferenceKind
	Target asset.Asset
}

// Placeable is an asset that can be placed into a script chunk.
type Placeable interface {
	chunk.Chunkable
	AsChunkItem(cc chunk.Context) ChunkItem
	ModuleReferences() []ModuleReference
}

// ChunkItem is the representation of a placeable asset inside a chunk.
type ChunkItem interface {
	AssetIdent() ident.AssetIdent
	References(ctx context.Context) ([]asset.Reference, error)
	// Code returns the body of the module factory.
	Code(ctx context.Context) (string, error)
}

// ModuleID returns the runtime id of the module identified by id.
func ModuleID(cc chunk.Context, id ident.AssetIdent) string {
	var b strings.Builder
	if rel, ok := cc.ContextPath().PathTo(id.Path()); ok {
		b.WriteString("[project]/")
		b.WriteString(rel)
	} else {
		b.WriteString(id.Path().String())
	}
	for _, m := range id.Modifiers() {
		fmt.Fprintf(&b, " (%s)", m)
	}
	return b.String()
}

// ModuleAsset is a script source module.
type ModuleAsset struct {
	id     ident.AssetIdent
	source asset.Source
	refs   []ModuleReference
}

// NewModuleAsset creates a module reading its code from source.
func NewModuleAsset(id ident.AssetIdent, source asset.Source) *ModuleAsset {
	return &ModuleAsset{id: id, source: source}
}

// AddImport records a static import. Imports are recorded while the module
// graph is assembled, before the module is used.
func (m *ModuleAsset) AddImport(target asset.Asset) *ModuleAsset {
	m.refs = append(m.refs, ModuleReference{Kind: ImportStatic, Target: target})
	return m
}

// AddDynamicImport records a dynamic import.
func (m *ModuleAsset) AddDynamicImport(target asset.Asset) *ModuleAsset {
	m.refs = append(m.refs, ModuleReference{Kind: ImportDynamic, Target: target})
	return m
}

// Ident implements asset.Asset.
func (m *ModuleAsset) Ident() ident.AssetIdent {
	return m.id
}

// Content implements asset.Asset.
func (m *ModuleAsset) Content(ctx context.Context) (asset.Content, error) {
	return m.source.Content(ctx)
}

// References implements asset.Asset.
func (m *ModuleAsset) References(context.Context) ([]asset.Reference, error) {
	refs := make([]asset.Reference, 0, len(m.refs))
	for _, r := range m.refs {
		refs = append(refs, asset.Reference{Asset: r.Target, Description: r.Kind.String()})
	}
	return refs, nil
}

// ModuleReferences implements Placeable.
func (m *ModuleAsset) ModuleReferences() []ModuleReference {
	out := make([]ModuleReference, len(m.refs))
	copy(out, m.refs)
	return out
}

// AsRootChunk implements chunk.Chunkable.
func (m *ModuleAsset) AsRootChunk(cc chunk.Context) asset.Chunk {
	return NewChunk(cc, m)
}

// AsChunkItem implements Placeable.
func (m *ModuleAsset) AsChunkItem(cc chunk.Context) ChunkItem {
	return &moduleItem{cc: cc, module: m}
}

type moduleItem struct {
	cc     chunk.Context
	module *ModuleAsset
}

func (i *moduleItem) AssetIdent() ident.AssetIdent {
	return i.module.id
}

func (i *moduleItem) References(context.Context) ([]asset.Reference, error) {
	return nil, nil
}

func (i *moduleItem) Code(ctx context.Context) (string, error) {
	c, err := i.module.source.Content(ctx)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", i.module.id, err)
	}
	if !c.Found() {
		issue.Emit(ctx, issue.Issue{
			Severity: issue.SeverityWarning,
			Category: issue.CategoryResolve,
			Context:  i.module.id.Path().String(),
			Title:    "source not found",
		})
		return fmt.Sprintf("throw new Error(%s);", StringifyJs("Could not find module "+ModuleID(i.cc, i.module.id))), nil
	}
	return string(c.Bytes()), nil
}
