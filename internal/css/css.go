// Package css implements style modules and style chunks.
package css

import (
	"context"
	"fmt"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunk"
	"github.com/conduit-lang/pack/internal/code"
	"github.com/conduit-lang/pack/internal/graph"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/issue"
	"github.com/conduit-lang/pack/internal/memo"
	"github.com/conduit-lang/pack/internal/vpath"
)

// ModuleAsset is a style sheet.
type ModuleAsset struct {
	id      ident.AssetIdent
	source  asset.Source
	imports []asset.Asset
}

// NewModuleAsset creates a style module reading from source.
func NewModuleAsset(id ident.AssetIdent, source asset.Source) *ModuleAsset {
	return &ModuleAsset{id: id, source: source}
}

// AddImport records an @import of target.
func (m *ModuleAsset) AddImport(target asset.Asset) *ModuleAsset {
	m.imports = append(m.imports, target)
	return m
}

// Ident implements asset.Asset.
func (m *ModuleAsset) Ident() ident.AssetIdent { return m.id }

// Content implements asset.Asset.
func (m *ModuleAsset) Content(ctx context.Context) (asset.Content, error) {
	return m.source.Content(ctx)
}

// References implements asset.Asset.
func (m *ModuleAsset) References(context.Context) ([]asset.Reference, error) {
	return asset.ReferencesTo(m.imports, "@import"), nil
}

// AsRootChunk implements chunk.Chunkable.
func (m *ModuleAsset) AsRootChunk(cc chunk.Context) asset.Chunk {
	return NewChunk(cc, m)
}

// Chunk is a style sheet with the imports it can inline.
type Chunk struct {
	cc   chunk.Context
	root *ModuleAsset
}

// NewChunk creates the chunk rooted at root.
func NewChunk(cc chunk.Context, root *ModuleAsset) *Chunk {
	return &Chunk{cc: cc, root: root}
}

type contents struct {
	modules  []*ModuleAsset
	parallel []asset.Chunk
}

// Ident implements asset.Asset.
func (c *Chunk) Ident() ident.AssetIdent {
	return c.root.Ident().WithModifier("css chunk")
}

// ChunkKind implements asset.Kinded.
func (c *Chunk) ChunkKind() asset.Kind {
	return asset.KindStyle
}

// OutputPath implements asset.Output.
func (c *Chunk) OutputPath(ctx context.Context) (vpath.Path, error) {
	return c.cc.ChunkPath(ctx, c.Ident(), ".css")
}

func (c *Chunk) contents(ctx context.Context) (*contents, error) {
	key := memo.NewKey("css.chunkContents", c.cc, c.root.Ident())
	return memo.Get(ctx, c.cc.Engine(), key, func(ctx context.Context) (*contents, error) {
		// Inlined imports come before the sheets importing them.
		modules, err := graph.ReverseTopological(ctx, []*ModuleAsset{c.root},
			func(m *ModuleAsset) ident.Key { return m.Ident().Key() },
			func(ctx context.Context, m *ModuleAsset) ([]*ModuleAsset, error) {
				var inline []*ModuleAsset
				for _, imp := range m.imports {
					target, ok := imp.(*ModuleAsset)
					if !ok {
						continue
					}
					same, err := c.cc.CanBeInSameChunk(ctx, c.root, target)
					if err != nil {
						return nil, err
					}
					if same {
						inline = append(inline, target)
					}
				}
				return inline, nil
			},
		)
		if err != nil {
			return nil, err
		}

		inlined := make(map[ident.Key]struct{}, len(modules))
		for _, m := range modules {
			inlined[m.Ident().Key()] = struct{}{}
		}

		out := &contents{modules: modules}
		seen := make(map[ident.Key]struct{})
		for _, m := range modules {
			for _, imp := range m.imports {
				if _, ok := inlined[imp.Ident().Key()]; ok {
					continue
				}
				chunkable, ok := imp.(chunk.Chunkable)
				if !ok {
					return nil, issue.NewGraphShapeError(imp.Ident(), "style import cannot be chunked")
				}
				root := chunkable.AsRootChunk(c.cc)
				if _, ok := seen[root.Ident().Key()]; ok {
					continue
				}
				seen[root.Ident().Key()] = struct{}{}
				out.parallel = append(out.parallel, root)
			}
		}
		return out, nil
	})
}

// ParallelChunks implements asset.Chunk.
func (c *Chunk) ParallelChunks(ctx context.Context) ([]asset.Chunk, error) {
	cs, err := c.contents(ctx)
	if err != nil {
		return nil, err
	}
	return cs.parallel, nil
}

// Content implements asset.Asset: every inlined sheet preceded by a comment
// naming it.
func (c *Chunk) Content(ctx context.Context) (asset.Content, error) {
	cs, err := c.contents(ctx)
	if err != nil {
		return asset.Content{}, err
	}

	var b code.Builder
	for _, m := range cs.modules {
		name := m.Ident().Path().String()
		if rel, ok := c.cc.ContextPath().PathTo(m.Ident().Path()); ok {
			name = "[project]/" + rel
		}

		src, err := m.Content(ctx)
		if err != nil {
			return asset.Content{}, fmt.Errorf("reading %s: %w", m.Ident(), err)
		}
		b.Writef("/* %s */\n", name)
		if !src.Found() {
			issue.Emit(ctx, issue.Issue{
				Severity: issue.SeverityWarning,
				Category: issue.CategoryResolve,
				Context:  m.Ident().Path().String(),
				Title:    "source not found",
			})
			b.Writeln("/* not found */")
			continue
		}
		b.Writeln(string(src.Bytes()))
	}
	return asset.NewStringContent(b.String()), nil
}

// References implements asset.Asset.
func (c *Chunk) References(context.Context) ([]asset.Reference, error) {
	return nil, nil
}

var (
	_ asset.Output    = (*Chunk)(nil)
	_ asset.Chunk     = (*Chunk)(nil)
	_ chunk.Chunkable = (*ModuleAsset)(nil)
)
