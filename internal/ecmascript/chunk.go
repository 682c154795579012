package ecmascript

import (
	"context"
	"fmt"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunk"
	"github.com/conduit-lang/pack/internal/code"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/issue"
	"github.com/conduit-lang/pack/internal/memo"
)

// Chunk is a script chunk rooted at a placeable module. It contains the
// module and every statically imported module that may share its chunk.
// Other imports become parallel chunks; dynamic imports become loader items.
type Chunk struct {
	cc   chunk.Context
	main Placeable
}

// NewChunk creates the chunk rooted at main.
func NewChunk(cc chunk.Context, main Placeable) *Chunk {
	return &Chunk{cc: cc, main: main}
}

type chunkContents struct {
	items    []ChunkItem
	parallel []asset.Chunk
}

// ModuleFactory is one entry of a chunk's module map.
type ModuleFactory struct {
	ID   string
	Code string
}

// Ident implements asset.Asset.
func (c *Chunk) Ident() ident.AssetIdent {
	return c.main.Ident().WithModifier("ecmascript chunk")
}

// ChunkKind implements asset.Kinded.
func (c *Chunk) ChunkKind() asset.Kind {
	return asset.KindScript
}

// Context returns the chunking context the chunk was created in.
func (c *Chunk) Context() chunk.Context {
	return c.cc
}

// Main returns the root module of the chunk.
func (c *Chunk) Main() Placeable {
	return c.main
}

func (c *Chunk) contents(ctx context.Context) (*chunkContents, error) {
	key := memo.NewKey("ecmascript.chunkContents", c.cc, c.main.Ident())
	return memo.Get(ctx, c.cc.Engine(), key, c.computeContents)
}

func (c *Chunk) computeContents(ctx context.Context) (*chunkContents, error) {
	out := &chunkContents{}
	seen := map[ident.Key]struct{}{c.main.Ident().Key(): {}}
	parallelSeen := make(map[ident.Key]struct{})

	queue := []Placeable{c.main}
	for i := 0; i < len(queue); i++ {
		p := queue[i]
		out.items = append(out.items, p.AsChunkItem(c.cc))

		for _, ref := range p.ModuleReferences() {
			if ref.Kind == ImportDynamic {
				target, ok := ref.Target.(Placeable)
				if !ok {
					return nil, issue.NewGraphShapeError(ref.Target.Ident(), "dynamic import target cannot be placed in a script chunk")
				}
				loader := NewManifestLoaderItem(NewManifestChunkAsset(c.cc, target))
				k := loader.AssetIdent().Key()
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					out.items = append(out.items, loader)
				}
				continue
			}

			if target, ok := ref.Target.(Placeable); ok {
				same, err := c.cc.CanBeInSameChunk(ctx, c.main, target)
				if err != nil {
					return nil, err
				}
				if same {
					k := target.Ident().Key()
					if _, ok := seen[k]; !ok {
						seen[k] = struct{}{}
						queue = append(queue, target)
					}
					continue
				}
			}

			chunkable, ok := ref.Target.(chunk.Chunkable)
			if !ok {
				return nil, issue.NewGraphShapeError(ref.Target.Ident(), "imported asset cannot be chunked")
			}
			root := chunkable.AsRootChunk(c.cc)
			k := root.Ident().Key()
			if _, ok := parallelSeen[k]; !ok {
				parallelSeen[k] = struct{}{}
				out.parallel = append(out.parallel, root)
			}
		}
	}

	return out, nil
}

// Items returns the chunk items in placement order.
func (c *Chunk) Items(ctx context.Context) ([]ChunkItem, error) {
	contents, err := c.contents(ctx)
	if err != nil {
		return nil, err
	}
	return contents.items, nil
}

// ParallelChunks implements asset.Chunk.
func (c *Chunk) ParallelChunks(ctx context.Context) ([]asset.Chunk, error) {
	contents, err := c.contents(ctx)
	if err != nil {
		return nil, err
	}
	return contents.parallel, nil
}

// ModuleFactories returns the module map of the chunk.
func (c *Chunk) ModuleFactories(ctx context.Context) ([]ModuleFactory, error) {
	items, err := c.Items(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ModuleFactory, 0, len(items))
	for _, item := range items {
		src, err := item.Code(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, ModuleFactory{
			ID:   ModuleID(c.cc, item.AssetIdent()),
			Code: FactoryCode(src),
		})
	}
	return out, nil
}

// Content implements asset.Asset. It renders the module map as an object
// literal.
func (c *Chunk) Content(ctx context.Context) (asset.Content, error) {
	factories, err := c.ModuleFactories(ctx)
	if err != nil {
		return asset.Content{}, err
	}
	var b code.Builder
	b.Writeln("({")
	WriteModuleMap(&b, factories)
	b.Writeln("})")
	return asset.NewStringContent(b.String()), nil
}

// References implements asset.Asset: the references of every item followed
// by the parallel chunks.
func (c *Chunk) References(ctx context.Context) ([]asset.Reference, error) {
	contents, err := c.contents(ctx)
	if err != nil {
		return nil, err
	}
	var refs []asset.Reference
	for _, item := range contents.items {
		r, err := item.References(ctx)
		if err != nil {
			return nil, fmt.Errorf("references of %s: %w", item.AssetIdent(), err)
		}
		refs = append(refs, r...)
	}
	return append(refs, asset.ReferencesTo(contents.parallel, "parallel chunk")...), nil
}

// FactoryCode wraps a module body into a factory function.
func FactoryCode(body string) string {
	return "((__turbopack_context__) => {\n" + body + "\n})"
}

// WriteModuleMap writes `"id": factory,` lines.
func WriteModuleMap(b *code.Builder, factories []ModuleFactory) {
	for _, f := range factories {
		b.Writef("%s: %s,\n", StringifyJs(f.ID), f.Code)
	}
}
