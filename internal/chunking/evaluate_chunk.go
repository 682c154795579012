package chunking

import (
	"context"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunk"
	"github.com/conduit-lang/pack/internal/code"
	"github.com/conduit-lang/pack/internal/ecmascript"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/issue"
	"github.com/conduit-lang/pack/internal/runtime"
	"github.com/conduit-lang/pack/internal/vpath"
)

// EvaluateChunk bootstraps the runtime, loads the other chunks of a group
// and evaluates the group's evaluatable modules in order.
type EvaluateChunk struct {
	cc           *BuildContext
	entry        asset.Chunk
	otherChunks  []asset.Output
	evaluatables *chunk.EvaluatableAssets
	exported     ecmascript.Placeable
}

func newEvaluateChunk(cc *BuildContext, entry asset.Chunk, other []asset.Output, evaluatables *chunk.EvaluatableAssets, exported ecmascript.Placeable) *EvaluateChunk {
	return &EvaluateChunk{
		cc:           cc,
		entry:        entry,
		otherChunks:  other,
		evaluatables: evaluatables,
		exported:     exported,
	}
}

// Ident implements asset.Asset.
func (e *EvaluateChunk) Ident() ident.AssetIdent {
	id := e.entry.Ident().WithModifier("evaluate")
	if e.exported != nil {
		id = id.WithModifier("exported")
	}
	return id
}

// ChunkKind implements asset.Kinded.
func (e *EvaluateChunk) ChunkKind() asset.Kind {
	return asset.KindScript
}

// OtherChunks returns the chunks loaded before evaluation.
func (e *EvaluateChunk) OtherChunks() []asset.Output {
	return e.otherChunks
}

// OutputPath implements asset.Output.
func (e *EvaluateChunk) OutputPath(ctx context.Context) (vpath.Path, error) {
	return e.cc.ChunkPath(ctx, e.Ident(), ".js")
}

func (e *EvaluateChunk) relativePath(ctx context.Context, a asset.Output, what string) (string, error) {
	p, err := a.OutputPath(ctx)
	if err != nil {
		return "", err
	}
	rel, ok := e.cc.outputRoot.PathTo(p)
	if !ok {
		return "", issue.NewConfigError(what, p, e.cc.outputRoot)
	}
	return rel, nil
}

// Content implements asset.Asset.
func (e *EvaluateChunk) Content(ctx context.Context) (asset.Content, error) {
	publicPath, err := e.relativePath(ctx, e, "evaluate chunk")
	if err != nil {
		return asset.Content{}, err
	}

	var b code.Builder
	b.Writef("const CHUNK_PUBLIC_PATH = %s;\n", ecmascript.StringifyJs(publicPath))
	b.WriteString(runtime.BuildRuntimeCode(e.cc.environment, e.cc.runtimeType))

	for _, other := range e.otherChunks {
		rel, err := e.relativePath(ctx, other, "chunk")
		if err != nil {
			return asset.Content{}, err
		}
		b.Writef("runtime.loadChunk(%s);\n", ecmascript.StringifyJs(rel))
	}

	for _, ev := range e.evaluatables.Items() {
		if _, ok := ev.(ecmascript.Placeable); !ok {
			return asset.Content{}, issue.NewGraphShapeError(ev.Ident(), "evaluated asset is not a script module")
		}
		b.Writef("runtime.getOrInstantiateRuntimeModule(%s, CHUNK_PUBLIC_PATH);\n",
			ecmascript.StringifyJs(ecmascript.ModuleID(e.cc, ev.Ident())))
	}

	if e.exported != nil {
		b.Writef("module.exports = runtime.getOrInstantiateRuntimeModule(%s, CHUNK_PUBLIC_PATH).exports;\n",
			ecmascript.StringifyJs(ecmascript.ModuleID(e.cc, e.exported.Ident())))
	}

	src := b.String()
	if e.cc.minify {
		p, err := e.OutputPath(ctx)
		if err != nil {
			return asset.Content{}, err
		}
		if src, err = minify(src, p.String()); err != nil {
			return asset.Content{}, err
		}
	}
	return asset.NewStringContent(src), nil
}

// References implements asset.Asset.
func (e *EvaluateChunk) References(context.Context) ([]asset.Reference, error) {
	return asset.ReferencesTo(e.otherChunks, "evaluated chunk"), nil
}
