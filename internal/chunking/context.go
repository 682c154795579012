// Package chunking implements the build chunking context: it decides where
// chunks are written, which modules may share a chunk and how chunk groups
// and evaluation chunks are assembled for node style builds.
package chunking

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunk"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/memo"
	"github.com/conduit-lang/pack/internal/runtime"
	"github.com/conduit-lang/pack/internal/vpath"
)

// BuildContext is the chunking context of production style builds. It is
// immutable; derived contexts are created with WithLayer.
type BuildContext struct {
	contextPath vpath.Path
	outputRoot  vpath.Path
	chunkRoot   vpath.Path
	assetRoot   vpath.Path
	layer       string
	environment runtime.Environment
	runtimeType runtime.Type
	minify      bool

	// not part of the identity
	engine *memo.Engine
	logger *zap.Logger
}

// Builder assembles a BuildContext.
type Builder struct {
	ctx BuildContext
}

// NewBuilder starts a context with the required paths. contextPath is the
// project root module paths are made relative to; chunkRoot and assetRoot
// are usually below outputRoot.
func NewBuilder(engine *memo.Engine, contextPath, outputRoot, chunkRoot, assetRoot vpath.Path, env runtime.Environment) *Builder {
	return &Builder{ctx: BuildContext{
		contextPath: contextPath,
		outputRoot:  outputRoot,
		chunkRoot:   chunkRoot,
		assetRoot:   assetRoot,
		environment: env,
		runtimeType: runtime.TypeDefault,
		engine:      engine,
		logger:      zap.NewNop(),
	}}
}

// RuntimeType sets the runtime included in evaluation chunks.
func (b *Builder) RuntimeType(t runtime.Type) *Builder {
	b.ctx.runtimeType = t
	return b
}

// Layer sets the initial layer.
func (b *Builder) Layer(layer string) *Builder {
	b.ctx.layer = layer
	return b
}

// Minify enables minification of emitted script chunks.
func (b *Builder) Minify(minify bool) *Builder {
	b.ctx.minify = minify
	return b
}

// Logger sets the logger.
func (b *Builder) Logger(logger *zap.Logger) *Builder {
	if logger != nil {
		b.ctx.logger = logger
	}
	return b
}

// Build returns the context.
func (b *Builder) Build() *BuildContext {
	c := b.ctx
	if c.engine == nil {
		c.engine = memo.MustEngine(memo.WithLogger(c.logger))
	}
	return &c
}

type identity struct {
	ContextPath  string
	OutputRoot   string
	ChunkRoot    string
	AssetRoot    string
	Layer        string
	ChunkLoading int
	RuntimeType  int
	Minify       bool
}

func (c *BuildContext) identity() identity {
	return identity{
		ContextPath:  c.contextPath.String(),
		OutputRoot:   c.outputRoot.String(),
		ChunkRoot:    c.chunkRoot.String(),
		AssetRoot:    c.assetRoot.String(),
		Layer:        c.layer,
		ChunkLoading: int(c.environment.ChunkLoading),
		RuntimeType:  int(c.runtimeType),
		Minify:       c.minify,
	}
}

// Fingerprint implements chunk.Context.
func (c *BuildContext) Fingerprint() string {
	return string(memo.NewKey("chunking.BuildContext", c.identity()))
}

// Equal reports whether both contexts have the same configuration.
func (c *BuildContext) Equal(other *BuildContext) bool {
	return c.identity() == other.identity()
}

// ContextPath implements chunk.Context.
func (c *BuildContext) ContextPath() vpath.Path { return c.contextPath }

// OutputRoot implements chunk.Context.
func (c *BuildContext) OutputRoot() vpath.Path { return c.outputRoot }

// ChunkRoot returns the directory chunks are written to.
func (c *BuildContext) ChunkRoot() vpath.Path { return c.chunkRoot }

// AssetRoot returns the directory static assets are written to.
func (c *BuildContext) AssetRoot() vpath.Path { return c.assetRoot }

// Environment implements chunk.Context.
func (c *BuildContext) Environment() runtime.Environment { return c.environment }

// RuntimeType implements chunk.Context.
func (c *BuildContext) RuntimeType() runtime.Type { return c.runtimeType }

// Engine implements chunk.Context.
func (c *BuildContext) Engine() *memo.Engine { return c.engine }

// Minified reports whether script chunks are minified.
func (c *BuildContext) Minified() bool { return c.minify }

// Layer implements chunk.Context.
func (c *BuildContext) Layer() string { return c.layer }

// WithLayer implements chunk.Context.
func (c *BuildContext) WithLayer(layer string) chunk.Context {
	derived := *c
	derived.layer = layer
	return &derived
}

// ReferenceChunkSourceMaps implements chunk.Context. Build contexts always
// reference source maps.
func (c *BuildContext) ReferenceChunkSourceMaps(asset.Asset) bool {
	return true
}

// ChunkPath implements chunk.Context.
func (c *BuildContext) ChunkPath(_ context.Context, id ident.AssetIdent, ext string) (vpath.Path, error) {
	root := c.chunkRoot
	if c.layer != "" {
		root = root.Join(c.layer)
	}
	name := id.OutputName(c.contextPath, ext)
	if name == "" || name == ext {
		return "", fmt.Errorf("cannot derive a chunk name for %s", id)
	}
	return root.Join(name), nil
}

// AssetPath implements chunk.Context. The file is named after the original
// with the first eight characters of the content hash inserted before the
// extension.
func (c *BuildContext) AssetPath(contentHash string, original ident.AssetIdent) (vpath.Path, error) {
	if len(contentHash) < 8 {
		return "", fmt.Errorf("content hash %q of %s is too short", contentHash, original)
	}
	p := original.Path()
	if p.FileName() == "" {
		return "", fmt.Errorf("asset %s has no file name", original)
	}

	name := p.Stem() + "." + contentHash[:8]
	if ext, ok := p.Extension(); ok {
		name += "." + ext
	}
	return c.assetRoot.Join(name), nil
}

// CanBeInSameChunk implements chunk.Context. b may share a chunk with a
// when it lives in a's directory or below it, outside of node_modules.
func (c *BuildContext) CanBeInSameChunk(_ context.Context, a, b asset.Asset) (bool, error) {
	parent := a.Ident().Path().Parent()
	rel, ok := parent.PathTo(b.Ident().Path())
	if !ok {
		return false, nil
	}
	if strings.HasPrefix(rel, "node_modules/") || strings.Contains(rel, "/node_modules/") {
		return false, nil
	}
	return true, nil
}

var _ chunk.Context = (*BuildContext)(nil)
