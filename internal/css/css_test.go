package css_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunking"
	"github.com/conduit-lang/pack/internal/css"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/issue"
	"github.com/conduit-lang/pack/internal/memo"
	"github.com/conduit-lang/pack/internal/runtime"
	"github.com/conduit-lang/pack/internal/vpath"
)

func newContext(t *testing.T) *chunking.BuildContext {
	t.Helper()
	e, err := memo.NewEngine()
	require.NoError(t, err)
	return chunking.NewBuilder(e,
		vpath.New("/project"),
		vpath.New("/project/dist"),
		vpath.New("/project/dist/chunks"),
		vpath.New("/project/dist/static"),
		runtime.NodeEnvironment(),
	).Build()
}

func sheet(cc *chunking.BuildContext, p, src string) *css.ModuleAsset {
	id := ident.New(vpath.New(p))
	return css.NewModuleAsset(id, asset.NewInputSource(cc.Engine(), id, asset.NewStringContent(src)))
}

func TestChunk_InlinesImports(t *testing.T) {
	cc := newContext(t)
	ctx := context.Background()

	reset := sheet(cc, "/project/src/base/reset.css", "* { box-sizing: border-box }")
	theme := sheet(cc, "/project/src/theme.css", ".dark { color: white }").AddImport(reset)
	vendor := sheet(cc, "/project/node_modules/ui/ui.css", ".btn {}")
	main := sheet(cc, "/project/src/main.css", "body { margin: 0 }").
		AddImport(theme).
		AddImport(reset).
		AddImport(vendor)

	c := css.NewChunk(cc, main)
	assert.Equal(t, asset.KindStyle, c.ChunkKind())

	p, err := c.OutputPath(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^/project/dist/chunks/src_main\.css_[0-9a-f]{8}\.css$`, p.String())

	content, err := c.Content(ctx)
	require.NoError(t, err)
	assert.Equal(t,
		"/* [project]/src/base/reset.css */\n* { box-sizing: border-box }\n"+
			"/* [project]/src/theme.css */\n.dark { color: white }\n"+
			"/* [project]/src/main.css */\nbody { margin: 0 }\n",
		content.String())

	parallel, err := c.ParallelChunks(ctx)
	require.NoError(t, err)
	require.Len(t, parallel, 1)
	assert.Equal(t, vendor.Ident().WithModifier("css chunk"), parallel[0].Ident())
}

func TestChunk_NotFound(t *testing.T) {
	cc := newContext(t)
	collector := issue.NewCollector()
	ctx := issue.WithCollector(context.Background(), collector)

	id := ident.New(vpath.New("/project/src/gone.css"))
	c := css.NewChunk(cc, css.NewModuleAsset(id, asset.StaticSource(asset.NotFound())))

	content, err := c.Content(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/* [project]/src/gone.css */\n/* not found */\n", content.String())
	require.Len(t, collector.Issues(), 1)
	assert.Equal(t, issue.CategoryResolve, collector.Issues()[0].Category)
}

func TestChunk_UnchunkableImport(t *testing.T) {
	cc := newContext(t)

	main := sheet(cc, "/project/src/main.css", "").AddImport(opaque{ident.New(vpath.New("/elsewhere/x.bin"))})
	_, err := css.NewChunk(cc, main).ParallelChunks(context.Background())
	require.Error(t, err)

	var shapeErr *issue.GraphShapeError
	assert.True(t, errors.As(err, &shapeErr))
}

type opaque struct{ id ident.AssetIdent }

func (o opaque) Ident() ident.AssetIdent { return o.id }

func (o opaque) Content(context.Context) (asset.Content, error) { return asset.NotFound(), nil }

func (o opaque) References(context.Context) ([]asset.Reference, error) { return nil, nil }
