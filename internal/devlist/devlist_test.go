package devlist_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunking"
	"github.com/conduit-lang/pack/internal/css"
	"github.com/conduit-lang/pack/internal/devlist"
	"github.com/conduit-lang/pack/internal/ecmascript"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/issue"
	"github.com/conduit-lang/pack/internal/memo"
	"github.com/conduit-lang/pack/internal/runtime"
	"github.com/conduit-lang/pack/internal/version"
	"github.com/conduit-lang/pack/internal/vpath"
)

type fixture struct {
	cc      *chunking.BuildContext
	index   *ecmascript.ModuleAsset
	sources map[string]*asset.InputSource
}

func newFixture(t *testing.T, chunkRoot string) *fixture {
	t.Helper()

	e, err := memo.NewEngine()
	require.NoError(t, err)

	f := &fixture{
		cc: chunking.NewBuilder(e,
			vpath.New("/project"),
			vpath.New("/project/dist"),
			vpath.New(chunkRoot),
			vpath.New("/project/dist/static"),
			runtime.NodeEnvironment(),
		).RuntimeType(runtime.TypeDummy).Build(),
		sources: make(map[string]*asset.InputSource),
	}
	src := func(p, content string) (ident.AssetIdent, *asset.InputSource) {
		id := ident.New(vpath.New(p))
		s := asset.NewInputSource(e, id, asset.NewStringContent(content))
		f.sources[p] = s
		return id, s
	}

	util := ecmascript.NewModuleAsset(src("/project/src/util.js", "exports.util = 1;"))
	lib := ecmascript.NewModuleAsset(src("/project/node_modules/lib/index.js", "exports.lib = 1;"))
	styles := css.NewModuleAsset(src("/project/src/styles.css", "body { margin: 0 }"))
	f.index = ecmascript.NewModuleAsset(src("/project/src/index.js", "require('./util');")).
		AddImport(util).
		AddImport(styles).
		AddImport(lib)
	return f
}

func (f *fixture) list(t *testing.T) *devlist.ChunkList {
	t.Helper()
	group, err := f.cc.ChunkGroup(context.Background(), f.index.AsRootChunk(f.cc))
	require.NoError(t, err)
	return devlist.New(f.cc, f.index.Ident(), group, devlist.SourceEntry)
}

func (f *fixture) content(t *testing.T) *devlist.Content {
	t.Helper()
	c, err := devlist.NewContent(context.Background(), f.list(t))
	require.NoError(t, err)
	return c
}

func TestChunkList_Paths(t *testing.T) {
	f := newFixture(t, "/project/dist/chunks")
	ctx := context.Background()
	l := f.list(t)

	p, err := l.OutputPath(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^/project/dist/chunks/src_index\.js_[0-9a-f]{8}\.js$`, p.String())
	assert.Equal(t, []string{"chunk list"}, l.Ident().Modifiers())

	c := f.content(t)
	rel, ok := vpath.New("/project/dist").PathTo(p)
	require.True(t, ok)
	assert.Equal(t, rel, c.ListPath())

	paths := c.Paths()
	require.Len(t, paths, 3)
	assert.Regexp(t, `^chunks/node_modules_lib_index\.js_[0-9a-f]{8}\.js$`, paths[0])
	assert.Regexp(t, `^chunks/src_index\.js_[0-9a-f]{8}\.js$`, paths[1])
	assert.Regexp(t, `^chunks/src_styles\.css_[0-9a-f]{8}\.css$`, paths[2])

	refs, err := l.References(ctx)
	require.NoError(t, err)
	assert.Len(t, refs, 3)
}

func TestContent_Code(t *testing.T) {
	f := newFixture(t, "/project/dist/chunks")
	c := f.content(t)

	src, err := c.Code()
	require.NoError(t, err)
	assert.Contains(t, src, "(globalThis.TURBOPACK = globalThis.TURBOPACK || []).push([\n")
	assert.Contains(t, src, "(globalThis.TURBOPACK_CHUNK_LISTS = globalThis.TURBOPACK_CHUNK_LISTS || []).push({")
	assert.Contains(t, src, `"source": "entry"`)
	for _, p := range c.Paths() {
		assert.Contains(t, src, `"`+p+`"`)
	}

	content, err := c.Content(context.Background())
	require.NoError(t, err)
	assert.Equal(t, src, content.String())
}

func TestNewContent_OutsideOutputRoot(t *testing.T) {
	f := newFixture(t, "/elsewhere/chunks")

	group, err := f.cc.ChunkGroup(context.Background(), f.index.AsRootChunk(f.cc))
	require.NoError(t, err)
	_, err = devlist.NewContent(context.Background(), devlist.New(f.cc, f.index.Ident(), group, devlist.SourceEntry))
	require.Error(t, err)

	var cfgErr *issue.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, vpath.New("/project/dist"), cfgErr.Root)
}

func TestVersion_Stable(t *testing.T) {
	f := newFixture(t, "/project/dist/chunks")
	ctx := context.Background()

	v1, err := f.content(t).Version(ctx)
	require.NoError(t, err)
	v2, err := f.content(t).Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, v1.ID(), v2.ID())

	dv := v1.(*devlist.Version)
	assert.Contains(t, dv.ByMerger, "ecmascript")
	assert.Len(t, dv.ByPath, 1, "only the style chunk is versioned by path")

	restored := devlist.FromSnapshot(dv.Snapshot())
	assert.Equal(t, v1.ID(), restored.ID())
}

func TestVersion_PlainMembersAreIndependent(t *testing.T) {
	f := newFixture(t, "/project/dist/chunks")
	ctx := context.Background()

	themeID := ident.New(vpath.New("/project/node_modules/theme/theme.css"))
	f.index.AddImport(css.NewModuleAsset(themeID,
		asset.NewInputSource(f.cc.Engine(), themeID, asset.NewStringContent(".theme {}"))))

	byPath := func(v version.Version) (styles, theme string) {
		t.Helper()
		dv := v.(*devlist.Version)
		require.Len(t, dv.ByPath, 2)
		for p, pv := range dv.ByPath {
			switch {
			case strings.HasPrefix(p, "chunks/src_styles.css_"):
				styles = pv.ID()
			case strings.HasPrefix(p, "chunks/node_modules_theme_theme.css_"):
				theme = pv.ID()
			}
		}
		require.NotEmpty(t, styles)
		require.NotEmpty(t, theme)
		return styles, theme
	}

	before, err := f.content(t).Version(ctx)
	require.NoError(t, err)
	stylesBefore, themeBefore := byPath(before)

	require.True(t, f.sources["/project/src/styles.css"].Update(asset.NewStringContent("body { margin: 1px }")))

	after, err := f.content(t).Version(ctx)
	require.NoError(t, err)
	stylesAfter, themeAfter := byPath(after)

	assert.NotEqual(t, before.ID(), after.ID())
	assert.NotEqual(t, stylesBefore, stylesAfter)
	assert.Equal(t, themeBefore, themeAfter)
	assert.Equal(t, before.(*devlist.Version).ByMerger["ecmascript"].ID(), after.(*devlist.Version).ByMerger["ecmascript"].ID())
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("no previous version", func(t *testing.T) {
		f := newFixture(t, "/project/dist/chunks")
		u, err := f.content(t).Update(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, version.UpdateTotal, u.Kind)
	})

	t.Run("unchanged", func(t *testing.T) {
		f := newFixture(t, "/project/dist/chunks")
		c := f.content(t)
		v, err := c.Version(ctx)
		require.NoError(t, err)

		u, err := c.Update(ctx, v)
		require.NoError(t, err)
		assert.Equal(t, version.UpdateNone, u.Kind)
	})

	t.Run("script module change is merged", func(t *testing.T) {
		f := newFixture(t, "/project/dist/chunks")
		before, err := f.content(t).Version(ctx)
		require.NoError(t, err)

		require.True(t, f.sources["/project/src/util.js"].Update(asset.NewStringContent("exports.util = 2;")))

		u, err := f.content(t).Update(ctx, before)
		require.NoError(t, err)
		require.Equal(t, version.UpdatePartial, u.Kind)

		lu, ok := u.Instruction.(devlist.ListUpdate)
		require.True(t, ok)
		assert.Empty(t, lu.Chunks)
		require.Len(t, lu.Merged, 1)
		assert.Equal(t, "ecmascript", lu.Merged[0].Merger)

		mu, ok := lu.Merged[0].Instruction.(ecmascript.MergedUpdate)
		require.True(t, ok)
		assert.Len(t, mu.Entries, 1)
		assert.Contains(t, mu.Entries["[project]/src/util.js"], "exports.util = 2;")
	})

	t.Run("style change replaces the chunk", func(t *testing.T) {
		f := newFixture(t, "/project/dist/chunks")
		before, err := f.content(t).Version(ctx)
		require.NoError(t, err)

		f.sources["/project/src/styles.css"].Update(asset.NewStringContent("body { margin: 1px }"))

		u, err := f.content(t).Update(ctx, before)
		require.NoError(t, err)
		require.Equal(t, version.UpdatePartial, u.Kind)

		lu := u.Instruction.(devlist.ListUpdate)
		require.Len(t, lu.Chunks, 1)
		for _, cu := range lu.Chunks {
			assert.Equal(t, "total", cu.Type)
		}
		assert.Empty(t, lu.Merged)
	})

	t.Run("from restored snapshot", func(t *testing.T) {
		f := newFixture(t, "/project/dist/chunks")
		before, err := f.content(t).Version(ctx)
		require.NoError(t, err)
		restored := devlist.FromSnapshot(before.(*devlist.Version).Snapshot())

		f.sources["/project/node_modules/lib/index.js"].Update(asset.NewStringContent("exports.lib = 2;"))

		u, err := f.content(t).Update(ctx, restored)
		require.NoError(t, err)
		require.Equal(t, version.UpdatePartial, u.Kind)

		raw, err := json.Marshal(u)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"type":"partial"`)
		assert.Contains(t, string(raw), `"merger":"ecmascript"`)
		assert.Contains(t, string(raw), `[project]/node_modules/lib/index.js`)
	})
}
