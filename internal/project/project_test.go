package project

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunking"
	"github.com/conduit-lang/pack/internal/css"
	"github.com/conduit-lang/pack/internal/ecmascript"
	"github.com/conduit-lang/pack/internal/memo"
	"github.com/conduit-lang/pack/internal/runtime"
	"github.com/conduit-lang/pack/internal/static"
	"github.com/conduit-lang/pack/internal/vpath"
)

const graphYAML = `
modules:
  - path: src/index.js
    imports: [src/util.js, src/styles.css, src/logo.png]
    dynamic_imports: [src/lazy.js]
  - path: src/util.js
  - path: src/lazy.js
  - path: src/polyfill.js
  - path: src/styles.css
  - path: src/logo.png
  - path: src/gone.js
entries:
  - name: main
    module: src/index.js
    evaluate: [src/polyfill.js]
  - name: lib
    module: src/util.js
    exported: true
`

func writeProject(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	files := map[string]string{
		"/app/pack.graph.yml":  graphYAML,
		"/app/src/index.js":    "require('./util');",
		"/app/src/util.js":     "exports.util = 1;",
		"/app/src/lazy.js":     "exports.lazy = 1;",
		"/app/src/polyfill.js": "globalThis.p = 1;",
		"/app/src/styles.css":  "body {}",
		"/app/src/logo.png":    "\x89PNG",
	}
	for p, content := range files {
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0o644))
	}
	return fs
}

func loadProject(t *testing.T, fs afero.Fs) (*Project, *chunking.BuildContext) {
	t.Helper()
	e, err := memo.NewEngine()
	require.NoError(t, err)

	p, err := Load(fs, vpath.New("/app"), "", e, zap.NewNop())
	require.NoError(t, err)

	cc := chunking.NewBuilder(e,
		vpath.New("/app"),
		vpath.New("/app/dist"),
		vpath.New("/app/dist/chunks"),
		vpath.New("/app/dist/static"),
		runtime.NodeEnvironment(),
	).Build()
	return p, cc
}

func TestKindForPath(t *testing.T) {
	tests := []struct {
		path     string
		expected ModuleKind
	}{
		{"a.js", KindScript},
		{"a.MJS", KindScript},
		{"a.tsx", KindScript},
		{"a.css", KindStyle},
		{"a.png", KindStatic},
		{"fonts/a.woff2", KindStatic},
		{"LICENSE", KindStatic},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindForPath(tt.path))
		})
	}
}

func TestParseGraph_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{
			name: "valid",
			yaml: "modules:\n  - path: a.js\nentries:\n  - name: a\n    module: a.js\n",
		},
		{
			name:    "unknown field",
			yaml:    "modules:\n  - path: a.js\n    import: [b.js]\n",
			wantErr: []string{"field import not found"},
		},
		{
			name: "several problems",
			yaml: `
modules:
  - path: a.js
    imports: [missing.js]
    dynamic_imports: [b.css]
  - path: a.js
  - path: b.css
  - path: c.png
    imports: [a.js]
entries:
  - name: e
    module: b.css
`,
			wantErr: []string{
				"unknown import missing.js",
				"dynamic import b.css is not a script",
				"a.js: declared twice",
				"static modules cannot import",
				`module "b.css" is not a declared script`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := ParseGraph([]byte(tt.yaml))
			if len(tt.wantErr) == 0 {
				require.NoError(t, err)
				assert.NotNil(t, g)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	p, _ := loadProject(t, writeProject(t))

	index, ok := p.Module("src/index.js")
	require.True(t, ok)
	assert.IsType(t, &ecmascript.ModuleAsset{}, index)

	styles, _ := p.Module("src/styles.css")
	assert.IsType(t, &css.ModuleAsset{}, styles)
	logo, _ := p.Module("src/logo.png")
	assert.IsType(t, &static.ModuleAsset{}, logo)

	refs, err := index.References(context.Background())
	require.NoError(t, err)
	assert.Len(t, refs, 4)

	gone, _ := p.Module("src/gone.js")
	content, err := gone.Content(context.Background())
	require.NoError(t, err)
	assert.False(t, content.Found())

	main, ok := p.Entry("main")
	require.True(t, ok)
	items := main.Evaluatables.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "/app/src/polyfill.js", items[0].Ident().Path().String())
	assert.Equal(t, "/app/src/index.js", items[1].Ident().Path().String())

	assert.Len(t, p.SourcePaths(), 7)
}

func TestLoad_MissingGraph(t *testing.T) {
	e, err := memo.NewEngine()
	require.NoError(t, err)

	_, err = Load(afero.NewMemMapFs(), vpath.New("/app"), "", e, nil)
	assert.Error(t, err)
}

func TestOutputs(t *testing.T) {
	p, cc := loadProject(t, writeProject(t))
	ctx := context.Background()

	main, _ := p.Entry("main")
	outputs, err := p.Outputs(ctx, cc, main)
	require.NoError(t, err)
	require.NotEmpty(t, outputs)
	last, ok := outputs[len(outputs)-1].(*chunking.EvaluateChunk)
	require.True(t, ok)
	content, err := last.Content(ctx)
	require.NoError(t, err)
	assert.Contains(t, content.String(), `"[project]/src/polyfill.js"`)

	lib, _ := p.Entry("lib")
	exported, err := p.Outputs(ctx, cc, lib)
	require.NoError(t, err)
	require.Len(t, exported, 1)

	list, err := p.ChunkList(ctx, cc, main)
	require.NoError(t, err)
	assert.Equal(t, len(outputs), len(list.Chunks()))
}

// indexChunk returns the node chunk holding src/index.js.
func indexChunk(t *testing.T, outputs []asset.Output) asset.Output {
	t.Helper()
	for _, o := range outputs {
		if _, ok := o.(*chunking.NodeChunk); !ok {
			continue
		}
		p, err := o.OutputPath(context.Background())
		require.NoError(t, err)
		if strings.HasPrefix(p.FileName(), "src_index.js_") {
			return o
		}
	}
	require.FailNow(t, "no chunk for src/index.js")
	return nil
}

func TestRefresh(t *testing.T) {
	fs := writeProject(t)
	p, cc := loadProject(t, fs)
	ctx := context.Background()

	main, _ := p.Entry("main")
	before, err := p.Outputs(ctx, cc, main)
	require.NoError(t, err)
	beforeContent, err := indexChunk(t, before).Content(ctx)
	require.NoError(t, err)

	require.NoError(t, afero.WriteFile(fs, "/app/src/util.js", []byte("exports.util = 2;"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/app/src/gone.js", []byte("exports.back = 1;"), 0o644))

	changed, err := p.Refresh([]string{"/app/src/util.js", "/app/src/gone.js", "/app/src/index.js", "/elsewhere.js"})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/gone.js", "src/util.js"}, changed)

	after, err := p.Outputs(ctx, cc, main)
	require.NoError(t, err)
	afterContent, err := indexChunk(t, after).Content(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, beforeContent.String(), afterContent.String())
	assert.True(t, strings.Contains(afterContent.String(), "exports.util = 2;"))
}
