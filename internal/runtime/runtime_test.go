package runtime

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChunkLoading(t *testing.T) {
	tests := []struct {
		input   string
		want    ChunkLoading
		wantErr bool
	}{
		{"", ChunkLoadingNone, false},
		{"none", ChunkLoadingNone, false},
		{"node", ChunkLoadingNode, false},
		{"NodeJS", ChunkLoadingNode, false},
		{"dom", ChunkLoadingDOM, false},
		{"worker", ChunkLoadingNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChunkLoading(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDevRuntimeCode(t *testing.T) {
	for _, loading := range []ChunkLoading{ChunkLoadingNone, ChunkLoadingNode, ChunkLoadingDOM} {
		t.Run(loading.String(), func(t *testing.T) {
			src := DevRuntimeCode(Environment{ChunkLoading: loading})

			assert.True(t, strings.HasPrefix(src, "(() => {\nif (!Array.isArray(globalThis.TURBOPACK)) {"))
			assert.Contains(t, src, "function registerChunk(")
			assert.Contains(t, src, "function loadChunk(")
			assert.Contains(t, src, "globalThis.TURBOPACK = { push: registerChunk };")
			assert.True(t, strings.HasSuffix(src, "})();\n"))
			assert.Equal(t, src, DevRuntimeCode(Environment{ChunkLoading: loading}))
		})
	}

	assert.Contains(t, DevRuntimeCode(Environment{ChunkLoading: ChunkLoadingDOM}), "document.createElement")
	assert.Contains(t, DevRuntimeCode(NodeEnvironment()), `require("path")`)
}

func TestBuildRuntimeCode(t *testing.T) {
	src := BuildRuntimeCode(NodeEnvironment(), TypeDefault)
	assert.Contains(t, src, `const CHUNK_LOADING = "node";`)
	assert.Contains(t, src, "const runtime = {")
	assert.Contains(t, src, "getOrInstantiateRuntimeModule")

	dummy := BuildRuntimeCode(NodeEnvironment(), TypeDummy)
	assert.NotContains(t, dummy, "moduleFactories")
	assert.Contains(t, dummy, "const runtime")
}

func TestEnvironment_Fingerprint(t *testing.T) {
	assert.Equal(t, NodeEnvironment().Fingerprint(), Environment{ChunkLoading: ChunkLoadingNode}.Fingerprint())
	assert.NotEqual(t, NodeEnvironment().Fingerprint(), Environment{}.Fingerprint())
}
