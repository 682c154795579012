package chunk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/vpath"
)

type testChunk struct {
	name     string
	kind     asset.Kind
	parallel []asset.Chunk
	path     vpath.Path
}

func newTestChunk(name string, kind asset.Kind, parallel ...asset.Chunk) *testChunk {
	return &testChunk{name: name, kind: kind, parallel: parallel, path: vpath.New("/out/" + name)}
}

func (c *testChunk) Ident() ident.AssetIdent { return ident.New(vpath.New("/src/" + c.name)) }
func (c *testChunk) Content(context.Context) (asset.Content, error) {
	return asset.NewStringContent(c.name), nil
}
func (c *testChunk) References(context.Context) ([]asset.Reference, error) { return nil, nil }
func (c *testChunk) ParallelChunks(context.Context) ([]asset.Chunk, error) { return c.parallel, nil }
func (c *testChunk) ChunkKind() asset.Kind { return c.kind }
func (c *testChunk) OutputPath(context.Context) (vpath.Path, error) { return c.path, nil }

func names(chunks []asset.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.(*testChunk).name
	}
	return out
}

func TestParallelChunks_Diamond(t *testing.T) {
	d := newTestChunk("D", asset.KindScript)
	b := newTestChunk("B", asset.KindScript, d)
	c := newTestChunk("C", asset.KindScript, d)
	a := newTestChunk("A", asset.KindScript, b, c)

	got, err := ParallelChunks(context.Background(), []asset.Chunk{a})
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "B", "C", "A"}, names(got))
}

func TestParallelChunks_Idempotent(t *testing.T) {
	shared := newTestChunk("shared", asset.KindStyle)
	a := newTestChunk("a", asset.KindScript, shared)
	b := newTestChunk("b", asset.KindScript, shared, a)

	first, err := ParallelChunks(context.Background(), []asset.Chunk{b})
	require.NoError(t, err)
	second, err := ParallelChunks(context.Background(), []asset.Chunk{b})
	require.NoError(t, err)
	assert.Equal(t, names(first), names(second))
	assert.Equal(t, []string{"shared", "a", "b"}, names(first))
}

func TestParallelChunks_DuplicateIdentsAreOneNode(t *testing.T) {
	// Two distinct values naming the same asset
	d1 := newTestChunk("D", asset.KindScript)
	d2 := newTestChunk("D", asset.KindScript)
	a := newTestChunk("A", asset.KindScript, d1, d2)

	got, err := ParallelChunks(context.Background(), []asset.Chunk{a})
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "A"}, names(got))
}

func TestParallelChunks_Empty(t *testing.T) {
	got, err := ParallelChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestOptimize(t *testing.T) {
	css1 := newTestChunk("css1", asset.KindStyle)
	js1 := newTestChunk("js1", asset.KindScript)
	other1 := newTestChunk("other1", asset.KindOther)
	js2 := newTestChunk("js2", asset.KindScript)

	got := Optimize([]asset.Chunk{css1, js1, other1, js2})
	assert.Equal(t, []string{"js1", "js2", "css1", "other1"}, names(got))
	assert.Empty(t, Optimize(nil))
}

func TestDataFromAssets(t *testing.T) {
	inside := newTestChunk("a.js", asset.KindScript)
	outside := newTestChunk("b.js", asset.KindScript)
	outside.path = vpath.New("/elsewhere/b.js")

	data, err := DataFromAssets(context.Background(), vpath.New("/out"), []asset.Output{inside, outside})
	require.NoError(t, err)
	require.Len(t, data, 1)
	assert.Equal(t, []string{"a.js"}, Paths(data))
	refs := DataReferences(data)
	require.Len(t, refs, 1)
	assert.Same(t, inside, refs[0].Asset)
}

func TestEvaluatableAssets(t *testing.T) {
	a := newTestChunkable("a.js")
	b := newTestChunkable("b.js")

	set := NewEvaluatableAssets(a, b, a)
	assert.Equal(t, 2, set.Len())

	extended := set.With(newTestChunkable("c.js"))
	assert.Equal(t, 2, set.Len(), "With does not modify the receiver")
	assert.Equal(t, 3, extended.Len())
	assert.NotEqual(t, set.Fingerprint(), extended.Fingerprint())
	assert.Equal(t, set.Fingerprint(), NewEvaluatableAssets(a, b).Fingerprint())

	var empty *EvaluatableAssets
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Items())
}

type testChunkable struct {
	*testChunk
}

func newTestChunkable(name string) testChunkable {
	return testChunkable{newTestChunk(name, asset.KindScript)}
}

func (c testChunkable) AsRootChunk(Context) asset.Chunk { return c.testChunk }
