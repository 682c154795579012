package chunk

import (
	"context"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/vpath"
)

// Data describes an emitted chunk to a runtime loader: its path relative to
// the output root.
type Data struct {
	Path  string
	Chunk asset.Output
}

// DataFromAssets builds chunk data for every chunk that lives inside
// outputRoot. Chunks outside the output root cannot be loaded by the runtime
// and are skipped.
func DataFromAssets(ctx context.Context, outputRoot vpath.Path, chunks []asset.Output) ([]Data, error) {
	out := make([]Data, 0, len(chunks))
	for _, c := range chunks {
		p, err := c.OutputPath(ctx)
		if err != nil {
			return nil, err
		}
		rel, ok := outputRoot.PathTo(p)
		if !ok || rel == "" {
			continue
		}
		out = append(out, Data{Path: rel, Chunk: c})
	}
	return out, nil
}

// Paths returns the relative paths of data.
func Paths(data []Data) []string {
	out := make([]string, len(data))
	for i, d := range data {
		out[i] = d.Path
	}
	return out
}

// References returns references to the chunks behind the data.
func (d Data) References() []asset.Reference {
	return []asset.Reference{{Asset: d.Chunk, Description: "chunk data " + d.Path}}
}

// DataReferences collects the references of all data entries.
func DataReferences(data []Data) []asset.Reference {
	var refs []asset.Reference
	for _, d := range data {
		refs = append(refs, d.References()...)
	}
	return refs
}
