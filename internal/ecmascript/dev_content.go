package ecmascript

import (
	"context"
	"fmt"
	"sort"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunk"
	"github.com/conduit-lang/pack/internal/code"
	"github.com/conduit-lang/pack/internal/issue"
	"github.com/conduit-lang/pack/internal/version"
)

// DevChunkContent is the development rendering of a script chunk: a push
// of the chunk's module map onto the global chunk queue. It is mergeable so
// that a chunk list tracks module level versions across all its script
// chunks.
type DevChunkContent struct {
	chunkPath string
	entries   []devEntry
}

type devEntry struct {
	id   string
	code string
	hash string
}

// NewDevChunkContent renders c for development. The chunk path is relative
// to the output root of c's context.
func NewDevChunkContent(ctx context.Context, c *Chunk) (*DevChunkContent, error) {
	cc := c.Context()
	p, err := cc.ChunkPath(ctx, c.Ident(), ".js")
	if err != nil {
		return nil, err
	}
	rel, ok := cc.OutputRoot().PathTo(p)
	if !ok {
		return nil, issue.NewConfigError("chunk", p, cc.OutputRoot())
	}

	factories, err := c.ModuleFactories(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]devEntry, len(factories))
	for i, f := range factories {
		entries[i] = devEntry{id: f.ID, code: f.Code, hash: asset.NewStringContent(f.Code).Hash()}
	}
	return &DevChunkContent{chunkPath: rel, entries: entries}, nil
}

// Content implements version.Content.
func (d *DevChunkContent) Content(context.Context) (asset.Content, error) {
	var b code.Builder
	b.Writef("(globalThis.TURBOPACK = globalThis.TURBOPACK || []).push([%s, {\n", StringifyJs(d.chunkPath))
	for _, e := range d.entries {
		b.Writef("%s: %s,\n", StringifyJs(e.id), e.code)
	}
	b.Writeln("}]);")
	return asset.NewStringContent(b.String()), nil
}

func (d *DevChunkContent) entryVersion() version.MapVersion {
	v := make(version.MapVersion, len(d.entries))
	for _, e := range d.entries {
		v[e.id] = e.hash
	}
	return v
}

// Version implements version.Content.
func (d *DevChunkContent) Version(context.Context) (version.Version, error) {
	return d.entryVersion(), nil
}

// Update implements version.Content. A single chunk is always replaced as
// a whole; module level updates go through the merged content.
func (d *DevChunkContent) Update(ctx context.Context, from version.Version) (version.Update, error) {
	to := d.entryVersion()
	if version.Equal(from, to) {
		return version.NoUpdate(), nil
	}
	return version.TotalUpdate(to), nil
}

// Merger implements version.Mergeable.
func (d *DevChunkContent) Merger() version.Merger {
	return Merger
}

// Merger merges the development contents of script chunks.
var Merger version.Merger = scriptMerger{}

type scriptMerger struct{}

func (scriptMerger) Key() string {
	return "ecmascript"
}

func (scriptMerger) Merge(ctx context.Context, contents []version.Content) (version.Content, error) {
	merged := &MergedContent{entries: make(map[string]devEntry)}
	for _, c := range contents {
		d, ok := c.(*DevChunkContent)
		if !ok {
			return nil, fmt.Errorf("script merger cannot merge %T", c)
		}
		for _, e := range d.entries {
			if _, exists := merged.entries[e.id]; !exists {
				merged.entries[e.id] = e
			}
		}
	}
	return merged, nil
}

// MergedContent is the union of the modules of several script chunks.
type MergedContent struct {
	entries map[string]devEntry
}

// MergedUpdate is the instruction of a partial merged update: new or
// changed module factories and removed module ids.
type MergedUpdate struct {
	Entries map[string]string `json:"entries,omitempty"`
	Deleted []string          `json:"deleted,omitempty"`
}

func (m *MergedContent) ids() []string {
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Content implements version.Content.
func (m *MergedContent) Content(context.Context) (asset.Content, error) {
	var b code.Builder
	b.Writeln("({")
	for _, id := range m.ids() {
		b.Writef("%s: %s,\n", StringifyJs(id), m.entries[id].code)
	}
	b.Writeln("})")
	return asset.NewStringContent(b.String()), nil
}

func (m *MergedContent) mapVersion() version.MapVersion {
	v := make(version.MapVersion, len(m.entries))
	for id, e := range m.entries {
		v[id] = e.hash
	}
	return v
}

// Version implements version.Content.
func (m *MergedContent) Version(context.Context) (version.Version, error) {
	return m.mapVersion(), nil
}

// Update implements version.Content. A client without a version receives
// every module.
func (m *MergedContent) Update(ctx context.Context, from version.Version) (version.Update, error) {
	to := m.mapVersion()

	var prev version.MapVersion
	if from != nil {
		mv, ok := from.(version.MapVersion)
		if !ok {
			return version.TotalUpdate(to), nil
		}
		prev = mv
	}

	update := MergedUpdate{Entries: make(map[string]string)}
	for _, id := range m.ids() {
		e := m.entries[id]
		if old, ok := prev[id]; !ok || old != e.hash {
			update.Entries[id] = e.code
		}
	}
	for id := range prev {
		if _, ok := m.entries[id]; !ok {
			update.Deleted = append(update.Deleted, id)
		}
	}
	sort.Strings(update.Deleted)

	if len(update.Entries) == 0 && len(update.Deleted) == 0 {
		return version.NoUpdate(), nil
	}
	return version.PartialUpdate(to, update), nil
}

var (
	_ version.Mergeable = (*DevChunkContent)(nil)
	_ version.Content   = (*MergedContent)(nil)
	_ chunk.Chunkable   = (*ModuleAsset)(nil)
	_ Placeable         = (*ManifestChunkAsset)(nil)
	_ ChunkItem         = (*ManifestLoaderItem)(nil)
)
