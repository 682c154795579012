package devlist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/code"
	"github.com/conduit-lang/pack/internal/issue"
	"github.com/conduit-lang/pack/internal/version"
)

// Content is the versioned content of a chunk list. Paths are relative to
// the output root.
type Content struct {
	listPath string
	paths    []string
	contents map[string]version.Content
	source   Source
}

// NewContent resolves the list path and every member. It fails when the
// list or any member lies outside the output root.
func NewContent(ctx context.Context, l *ChunkList) (*Content, error) {
	root := l.cc.OutputRoot()

	listPath, err := l.OutputPath(ctx)
	if err != nil {
		return nil, err
	}
	rel, ok := root.PathTo(listPath)
	if !ok {
		return nil, issue.NewConfigError("chunk list", listPath, root)
	}

	paths := make([]string, len(l.chunks))
	contents := make([]version.Content, len(l.chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range l.chunks {
		i, c := i, c
		g.Go(func() error {
			p, err := c.OutputPath(gctx)
			if err != nil {
				return err
			}
			memberRel, ok := root.PathTo(p)
			if !ok {
				return issue.NewConfigError("chunk", p, root)
			}
			vc, err := version.Of(gctx, c)
			if err != nil {
				return fmt.Errorf("versioned content of %s: %w", p, err)
			}
			paths[i], contents[i] = memberRel, vc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Content{
		listPath: rel,
		contents: make(map[string]version.Content, len(paths)),
		source:   l.source,
	}
	for i, p := range paths {
		if _, dup := out.contents[p]; dup {
			continue
		}
		out.paths = append(out.paths, p)
		out.contents[p] = contents[i]
	}
	return out, nil
}

// ListPath returns the path of the list relative to the output root.
func (c *Content) ListPath() string {
	return c.listPath
}

// Paths returns the member paths in list order.
func (c *Content) Paths() []string {
	out := make([]string, len(c.paths))
	copy(out, c.paths)
	return out
}

type registration struct {
	Path   string   `json:"path"`
	Chunks []string `json:"chunks"`
	Source Source   `json:"source"`
}

// Code renders the registration script. It pushes the list onto the chunk
// queue and its parameters onto the chunk list queue.
func (c *Content) Code() (string, error) {
	listPath, err := json.Marshal(c.listPath)
	if err != nil {
		return "", err
	}
	chunks := c.paths
	if chunks == nil {
		chunks = []string{}
	}
	params, err := json.MarshalIndent(registration{Path: c.listPath, Chunks: chunks, Source: c.source}, "", "    ")
	if err != nil {
		return "", err
	}

	var b code.Builder
	b.Writeln("(globalThis.TURBOPACK = globalThis.TURBOPACK || []).push([")
	b.Writef("    %s,\n", listPath)
	b.Writeln("    {},")
	b.Writeln("]);")
	b.Writef("(globalThis.TURBOPACK_CHUNK_LISTS = globalThis.TURBOPACK_CHUNK_LISTS || []).push(%s);\n", params)
	return b.String(), nil
}

// Content implements version.Content.
func (c *Content) Content(context.Context) (asset.Content, error) {
	src, err := c.Code()
	if err != nil {
		return asset.Content{}, err
	}
	return asset.NewStringContent(src), nil
}

type mergeGroup struct {
	merger   version.Merger
	contents []version.Content
}

// split separates plain members, keyed by path, from merged members, keyed
// by merger.
func (c *Content) split(ctx context.Context) (map[string]version.Content, map[string]version.Content, error) {
	plain := make(map[string]version.Content)
	groups := make(map[string]*mergeGroup)
	var keys []string

	for _, p := range c.paths {
		vc := c.contents[p]
		m, ok := vc.(version.Mergeable)
		if !ok {
			plain[p] = vc
			continue
		}
		key := m.Merger().Key()
		g, ok := groups[key]
		if !ok {
			g = &mergeGroup{merger: m.Merger()}
			groups[key] = g
			keys = append(keys, key)
		}
		g.contents = append(g.contents, vc)
	}

	merged := make(map[string]version.Content, len(groups))
	for _, key := range keys {
		g := groups[key]
		mc, err := g.merger.Merge(ctx, g.contents)
		if err != nil {
			return nil, nil, fmt.Errorf("merging %s contents: %w", key, err)
		}
		merged[key] = mc
	}
	return plain, merged, nil
}

// Version implements version.Content.
func (c *Content) Version(ctx context.Context) (version.Version, error) {
	return c.version(ctx)
}

func (c *Content) version(ctx context.Context) (*Version, error) {
	plain, merged, err := c.split(ctx)
	if err != nil {
		return nil, err
	}

	v := &Version{
		ByPath:   make(map[string]version.Version, len(plain)),
		ByMerger: make(map[string]version.Version, len(merged)),
	}
	for p, vc := range plain {
		pv, err := vc.Version(ctx)
		if err != nil {
			return nil, fmt.Errorf("version of %s: %w", p, err)
		}
		v.ByPath[p] = pv
	}
	for key, mc := range merged {
		mv, err := mc.Version(ctx)
		if err != nil {
			return nil, fmt.Errorf("version of %s merger: %w", key, err)
		}
		v.ByMerger[key] = mv
	}
	return v, nil
}

// ChunkUpdate describes how one member chunk changed.
type ChunkUpdate struct {
	Type        string `json:"type"`
	Instruction any    `json:"instruction,omitempty"`
}

// MergedUpdate is the update of one merger.
type MergedUpdate struct {
	Merger      string `json:"merger"`
	Instruction any    `json:"instruction"`
}

// ListUpdate is the instruction of a partial chunk list update.
type ListUpdate struct {
	Chunks map[string]ChunkUpdate `json:"chunks,omitempty"`
	Merged []MergedUpdate         `json:"merged,omitempty"`
}

// Update implements version.Content.
func (c *Content) Update(ctx context.Context, from version.Version) (version.Update, error) {
	to, err := c.version(ctx)
	if err != nil {
		return version.Update{}, err
	}

	prev, ok := from.(*Version)
	if !ok || prev == nil {
		return version.TotalUpdate(to), nil
	}
	if prev.ID() == to.ID() {
		return version.NoUpdate(), nil
	}

	plain, merged, err := c.split(ctx)
	if err != nil {
		return version.Update{}, err
	}

	update := ListUpdate{Chunks: make(map[string]ChunkUpdate)}
	for _, p := range sortedKeys(plain) {
		old, had := prev.ByPath[p]
		if !had {
			update.Chunks[p] = ChunkUpdate{Type: "added"}
			continue
		}
		u, err := plain[p].Update(ctx, old)
		if err != nil {
			return version.Update{}, fmt.Errorf("update of %s: %w", p, err)
		}
		switch u.Kind {
		case version.UpdateTotal:
			update.Chunks[p] = ChunkUpdate{Type: "total"}
		case version.UpdatePartial:
			update.Chunks[p] = ChunkUpdate{Type: "partial", Instruction: u.Instruction}
		}
	}
	for p := range prev.ByPath {
		if _, ok := plain[p]; !ok {
			update.Chunks[p] = ChunkUpdate{Type: "deleted"}
		}
	}

	for key := range prev.ByMerger {
		if _, ok := merged[key]; !ok {
			// The client cannot drop a whole merger incrementally.
			return version.TotalUpdate(to), nil
		}
	}
	for _, key := range sortedKeys(merged) {
		u, err := merged[key].Update(ctx, prev.ByMerger[key])
		if err != nil {
			return version.Update{}, fmt.Errorf("update of %s merger: %w", key, err)
		}
		switch u.Kind {
		case version.UpdateTotal:
			return version.TotalUpdate(to), nil
		case version.UpdatePartial:
			update.Merged = append(update.Merged, MergedUpdate{Merger: key, Instruction: u.Instruction})
		}
	}

	if len(update.Chunks) == 0 && len(update.Merged) == 0 {
		return version.NoUpdate(), nil
	}
	return version.PartialUpdate(to, update), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
