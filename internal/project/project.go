package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"sync"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunk"
	"github.com/conduit-lang/pack/internal/chunking"
	"github.com/conduit-lang/pack/internal/css"
	"github.com/conduit-lang/pack/internal/devlist"
	"github.com/conduit-lang/pack/internal/ecmascript"
	"github.com/conduit-lang/pack/internal/ident"
	"github.com/conduit-lang/pack/internal/memo"
	"github.com/conduit-lang/pack/internal/static"
	"github.com/conduit-lang/pack/internal/vpath"
)

// Entry is a resolved entry point.
type Entry struct {
	Name         string
	Module       ecmascript.Placeable
	Evaluatables *chunk.EvaluatableAssets
	Exported     bool
}

// Project holds the assets of a loaded graph. Sources are memo inputs, so
// Refresh invalidates exactly the computations that read changed files.
type Project struct {
	fs     afero.Fs
	root   vpath.Path
	logger *zap.Logger

	mu      sync.Mutex
	modules map[string]asset.Asset
	sources map[vpath.Path]*asset.InputSource
	order   []string
	entries []*Entry
}

// Load reads the graph file graphFile (relative to root) and creates the
// assets it declares.
func Load(afs afero.Fs, root vpath.Path, graphFile string, engine *memo.Engine, logger *zap.Logger) (*Project, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if graphFile == "" {
		graphFile = DefaultGraphFile
	}

	g, err := LoadGraph(afs, root.Join(graphFile).String())
	if err != nil {
		return nil, err
	}
	return New(afs, root, g, engine, logger)
}

// New creates the assets of an already parsed graph.
func New(afs afero.Fs, root vpath.Path, g *Graph, engine *memo.Engine, logger *zap.Logger) (*Project, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Project{
		fs:      afs,
		root:    root,
		logger:  logger,
		modules: make(map[string]asset.Asset, len(g.Modules)),
		sources: make(map[vpath.Path]*asset.InputSource, len(g.Modules)),
	}

	for _, ms := range g.Modules {
		abs := root.Join(ms.Path)
		id := ident.New(abs)
		content, err := p.read(abs)
		if err != nil {
			return nil, err
		}
		src := asset.NewInputSource(engine, id, content)
		p.sources[abs] = src
		p.order = append(p.order, ms.Path)

		switch ms.ResolvedKind() {
		case KindScript:
			p.modules[ms.Path] = ecmascript.NewModuleAsset(id, src)
		case KindStyle:
			p.modules[ms.Path] = css.NewModuleAsset(id, src)
		default:
			p.modules[ms.Path] = static.NewModuleAsset(id, src)
		}
	}

	// Imports are wired once every module exists.
	for _, ms := range g.Modules {
		switch m := p.modules[ms.Path].(type) {
		case *ecmascript.ModuleAsset:
			for _, imp := range ms.Imports {
				m.AddImport(p.modules[imp])
			}
			for _, imp := range ms.DynamicImports {
				m.AddDynamicImport(p.modules[imp])
			}
		case *css.ModuleAsset:
			for _, imp := range ms.Imports {
				m.AddImport(p.modules[imp])
			}
		}
	}

	for _, es := range g.Entries {
		main := p.modules[es.Module].(*ecmascript.ModuleAsset)
		evaluatables := chunk.NewEvaluatableAssets()
		for _, ev := range es.Evaluate {
			evaluatables = evaluatables.With(p.modules[ev].(*ecmascript.ModuleAsset))
		}
		p.entries = append(p.entries, &Entry{
			Name:         es.Name,
			Module:       main,
			Evaluatables: evaluatables.With(main),
			Exported:     es.Exported,
		})
	}

	logger.Debug("project loaded",
		zap.String("root", root.String()),
		zap.Int("modules", len(p.modules)),
		zap.Int("entries", len(p.entries)))
	return p, nil
}

func (p *Project) read(abs vpath.Path) (asset.Content, error) {
	data, err := afero.ReadFile(p.fs, abs.String())
	if errors.Is(err, fs.ErrNotExist) {
		return asset.NotFound(), nil
	}
	if err != nil {
		return asset.Content{}, fmt.Errorf("failed to read %s: %w", abs, err)
	}
	return asset.NewContent(data), nil
}

// Root returns the project root.
func (p *Project) Root() vpath.Path {
	return p.root
}

// Module returns the asset declared at rel.
func (p *Project) Module(rel string) (asset.Asset, bool) {
	m, ok := p.modules[rel]
	return m, ok
}

// Entries returns the entries in declaration order.
func (p *Project) Entries() []*Entry {
	return p.entries
}

// Entry returns the entry called name.
func (p *Project) Entry(name string) (*Entry, bool) {
	for _, e := range p.entries {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// SourcePaths returns the absolute paths of every module source, sorted.
func (p *Project) SourcePaths() []string {
	out := make([]string, 0, len(p.sources))
	for abs := range p.sources {
		out = append(out, abs.String())
	}
	sort.Strings(out)
	return out
}

// Refresh rereads the given files. It returns the paths, relative to the
// root, whose content changed; unknown files are ignored.
func (p *Project) Refresh(paths []string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var changed []string
	for _, raw := range paths {
		abs := vpath.New(raw)
		src, ok := p.sources[abs]
		if !ok {
			continue
		}
		content, err := p.read(abs)
		if err != nil {
			return changed, err
		}
		if src.Update(content) {
			rel, _ := p.root.PathTo(abs)
			changed = append(changed, rel)
			p.logger.Debug("source changed", zap.String("path", rel))
		}
	}
	sort.Strings(changed)
	return changed, nil
}

// Outputs returns the top level outputs of e: the evaluated chunk group,
// or the single exported chunk.
func (p *Project) Outputs(ctx context.Context, cc *chunking.BuildContext, e *Entry) ([]asset.Output, error) {
	if e.Exported {
		out, err := cc.GenerateExportedChunk(ctx, e.Module, e.Evaluatables)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Name, err)
		}
		return []asset.Output{out}, nil
	}

	outputs, err := cc.EvaluatedChunkGroup(ctx, e.Module.AsRootChunk(cc), e.Evaluatables)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", e.Name, err)
	}
	return outputs, nil
}

// ChunkList returns the dev chunk list registering the outputs of e.
func (p *Project) ChunkList(ctx context.Context, cc *chunking.BuildContext, e *Entry) (*devlist.ChunkList, error) {
	outputs, err := p.Outputs(ctx, cc, e)
	if err != nil {
		return nil, err
	}
	return devlist.New(cc, e.Module.Ident(), outputs, devlist.SourceEntry), nil
}
