package commands

import (
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/conduit-lang/pack/internal/chunking"
	"github.com/conduit-lang/pack/internal/cli/config"
	"github.com/conduit-lang/pack/internal/logging"
	"github.com/conduit-lang/pack/internal/memo"
	"github.com/conduit-lang/pack/internal/output"
	"github.com/conduit-lang/pack/internal/project"
	"github.com/conduit-lang/pack/internal/runtime"
	"github.com/conduit-lang/pack/internal/vpath"
)

// workspace is a loaded project with everything needed to chunk it.
type workspace struct {
	cfg     *config.Config
	fs      afero.Fs
	root    string
	logger  *zap.Logger
	engine  *memo.Engine
	project *project.Project
	cc      *chunking.BuildContext
}

// openWorkspace loads pack.yml and the project graph. reg may be nil.
func openWorkspace(afs afero.Fs, g *globalFlags, reg prometheus.Registerer, override func(*config.Config)) (*workspace, error) {
	cfg, err := config.Load(g.dir)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if override != nil {
		override(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	root, err := cfg.Root()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve project root: %w", err)
	}

	engine, err := memo.NewEngine(
		memo.WithLogger(logger),
		memo.WithMaxEntries(cfg.Memo.MaxEntries),
		memo.WithRegisterer(reg),
	)
	if err != nil {
		return nil, err
	}

	rootPath, err := cfg.Path(".")
	if err != nil {
		return nil, err
	}
	p, err := project.Load(afs, rootPath, cfg.GraphFile, engine, logger)
	if err != nil {
		return nil, err
	}

	// context path, output root, chunk root, asset root
	var paths [4]vpath.Path
	for i, rel := range []string{cfg.ContextPath, cfg.OutputRoot, cfg.ChunkRoot, cfg.AssetRoot} {
		if paths[i], err = cfg.Path(rel); err != nil {
			return nil, err
		}
	}

	cc := chunking.NewBuilder(engine, paths[0], paths[1], paths[2], paths[3],
		runtime.Environment{ChunkLoading: cfg.ChunkLoading()}).
		RuntimeType(cfg.Runtime()).
		Layer(cfg.Layer).
		Minify(cfg.Minify).
		Logger(logger).
		Build()

	logger.Debug("workspace loaded",
		zap.String("root", root),
		zap.Stringer("output_root", paths[1]),
		zap.Int("entries", len(p.Entries())))

	return &workspace{
		cfg:     cfg,
		fs:      afs,
		root:    root,
		logger:  logger,
		engine:  engine,
		project: p,
		cc:      cc,
	}, nil
}

// outputOptions are the settings recorded in the build state.
func (w *workspace) outputOptions() output.Options {
	return output.Options{
		Layer:        w.cfg.Layer,
		Minify:       w.cfg.Minify,
		RuntimeType:  w.cfg.Runtime().String(),
		ChunkLoading: w.cfg.ChunkLoading().String(),
	}
}

// rel renders p relative to the project root when possible.
func (w *workspace) rel(p string) string {
	if r, err := filepath.Rel(w.root, filepath.FromSlash(p)); err == nil {
		return filepath.ToSlash(r)
	}
	return p
}
