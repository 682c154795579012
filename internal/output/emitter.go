// Package output writes output assets to disk.
package output

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/issue"
	"github.com/conduit-lang/pack/internal/vpath"
)

// Version is recorded in the build state.
var Version = "0.1.0"

// ErrPathConflict is returned when distinct outputs share an output path.
var ErrPathConflict = errors.New("output path conflict")

// File is one output with its resolved path.
type File struct {
	Path   vpath.Path
	Output asset.Output
}

// Collect walks the references of roots breadth first and returns every
// reachable output once, keyed by output path, in discovery order. Two
// different assets resolving to one path are an error unless their bytes
// are identical.
func Collect(ctx context.Context, roots []asset.Output) ([]File, error) {
	var files []File
	seen := make(map[vpath.Path]asset.Output)

	queue := append([]asset.Output(nil), roots...)
	for len(queue) > 0 {
		o := queue[0]
		queue = queue[1:]

		p, err := o.OutputPath(ctx)
		if err != nil {
			return nil, fmt.Errorf("output path of %s: %w", o.Ident(), err)
		}
		if prev, ok := seen[p]; ok {
			if err := checkSamePath(ctx, p, prev, o); err != nil {
				return nil, err
			}
			continue
		}
		seen[p] = o
		files = append(files, File{Path: p, Output: o})

		refs, err := asset.OutputReferences(ctx, o)
		if err != nil {
			return nil, fmt.Errorf("references of %s: %w", o.Ident(), err)
		}
		queue = append(queue, refs...)
	}
	return files, nil
}

func checkSamePath(ctx context.Context, p vpath.Path, a, b asset.Output) error {
	if a.Ident().Equal(b.Ident()) {
		return nil
	}
	ac, err := a.Content(ctx)
	if err != nil {
		return fmt.Errorf("content of %s: %w", a.Ident(), err)
	}
	bc, err := b.Content(ctx)
	if err != nil {
		return fmt.Errorf("content of %s: %w", b.Ident(), err)
	}
	if ac.Equal(bc) {
		return nil
	}
	return fmt.Errorf("%w: %s and %s both resolve to %s", ErrPathConflict, a.Ident(), b.Ident(), p)
}

// Result summarizes an emission. Paths are relative to the output root.
type Result struct {
	Written   []string
	Unchanged []string
	Removed   []string
}

// Emitter writes outputs below an output root.
type Emitter struct {
	fs      afero.Fs
	root    vpath.Path
	options Options
	logger  *zap.Logger
}

// NewEmitter creates an emitter writing below root.
func NewEmitter(afs afero.Fs, root vpath.Path, options Options, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{fs: afs, root: root, options: options, logger: logger}
}

// Emit writes everything reachable from roots. Files whose hash matches
// prev are left alone and files prev listed that are no longer produced
// are removed. It returns the new state to persist.
func (e *Emitter) Emit(ctx context.Context, roots []asset.Output, prev *State) (*Result, *State, error) {
	if prev == nil || prev.Options != e.options {
		prev = NewState()
	}

	files, err := Collect(ctx, roots)
	if err != nil {
		return nil, nil, err
	}

	next := &State{
		Files:   make(map[string]string, len(files)),
		Options: e.options,
		Version: Version,
	}
	res := &Result{}

	for _, f := range files {
		rel, ok := e.root.PathTo(f.Path)
		if !ok {
			return nil, nil, issue.NewConfigError("output", f.Path, e.root)
		}

		content, err := f.Output.Content(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("content of %s: %w", rel, err)
		}
		if !content.Found() {
			issue.Emit(ctx, issue.Issue{
				Severity: issue.SeverityWarning,
				Category: issue.CategoryEmit,
				Context:  f.Path.String(),
				Title:    "output has no content",
			})
			continue
		}

		hash := content.Hash()
		next.Files[rel] = hash
		if prev.Files[rel] == hash && e.exists(f.Path) {
			res.Unchanged = append(res.Unchanged, rel)
			continue
		}

		if err := e.write(f.Path, content.Bytes()); err != nil {
			return nil, nil, err
		}
		res.Written = append(res.Written, rel)
		e.logger.Debug("emitted", zap.String("path", rel), zap.Int("bytes", len(content.Bytes())))
	}

	for rel := range prev.Files {
		if _, ok := next.Files[rel]; ok {
			continue
		}
		err := e.fs.Remove(e.root.Join(rel).String())
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("failed to remove stale output %s: %w", rel, err)
		}
		res.Removed = append(res.Removed, rel)
	}
	sort.Strings(res.Removed)

	next.LastBuildTime = time.Now()
	return res, next, nil
}

func (e *Emitter) exists(p vpath.Path) bool {
	ok, err := afero.Exists(e.fs, p.String())
	return err == nil && ok
}

func (e *Emitter) write(p vpath.Path, data []byte) error {
	if err := e.fs.MkdirAll(filepath.Dir(p.String()), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", p, err)
	}
	if err := afero.WriteFile(e.fs, p.String(), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return nil
}
