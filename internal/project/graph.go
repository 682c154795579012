// Package project loads the module graph of a project from its graph file
// and turns it into assets backed by memo inputs.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// DefaultGraphFile is the graph file name looked up in the project root.
const DefaultGraphFile = "pack.graph.yml"

// ModuleKind selects the asset type a module becomes.
type ModuleKind string

const (
	KindScript ModuleKind = "script"
	KindStyle  ModuleKind = "style"
	KindStatic ModuleKind = "static"
)

// KindForPath derives the kind of a module from its extension.
func KindForPath(p string) ModuleKind {
	switch strings.ToLower(path.Ext(p)) {
	case ".js", ".mjs", ".cjs", ".jsx", ".ts", ".tsx":
		return KindScript
	case ".css":
		return KindStyle
	default:
		// Images, fonts and everything else are emitted as is.
		return KindStatic
	}
}

// ModuleSpec declares one module of the graph. Paths are relative to the
// project root.
type ModuleSpec struct {
	Path           string     `yaml:"path"`
	Kind           ModuleKind `yaml:"kind,omitempty"`
	Imports        []string   `yaml:"imports,omitempty"`
	DynamicImports []string   `yaml:"dynamic_imports,omitempty"`
}

// ResolvedKind returns the declared kind or the one derived from the path.
func (m ModuleSpec) ResolvedKind() ModuleKind {
	if m.Kind != "" {
		return m.Kind
	}
	return KindForPath(m.Path)
}

// EntrySpec declares an entry point.
type EntrySpec struct {
	Name   string `yaml:"name"`
	Module string `yaml:"module"`
	// Evaluate lists modules executed before the entry module itself.
	Evaluate []string `yaml:"evaluate,omitempty"`
	// Exported entries produce a single chunk exporting the module instead
	// of a chunk group.
	Exported bool `yaml:"exported,omitempty"`
}

// Graph is the parsed graph file.
type Graph struct {
	Modules []ModuleSpec `yaml:"modules"`
	Entries []EntrySpec  `yaml:"entries"`
}

// ParseGraph decodes and validates a graph file. Unknown fields are errors.
func ParseGraph(data []byte) (*Graph, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var g Graph
	if err := dec.Decode(&g); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse graph: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// LoadGraph reads the graph file at p from fs.
func LoadGraph(fs afero.Fs, p string) (*Graph, error) {
	data, err := afero.ReadFile(fs, p)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}
	g, err := ParseGraph(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return g, nil
}

// Validate checks references between modules and entries. All problems are
// reported together.
func (g *Graph) Validate() error {
	var errs error

	kinds := make(map[string]ModuleKind, len(g.Modules))
	for i, m := range g.Modules {
		if m.Path == "" {
			errs = multierr.Append(errs, fmt.Errorf("module %d: missing path", i))
			continue
		}
		if _, dup := kinds[m.Path]; dup {
			errs = multierr.Append(errs, fmt.Errorf("module %s: declared twice", m.Path))
			continue
		}
		switch m.ResolvedKind() {
		case KindScript, KindStyle, KindStatic:
		default:
			errs = multierr.Append(errs, fmt.Errorf("module %s: unknown kind %q", m.Path, m.Kind))
		}
		kinds[m.Path] = m.ResolvedKind()
	}

	for _, m := range g.Modules {
		kind := kinds[m.Path]
		if kind == KindStatic && (len(m.Imports) > 0 || len(m.DynamicImports) > 0) {
			errs = multierr.Append(errs, fmt.Errorf("module %s: static modules cannot import", m.Path))
		}
		if kind == KindStyle && len(m.DynamicImports) > 0 {
			errs = multierr.Append(errs, fmt.Errorf("module %s: style modules cannot import dynamically", m.Path))
		}
		for _, imp := range m.Imports {
			if _, ok := kinds[imp]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("module %s: unknown import %s", m.Path, imp))
			}
		}
		for _, imp := range m.DynamicImports {
			target, ok := kinds[imp]
			switch {
			case !ok:
				errs = multierr.Append(errs, fmt.Errorf("module %s: unknown dynamic import %s", m.Path, imp))
			case target != KindScript:
				errs = multierr.Append(errs, fmt.Errorf("module %s: dynamic import %s is not a script", m.Path, imp))
			}
		}
	}

	names := make(map[string]struct{}, len(g.Entries))
	for _, e := range g.Entries {
		if e.Name == "" {
			errs = multierr.Append(errs, fmt.Errorf("entry for %s: missing name", e.Module))
		} else if _, dup := names[e.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("entry %s: declared twice", e.Name))
		}
		names[e.Name] = struct{}{}

		if kinds[e.Module] != KindScript {
			errs = multierr.Append(errs, fmt.Errorf("entry %s: module %q is not a declared script", e.Name, e.Module))
		}
		for _, ev := range e.Evaluate {
			if kinds[ev] != KindScript {
				errs = multierr.Append(errs, fmt.Errorf("entry %s: evaluated module %q is not a declared script", e.Name, ev))
			}
		}
	}
	return errs
}
