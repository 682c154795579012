package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/cli/ui"
	"github.com/conduit-lang/pack/internal/output"
	"github.com/conduit-lang/pack/internal/project"
)

type inspectFlags struct {
	dev bool
}

// NewInspectCommand creates the inspect command
func NewInspectCommand(g *globalFlags) *cobra.Command {
	f := &inspectFlags{}

	cmd := &cobra.Command{
		Use:   "inspect [entry...]",
		Short: "List the chunks each entry produces",
		Long: `Print every output an entry produces, in emission order.

Chunk group members are listed first, followed by the outputs they
reference (parallel chunks, manifest chunks, static assets). With --dev
the entry's chunk list is the root instead of its chunk group.`,
		Example: `  # All entries
  pack inspect

  # One entry, as served by the dev server
  pack inspect main --dev`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), afero.NewOsFs(), cmd.OutOrStdout(), g, f, args)
		},
	}

	cmd.Flags().BoolVar(&f.dev, "dev", false, "Start from the development chunk list")

	return cmd
}

func runInspect(ctx context.Context, afs afero.Fs, out io.Writer, g *globalFlags, f *inspectFlags, names []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ws, err := openWorkspace(afs, g, nil, nil)
	if err != nil {
		return err
	}
	defer ws.logger.Sync() //nolint:errcheck

	entries, err := selectEntries(ws.project, names, out, g.noColor)
	if err != nil {
		return err
	}

	table := ui.NewTable(out, g.noColor, "ENTRY", "ROLE", "KIND", "PATH")
	for _, e := range entries {
		var roots []asset.Output
		if f.dev {
			list, err := ws.project.ChunkList(ctx, ws.cc, e)
			if err != nil {
				return err
			}
			roots = []asset.Output{list}
		} else if roots, err = ws.project.Outputs(ctx, ws.cc, e); err != nil {
			return err
		}

		files, err := output.Collect(ctx, roots)
		if err != nil {
			return err
		}
		for i, file := range files {
			role := "referenced"
			if i < len(roots) {
				role = "group"
			}
			kind := "-"
			if c, ok := file.Output.(asset.Chunk); ok {
				kind = asset.KindOf(c).String()
			}
			path := file.Path.String()
			if rel, ok := ws.cc.OutputRoot().PathTo(file.Path); ok {
				path = rel
			}
			table.AddRow(e.Name, role, kind, path)
		}
	}

	table.Render()
	return nil
}

// selectEntries resolves names, or returns every entry when names is empty.
func selectEntries(p *project.Project, names []string, out io.Writer, noColor bool) ([]*project.Entry, error) {
	if len(names) == 0 {
		return p.Entries(), nil
	}

	var known []string
	for _, e := range p.Entries() {
		known = append(known, e.Name)
	}

	entries := make([]*project.Entry, 0, len(names))
	for _, name := range names {
		e, ok := p.Entry(name)
		if !ok {
			ui.Message{
				Context:     "unknown entry",
				Problem:     name,
				Detail:      fmt.Sprintf("No entry named '%s' in the module graph.", name),
				Suggestions: ui.Suggest(name, known),
				Hints:       []string{"List entries: pack inspect"},
				NoColor:     noColor,
			}.Write(out)
			return nil, fmt.Errorf("unknown entry %q", name)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
