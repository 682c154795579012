package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/cli/config"
	"github.com/conduit-lang/pack/internal/cli/ui"
	"github.com/conduit-lang/pack/internal/issue"
	"github.com/conduit-lang/pack/internal/output"
)

type buildFlags struct {
	json   bool
	minify bool
	clean  bool
}

// NewBuildCommand creates the build command
func NewBuildCommand(g *globalFlags) *cobra.Command {
	f := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Emit every entry's chunks to the output root",
		Long: `Chunk every entry in pack.graph.yml and write the results below output_root.

The build process:
  1. Load pack.yml and the module graph
  2. Compute each entry's chunk group (evaluated, or a single exported chunk)
  3. Write every reachable output, skipping files whose content is unchanged
  4. Remove outputs the previous build wrote that are no longer produced`,
		Example: `  # Build with settings from pack.yml
  pack build

  # Minify script chunks
  pack build --minify

  # Report issues as JSON (useful for tooling)
  pack build --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd.Context(), afero.NewOsFs(), cmd.OutOrStdout(), g, f, cmd.Flags().Changed("minify"))
		},
	}

	cmd.Flags().BoolVar(&f.json, "json", false, "Output issues in JSON format")
	cmd.Flags().BoolVar(&f.minify, "minify", false, "Minify script chunks (overrides pack.yml)")
	cmd.Flags().BoolVar(&f.clean, "clean", false, "Ignore the previous build state and rewrite every file")

	return cmd
}

// buildReport is the --json output.
type buildReport struct {
	Success   bool          `json:"success"`
	Written   []string      `json:"written"`
	Unchanged []string      `json:"unchanged"`
	Removed   []string      `json:"removed"`
	Issues    []issue.Issue `json:"issues"`
	Duration  string        `json:"duration"`
}

func runBuild(ctx context.Context, afs afero.Fs, out io.Writer, g *globalFlags, f *buildFlags, minifySet bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	start := time.Now()

	var override func(*config.Config)
	if minifySet {
		override = func(c *config.Config) { c.Minify = f.minify }
	}
	ws, err := openWorkspace(afs, g, nil, override)
	if err != nil {
		return err
	}
	defer ws.logger.Sync() //nolint:errcheck

	collector := issue.NewCollector()
	ctx = issue.WithCollector(ctx, collector)

	var res *output.Result
	emit := func() error {
		var roots []asset.Output
		for _, e := range ws.project.Entries() {
			outputs, err := ws.project.Outputs(ctx, ws.cc, e)
			if err != nil {
				return err
			}
			roots = append(roots, outputs...)
		}

		prev := output.NewState()
		if !f.clean {
			if prev, err = output.LoadState(afs, ws.root); err != nil {
				ws.logger.Warn("ignoring unreadable build state", zap.Error(err))
				prev = output.NewState()
			}
		}

		var next *output.State
		res, next, err = output.NewEmitter(afs, ws.cc.OutputRoot(), ws.outputOptions(), ws.logger).Emit(ctx, roots, prev)
		if err != nil {
			return err
		}
		return next.Save(afs, ws.root)
	}

	if f.json {
		err = emit()
	} else {
		err = ui.WithSpinner(out, "Building", g.noColor, emit)
	}
	if err != nil {
		collector.Emit(issue.FromError(err))
	}

	issues := collector.Issues()
	failed := collector.HasErrors()

	if f.json {
		report := buildReport{Success: !failed, Issues: issues, Duration: time.Since(start).Round(time.Millisecond).String()}
		if res != nil {
			report.Written, report.Unchanged, report.Removed = res.Written, res.Unchanged, res.Removed
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		if len(issues) > 0 {
			fmt.Fprintln(out)
			fmt.Fprint(out, issue.FormatAll(issues, g.noColor))
		}
		if res != nil {
			fmt.Fprintln(out)
			kv := ui.NewKeyValueTable(out, g.noColor)
			kv.AddRow("Written", len(res.Written))
			kv.AddRow("Unchanged", len(res.Unchanged))
			kv.AddRow("Removed", len(res.Removed))
			kv.AddRow("Output", ws.rel(ws.cc.OutputRoot().String()))
			kv.AddRow("Time", time.Since(start).Round(time.Millisecond))
			kv.Render()
		}
	}

	if failed {
		n := 0
		for _, iss := range issues {
			if iss.Severity.IsError() {
				n++
			}
		}
		if !f.json {
			color.New(color.FgRed, color.Bold).Fprintf(out, "\nBuild failed with %d error(s)\n", n)
		}
		return fmt.Errorf("build failed with %d error(s)", n)
	}
	return nil
}
