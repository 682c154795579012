package commands

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/pack/internal/output"
)

var (
	// Version information - set at build time
	Version   = output.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalFlags are shared by every command.
type globalFlags struct {
	dir      string
	logLevel string
	noColor  bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "pack",
		Short: "Chunking and code splitting for web assets",
		Long: color.CyanString(`pack - chunk graphs, code splitting and dev chunk lists

pack reads a module graph (pack.graph.yml), groups modules into script,
style and static chunks, and emits them with a small runtime that loads
chunks on demand.

  • Build: emit every entry's chunk group to the output root
  • Inspect: list the chunks an entry produces
  • Dev: serve chunk lists and push incremental updates over a websocket`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&g.dir, "dir", "C", ".", "Project directory")
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "Override log.level from pack.yml")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(NewInitCommand(g))
	rootCmd.AddCommand(NewBuildCommand(g))
	rootCmd.AddCommand(NewInspectCommand(g))
	rootCmd.AddCommand(NewDevCommand(g))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			title := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()

			title.Fprint(out, "pack version: ")
			fmt.Fprintln(out, Version)
			title.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			title.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			title.Fprint(out, "Go version: ")
			fmt.Fprintln(out, goVer)
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
