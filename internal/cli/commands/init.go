package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/pack/internal/cli/config"
	"github.com/conduit-lang/pack/internal/cli/ui"
	"github.com/conduit-lang/pack/internal/project"
)

type initFlags struct {
	yes   bool
	force bool
}

const starterGraph = `# Modules and entries of the project. Kinds are derived from the extension
# unless given explicitly.
modules:
  - path: src/index.js
    imports: [src/styles.css]
  - path: src/styles.css
entries:
  - name: main
    module: src/index.js
`

var starterFiles = map[string]string{
	"src/index.js":   "console.log('hello from pack');\n",
	"src/styles.css": "body { margin: 0; }\n",
}

// NewInitCommand creates the init command
func NewInitCommand(g *globalFlags) *cobra.Command {
	f := &initFlags{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create pack.yml and a starter module graph",
		Long: `Create pack.yml in the project directory. Without --yes you are asked
for the output root, the chunk loading environment, the dev server port and
the version store. A starter pack.graph.yml and sources are written when no
graph exists yet.`,
		Example: `  # Interactive setup
  pack init

  # Accept every default
  pack init --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var ask asker = surveyAsker{}
			if f.yes {
				ask = nil
			}
			return runInit(cmd.OutOrStdout(), g, f, ask)
		},
	}

	cmd.Flags().BoolVarP(&f.yes, "yes", "y", false, "Accept defaults without prompting")
	cmd.Flags().BoolVar(&f.force, "force", false, "Overwrite an existing pack.yml")

	return cmd
}

// asker fills in the answers of an interactive setup.
type asker interface {
	Ask(cfg *config.Config) error
}

type surveyAsker struct{}

func (surveyAsker) Ask(cfg *config.Config) error {
	answers := struct {
		OutputRoot   string `survey:"output_root"`
		ChunkLoading string `survey:"chunk_loading"`
		Port         string `survey:"port"`
		VersionStore string `survey:"version_store"`
	}{}

	questions := []*survey.Question{
		{
			Name:     "output_root",
			Prompt:   &survey.Input{Message: "Output directory:", Default: cfg.OutputRoot},
			Validate: survey.Required,
		},
		{
			Name: "chunk_loading",
			Prompt: &survey.Select{
				Message: "Where does the emitted code run?",
				Options: []string{"dom", "node", "none"},
				Default: cfg.Environment.ChunkLoading,
			},
		},
		{
			Name:   "port",
			Prompt: &survey.Input{Message: "Dev server port:", Default: strconv.Itoa(cfg.Dev.Port)},
			Validate: func(ans interface{}) error {
				if _, err := strconv.Atoi(fmt.Sprint(ans)); err != nil {
					return fmt.Errorf("port must be a number")
				}
				return nil
			},
		},
		{
			Name: "version_store",
			Prompt: &survey.Select{
				Message: "Where should the dev server keep client versions?",
				Options: []string{"memory", "sqlite", "redis"},
				Default: cfg.Dev.VersionStore,
			},
		},
	}
	if err := survey.Ask(questions, &answers); err != nil {
		return err
	}

	cfg.OutputRoot = answers.OutputRoot
	cfg.ChunkRoot = filepath.ToSlash(filepath.Join(answers.OutputRoot, "chunks"))
	cfg.AssetRoot = filepath.ToSlash(filepath.Join(answers.OutputRoot, "static"))
	cfg.Environment.ChunkLoading = answers.ChunkLoading
	cfg.Dev.Port, _ = strconv.Atoi(answers.Port)
	cfg.Dev.VersionStore = answers.VersionStore
	return nil
}

func runInit(out io.Writer, g *globalFlags, f *initFlags, ask asker) error {
	dir := g.dir
	if _, err := os.Stat(filepath.Join(dir, config.FileName)); err == nil && !f.force {
		return fmt.Errorf("%s already exists in %s (use --force to overwrite)", config.FileName, dir)
	}

	cfg := config.Default()
	if ask != nil {
		if err := ask.Ask(cfg); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := cfg.Write(dir); err != nil {
		return err
	}
	fmt.Fprintln(out, ui.Success("Created "+config.FileName, g.noColor))

	graphPath := filepath.Join(dir, project.DefaultGraphFile)
	if _, err := os.Stat(graphPath); err == nil {
		return nil
	}
	if err := os.WriteFile(graphPath, []byte(starterGraph), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", project.DefaultGraphFile, err)
	}
	for rel, content := range starterFiles {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if _, err := os.Stat(p); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", rel, err)
		}
	}
	fmt.Fprintln(out, ui.Success("Created "+project.DefaultGraphFile, g.noColor))

	fmt.Fprintln(out)
	color.New(color.FgCyan).Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  pack inspect")
	fmt.Fprintln(out, "  pack build")
	fmt.Fprintln(out, "  pack dev")
	return nil
}
