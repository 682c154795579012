package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/pack/internal/cli/config"
	"github.com/conduit-lang/pack/internal/devserver"
	"github.com/conduit-lang/pack/internal/versionstore"
	"github.com/conduit-lang/pack/internal/watch"
)

type devFlags struct {
	port  int
	host  string
	store string
}

// NewDevCommand creates the dev command
func NewDevCommand(g *globalFlags) *cobra.Command {
	f := &devFlags{}

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Serve chunk lists and push updates as sources change",
		Long: `Start the development server.

The dev server watches every module source in the graph and:
  • Recomputes only the chunks that read a changed file
  • Serves chunk lists and chunks from memory
  • Pushes partial updates to subscribed clients over ` + devserver.HMRPath + `
  • Exposes metrics at /metrics

Clients that reconnect with their session id receive the changes they
missed instead of a full reload.`,
		Example: `  # Start with settings from pack.yml
  pack dev

  # Use a custom port and keep versions in sqlite
  pack dev --port 8080 --store sqlite`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDev(ctx, cmd, g, f)
		},
	}

	cmd.Flags().IntVar(&f.port, "port", 0, "Dev server port (overrides dev.port)")
	cmd.Flags().StringVar(&f.host, "host", "", "Dev server host (overrides dev.host)")
	cmd.Flags().StringVar(&f.store, "store", "", "Version store: memory, redis or sqlite (overrides dev.version_store)")

	return cmd
}

func (f *devFlags) apply(c *config.Config) {
	if f.port != 0 {
		c.Dev.Port = f.port
	}
	if f.host != "" {
		c.Dev.Host = f.host
	}
	if f.store != "" {
		c.Dev.VersionStore = f.store
	}
}

func runDev(ctx context.Context, cmd *cobra.Command, g *globalFlags, f *devFlags) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ws, err := openWorkspace(afero.NewOsFs(), g, reg, f.apply)
	if err != nil {
		return err
	}
	defer ws.logger.Sync() //nolint:errcheck

	store, err := openStore(ws)
	if err != nil {
		return err
	}
	defer store.Close()

	srv, err := devserver.New(ctx, ws.project, ws.cc, versionstore.NewVersions(store, 0),
		devserver.WithLogger(ws.logger),
		devserver.WithRegistry(reg))
	if err != nil {
		return err
	}
	defer srv.Close()

	watcher, err := watch.NewFileWatcher(watch.Options{
		Dirs:        watch.DirsOf(ws.project.SourcePaths()),
		Ignored:     []string{"*.swp", "*.swo", "*~", ".DS_Store"},
		IgnoredDirs: []string{ws.cc.OutputRoot().String()},
		Logger:      ws.logger,
	}, func(paths []string) error {
		return srv.Changed(ctx, paths)
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop() //nolint:errcheck

	addr := net.JoinHostPort(ws.cfg.Dev.Host, strconv.Itoa(ws.cfg.Dev.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	printBanner(cmd.OutOrStdout(), ws, addr)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dev server failed: %w", err)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "\nShutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		ws.logger.Warn("shutdown did not complete", zap.Error(err))
	}
	return nil
}

func openStore(ws *workspace) (versionstore.Store, error) {
	opts, err := ws.cfg.StoreOptions()
	if err != nil {
		return nil, err
	}
	if opts.Kind == versionstore.KindSQLite {
		if err := os.MkdirAll(filepath.Dir(opts.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", filepath.Dir(opts.SQLitePath), err)
		}
	}
	store, err := versionstore.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s version store: %w", opts.Kind, err)
	}
	ws.logger.Info("version store ready", zap.String("kind", string(opts.Kind)))
	return store, nil
}

func printBanner(out io.Writer, ws *workspace, addr string) {
	banner := color.New(color.FgCyan, color.Bold)

	fmt.Fprintln(out)
	banner.Fprintln(out, "pack dev server")
	fmt.Fprintf(out, "   Files:    http://%s/\n", addr)
	fmt.Fprintf(out, "   Updates:  ws://%s%s\n", addr, devserver.HMRPath)
	fmt.Fprintf(out, "   Metrics:  http://%s/metrics\n", addr)
	fmt.Fprintf(out, "   Entries:  %d\n", len(ws.project.Entries()))
	fmt.Fprintln(out)
	color.New(color.FgYellow).Fprintln(out, "Press Ctrl+C to stop")
	fmt.Fprintln(out)
}
