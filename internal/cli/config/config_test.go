package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/pack/internal/runtime"
	"github.com/conduit-lang/pack/internal/versionstore"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "dist", cfg.OutputRoot)
	assert.Equal(t, "dist/chunks", cfg.ChunkRoot)
	assert.Equal(t, "pack.graph.yml", cfg.GraphFile)
	assert.Equal(t, 3000, cfg.Dev.Port)
	assert.Equal(t, "localhost", cfg.Dev.Host)
	assert.Equal(t, runtime.ChunkLoadingDOM, cfg.ChunkLoading())
	assert.Equal(t, runtime.TypeDefault, cfg.Runtime())
	assert.True(t, cfg.Log.Development)

	root, err := cfg.Root()
	require.NoError(t, err)
	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, root)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := `
output_root: build
chunk_root: build/c
asset_root: build/a
environment:
  chunk_loading: node
runtime_type: dummy
minify: true
dev:
  port: 8080
  version_store: sqlite
  sqlite_path: tmp/v.db
log:
  level: debug
  development: false
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "build", cfg.OutputRoot)
	assert.Equal(t, runtime.ChunkLoadingNode, cfg.ChunkLoading())
	assert.Equal(t, runtime.TypeDummy, cfg.Runtime())
	assert.True(t, cfg.Minify)
	assert.Equal(t, 8080, cfg.Dev.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Log.Development)

	opts, err := cfg.StoreOptions()
	require.NoError(t, err)
	assert.Equal(t, versionstore.KindSQLite, opts.Kind)
	assert.True(t, filepath.IsAbs(opts.SQLitePath))
	assert.Equal(t, "v.db", filepath.Base(opts.SQLitePath))

	out, err := cfg.Path(cfg.OutputRoot)
	require.NoError(t, err)
	assert.Equal(t, "build", out.FileName())
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("PACK_DEV_PORT", "4100")
	t.Setenv("PACK_MINIFY", "true")
	t.Setenv("PACK_ENVIRONMENT_CHUNK_LOADING", "none")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 4100, cfg.Dev.Port)
	assert.True(t, cfg.Minify)
	assert.Equal(t, runtime.ChunkLoadingNone, cfg.ChunkLoading())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"chunk loading", func(c *Config) { c.Environment.ChunkLoading = "carrier-pigeon" }, "environment.chunk_loading"},
		{"runtime type", func(c *Config) { c.RuntimeType = "full" }, "runtime_type"},
		{"store", func(c *Config) { c.Dev.VersionStore = "etcd" }, "dev.version_store"},
		{"port", func(c *Config) { c.Dev.Port = 0 }, "dev.port"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"memo entries", func(c *Config) { c.Memo.MaxEntries = 0 }, "memo.max_entries"},
		{"graph file", func(c *Config) { c.GraphFile = "" }, "graph_file"},
		{"chunk root outside output", func(c *Config) { c.ChunkRoot = "chunks" }, "chunk_root must be inside output_root"},
		{"asset root escapes", func(c *Config) { c.AssetRoot = "dist/../static" }, "asset_root must be inside output_root"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Dev.Port = -1
	cfg.RuntimeType = "nope"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dev.port")
	assert.Contains(t, err.Error(), "runtime_type")
}

func TestWriteAndFindRoot(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Dev.Port = 5050
	require.NoError(t, cfg.Write(dir))

	nested := filepath.Join(dir, "src", "deep")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	root, err := FindRoot(nested)
	require.NoError(t, err)
	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	assert.Equal(t, abs, root)

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, 5050, loaded.Dev.Port)
}

func TestFindRoot_NotInProject(t *testing.T) {
	_, err := FindRoot(t.TempDir())
	assert.Error(t, err)
}
