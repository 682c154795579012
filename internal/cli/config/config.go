// Package config loads pack.yml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/pack/internal/memo"
	"github.com/conduit-lang/pack/internal/runtime"
	"github.com/conduit-lang/pack/internal/versionstore"
	"github.com/conduit-lang/pack/internal/vpath"
)

// FileName is the configuration file looked up in the project directory.
const FileName = "pack.yml"

// Config represents the pack configuration
type Config struct {
	ProjectRoot string            `mapstructure:"project_root" yaml:"project_root"`
	ContextPath string            `mapstructure:"context_path" yaml:"context_path"`
	OutputRoot  string            `mapstructure:"output_root" yaml:"output_root"`
	ChunkRoot   string            `mapstructure:"chunk_root" yaml:"chunk_root"`
	AssetRoot   string            `mapstructure:"asset_root" yaml:"asset_root"`
	Layer       string            `mapstructure:"layer" yaml:"layer,omitempty"`
	Environment EnvironmentConfig `mapstructure:"environment" yaml:"environment"`
	RuntimeType string            `mapstructure:"runtime_type" yaml:"runtime_type"`
	Minify      bool              `mapstructure:"minify" yaml:"minify"`
	GraphFile   string            `mapstructure:"graph_file" yaml:"graph_file"`
	Dev         DevConfig         `mapstructure:"dev" yaml:"dev"`
	Log         LogConfig         `mapstructure:"log" yaml:"log"`
	Memo        MemoConfig        `mapstructure:"memo" yaml:"memo"`

	// dir is the directory the configuration was loaded from
	dir string
}

// EnvironmentConfig describes where emitted code runs
type EnvironmentConfig struct {
	ChunkLoading string `mapstructure:"chunk_loading" yaml:"chunk_loading"`
}

// DevConfig represents dev server configuration
type DevConfig struct {
	Port         int    `mapstructure:"port" yaml:"port"`
	Host         string `mapstructure:"host" yaml:"host"`
	VersionStore string `mapstructure:"version_store" yaml:"version_store"`
	RedisAddr    string `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	SQLitePath   string `mapstructure:"sqlite_path" yaml:"sqlite_path,omitempty"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Development bool   `mapstructure:"development" yaml:"development"`
}

// MemoConfig bounds the computation cache
type MemoConfig struct {
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("project_root", ".")
	v.SetDefault("context_path", ".")
	v.SetDefault("output_root", "dist")
	v.SetDefault("chunk_root", "dist/chunks")
	v.SetDefault("asset_root", "dist/static")
	v.SetDefault("layer", "")
	v.SetDefault("environment.chunk_loading", "dom")
	v.SetDefault("runtime_type", "default")
	v.SetDefault("minify", false)
	v.SetDefault("graph_file", "pack.graph.yml")
	v.SetDefault("dev.port", 3000)
	v.SetDefault("dev.host", "localhost")
	v.SetDefault("dev.version_store", string(versionstore.KindMemory))
	v.SetDefault("dev.redis_addr", "localhost:6379")
	v.SetDefault("dev.sqlite_path", ".pack/versions.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", true)
	v.SetDefault("memo.max_entries", memo.DefaultMaxEntries)
}

// Default returns the configuration used when no pack.yml exists.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	cfg.dir = "."
	return &cfg
}

// Load loads pack.yml from dir. Every key can be overridden from the
// environment with the PACK_ prefix, dots replaced by underscores
// (PACK_DEV_PORT=4000).
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("pack")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("PACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.dir = dir

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Root returns the absolute project root.
func (c *Config) Root() (string, error) {
	root := c.ProjectRoot
	if !filepath.IsAbs(root) {
		root = filepath.Join(c.dir, root)
	}
	return filepath.Abs(root)
}

// Path resolves a configured path against the project root.
func (c *Config) Path(p string) (vpath.Path, error) {
	if filepath.IsAbs(p) {
		return vpath.New(filepath.ToSlash(p)), nil
	}
	root, err := c.Root()
	if err != nil {
		return "", err
	}
	return vpath.New(filepath.ToSlash(filepath.Join(root, p))), nil
}

// ChunkLoading returns the parsed chunk loading kind.
func (c *Config) ChunkLoading() runtime.ChunkLoading {
	cl, _ := runtime.ParseChunkLoading(c.Environment.ChunkLoading)
	return cl
}

// Runtime returns the parsed runtime type.
func (c *Config) Runtime() runtime.Type {
	t, _ := runtime.ParseType(c.RuntimeType)
	return t
}

// StoreOptions returns the version store options of the dev server.
func (c *Config) StoreOptions() (versionstore.Options, error) {
	opts := versionstore.Options{
		Kind:      versionstore.Kind(c.Dev.VersionStore),
		RedisAddr: c.Dev.RedisAddr,
		Config:    versionstore.DefaultConfig(),
	}
	if opts.Kind == versionstore.KindSQLite {
		p, err := c.Path(c.Dev.SQLitePath)
		if err != nil {
			return opts, err
		}
		opts.SQLitePath = filepath.FromSlash(p.String())
	}
	return opts, nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs error

	if _, err := runtime.ParseChunkLoading(c.Environment.ChunkLoading); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("environment.chunk_loading: %w", err))
	}
	if _, err := runtime.ParseType(c.RuntimeType); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("runtime_type: %w", err))
	}

	switch versionstore.Kind(c.Dev.VersionStore) {
	case versionstore.KindMemory, versionstore.KindRedis, versionstore.KindSQLite:
	default:
		errs = multierr.Append(errs, fmt.Errorf("dev.version_store must be memory, redis or sqlite, got: %s", c.Dev.VersionStore))
	}
	if c.Dev.Port < 1 || c.Dev.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("dev.port must be between 1 and 65535, got: %d", c.Dev.Port))
	}

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Memo.MaxEntries <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("memo.max_entries must be positive, got: %d", c.Memo.MaxEntries))
	}
	if c.GraphFile == "" {
		errs = multierr.Append(errs, errors.New("graph_file must not be empty"))
	}

	output := filepath.Clean(c.OutputRoot)
	for key, p := range map[string]string{"chunk_root": c.ChunkRoot, "asset_root": c.AssetRoot} {
		if !within(output, filepath.Clean(p)) {
			errs = multierr.Append(errs, fmt.Errorf("%s must be inside output_root (%s), got: %s", key, c.OutputRoot, p))
		}
	}
	return errs
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Write stores c as pack.yml in dir.
func (c *Config) Write(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, FileName), data, 0o644)
}

// FindRoot walks up from dir looking for pack.yml
func FindRoot(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "pack.yaml")); err == nil {
			return dir, nil
		}

		// Move up one directory
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in a pack project (no %s found)", FileName)
		}
		dir = parent
	}
}
