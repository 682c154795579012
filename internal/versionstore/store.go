// Package versionstore persists the chunk list version each dev client
// session last received, so a reconnecting client gets an incremental
// update instead of a full reload.
package versionstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is a key/value store for encoded versions.
type Store interface {
	// Get retrieves a value. A missing key yields ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with a TTL. A zero TTL uses the store default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// Close releases the resources held by the store.
	Close() error
}

// Config holds settings shared by all backends.
type Config struct {
	// DefaultTTL is how long a session version is kept when Set gets no TTL.
	DefaultTTL time.Duration
	// Prefix is prepended to all keys.
	Prefix string
}

// DefaultConfig returns the configuration used by the dev server.
func DefaultConfig() Config {
	return Config{
		DefaultTTL: 24 * time.Hour,
		Prefix:     "pack:version:",
	}
}

// ErrMiss is returned when a key is not in the store.
type ErrMiss struct {
	Key string
}

func (e ErrMiss) Error() string {
	return "version store miss: " + e.Key
}

// IsMiss reports whether err is a store miss.
func IsMiss(err error) bool {
	var miss ErrMiss
	return errors.As(err, &miss)
}

// Kind names a store backend.
type Kind string

const (
	KindMemory Kind = "memory"
	KindRedis  Kind = "redis"
	KindSQLite Kind = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Kind       Kind
	RedisAddr  string
	SQLitePath string
	Config     Config
}

// Open creates the store described by opts.
func Open(opts Options) (Store, error) {
	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}

	switch opts.Kind {
	case KindMemory, "":
		return NewMemoryStore(cfg), nil
	case KindRedis:
		return NewRedisStore(RedisConfig{Addr: opts.RedisAddr, Config: cfg})
	case KindSQLite:
		return NewSQLiteStore(opts.SQLitePath, cfg)
	default:
		return nil, fmt.Errorf("unknown version store %q", opts.Kind)
	}
}
