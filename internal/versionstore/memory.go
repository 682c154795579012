package versionstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps versions in process memory.
type MemoryStore struct {
	data   sync.Map
	config Config
	cancel context.CancelFunc
}

type item struct {
	value      []byte
	expiration time.Time
}

func (i item) expired(now time.Time) bool {
	return !i.expiration.IsZero() && now.After(i.expiration)
}

// NewMemoryStore creates a memory store and starts its cleanup loop.
func NewMemoryStore(config Config) *MemoryStore {
	ctx, cancel := context.WithCancel(context.Background())
	m := &MemoryStore{config: config, cancel: cancel}
	go m.cleanupExpired(ctx)
	return m
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fullKey := m.config.Prefix + key
	v, ok := m.data.Load(fullKey)
	if !ok {
		return nil, ErrMiss{Key: key}
	}
	it := v.(item)
	if it.expired(time.Now()) {
		m.data.Delete(fullKey)
		return nil, ErrMiss{Key: key}
	}
	return it.value, nil
}

// Set implements Store.
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	it := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiration = time.Now().Add(ttl)
	}
	m.data.Store(m.config.Prefix+key, it)
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data.Delete(m.config.Prefix + key)
	return nil
}

// Close stops the cleanup loop.
func (m *MemoryStore) Close() error {
	m.cancel()
	return nil
}

func (m *MemoryStore) cleanupExpired(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.data.Range(func(key, value any) bool {
				if value.(item).expired(now) {
					m.data.Delete(key)
				}
				return true
			})
		}
	}
}
