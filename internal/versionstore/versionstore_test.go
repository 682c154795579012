package versionstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/pack/internal/devlist"
	"github.com/conduit-lang/pack/internal/version"
)

func backends() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore(DefaultConfig())
		},
		"redis": func(t *testing.T) Store {
			mr, err := miniredis.Run()
			require.NoError(t, err)
			t.Cleanup(mr.Close)
			return NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), DefaultConfig())
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(":memory:", DefaultConfig())
			require.NoError(t, err)
			return s
		},
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	for name, open := range backends() {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			defer s.Close()
			ctx := context.Background()

			_, err := s.Get(ctx, "missing")
			assert.True(t, IsMiss(err))

			require.NoError(t, s.Set(ctx, "k", []byte("v1"), time.Minute))
			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got)

			require.NoError(t, s.Set(ctx, "k", []byte("v2"), 0))
			got, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), got)

			require.NoError(t, s.Delete(ctx, "k"))
			_, err = s.Get(ctx, "k")
			assert.True(t, IsMiss(err))
		})
	}
}

func TestMemoryStore_Expiration(t *testing.T) {
	s := NewMemoryStore(DefaultConfig())
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, err := s.Get(ctx, "k")
	assert.True(t, IsMiss(err))
}

func TestSQLiteStore_Expiration(t *testing.T) {
	s, err := NewSQLiteStore(":memory:", DefaultConfig())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	now := time.Now()
	s.now = func() time.Time { return now }
	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	s.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = s.Get(ctx, "k")
	assert.True(t, IsMiss(err))
}

func TestRedisStore_Expiration(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	s := NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), DefaultConfig())
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	assert.True(t, mr.Exists(DefaultConfig().Prefix+"k"))

	mr.FastForward(2 * time.Minute)
	_, err = s.Get(ctx, "k")
	assert.True(t, IsMiss(err))
}

func TestOpen(t *testing.T) {
	s, err := Open(Options{Kind: KindMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	require.NoError(t, s.Close())

	s, err = Open(Options{Kind: KindSQLite})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(Options{Kind: "etcd"})
	assert.Error(t, err)
}

func testVersion() *devlist.Version {
	return &devlist.Version{
		ByPath: map[string]version.Version{
			"chunks/styles.css": version.IDVersion("abc"),
		},
		ByMerger: map[string]version.Version{
			"ecmascript": version.MapVersion{"[project]/a.js": "h1", "[project]/b.js": "h2"},
		},
	}
}

func TestCodec(t *testing.T) {
	v := testVersion()

	a, err := Encode(v)
	require.NoError(t, err)
	b, err := Encode(testVersion())
	require.NoError(t, err)
	assert.Equal(t, a, b, "encoding is deterministic")

	decoded, err := Decode(a)
	require.NoError(t, err)
	assert.Equal(t, v.ID(), decoded.ID())
	assert.Equal(t, version.MapVersion{"[project]/a.js": "h1", "[project]/b.js": "h2"}, decoded.ByMerger["ecmascript"])

	_, err = Decode([]byte{0xff})
	assert.Error(t, err)
}

func TestVersions(t *testing.T) {
	vs := NewVersions(NewMemoryStore(DefaultConfig()), 0)
	ctx := context.Background()

	_, ok, err := vs.Load(ctx, "session", "chunks/list.js")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, vs.Save(ctx, "session", "chunks/list.js", testVersion()))
	got, ok, err := vs.Load(ctx, "session", "chunks/list.js")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testVersion().ID(), got.ID())

	_, ok, err = vs.Load(ctx, "other", "chunks/list.js")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, vs.Forget(ctx, "session", "chunks/list.js"))
	_, ok, err = vs.Load(ctx, "session", "chunks/list.js")
	require.NoError(t, err)
	assert.False(t, ok)
}
