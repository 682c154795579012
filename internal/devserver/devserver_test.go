package devserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/conduit-lang/pack/internal/chunking"
	"github.com/conduit-lang/pack/internal/memo"
	"github.com/conduit-lang/pack/internal/project"
	"github.com/conduit-lang/pack/internal/runtime"
	"github.com/conduit-lang/pack/internal/versionstore"
	"github.com/conduit-lang/pack/internal/vpath"
)

const graphYAML = `
modules:
  - path: src/index.js
    imports: [src/util.js, src/styles.css]
  - path: src/util.js
  - path: src/styles.css
entries:
  - name: main
    module: src/index.js
`

type testServer struct {
	*Server
	fs      afero.Fs
	http    *httptest.Server
	entries []entryInfo
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	fs := afero.NewMemMapFs()
	for p, content := range map[string]string{
		"/app/pack.graph.yml": graphYAML,
		"/app/src/index.js":   "require('./util');",
		"/app/src/util.js":    "exports.util = 1;",
		"/app/src/styles.css": "body {}",
	} {
		require.NoError(t, afero.WriteFile(fs, p, []byte(content), 0o644))
	}

	e, err := memo.NewEngine()
	require.NoError(t, err)
	p, err := project.Load(fs, vpath.New("/app"), "", e, zap.NewNop())
	require.NoError(t, err)
	cc := chunking.NewBuilder(e,
		vpath.New("/app"),
		vpath.New("/app/dist"),
		vpath.New("/app/dist/chunks"),
		vpath.New("/app/dist/static"),
		runtime.BrowserEnvironment(),
	).Build()

	store := versionstore.NewMemoryStore(versionstore.DefaultConfig())
	t.Cleanup(func() { _ = store.Close() })

	s, err := New(context.Background(), p, cc, versionstore.NewVersions(store, time.Minute),
		WithRegistry(prometheus.NewRegistry()))
	require.NoError(t, err)

	ts := &testServer{Server: s, fs: fs, http: httptest.NewServer(s)}
	t.Cleanup(func() {
		s.Close()
		ts.http.Close()
	})

	resp, err := http.Get(ts.http.URL + "/__pack/entries")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ts.entries))
	require.Len(t, ts.entries, 1)
	return ts
}

func (ts *testServer) dial(t *testing.T, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + HMRPath
	if session != "" {
		url += "?session=" + session
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (ts *testServer) change(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(ts.fs, p, []byte(content), 0o644))
	require.NoError(t, ts.Changed(context.Background(), []string{p}))
}

// frame mirrors Message with the update left undecoded.
type frame struct {
	Type    string `json:"type"`
	Session string `json:"session"`
	Path    string `json:"path"`
	Error   string `json:"error"`
	Update  struct {
		Type        string          `json:"type"`
		To          string          `json:"to"`
		Instruction json.RawMessage `json:"instruction"`
	} `json:"update"`
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestServer_Entries(t *testing.T) {
	ts := newTestServer(t)
	assert.Equal(t, "main", ts.entries[0].Name)
	assert.Regexp(t, `^chunks/src_index\.js_[0-9a-f]{8}\.js$`, ts.entries[0].List)
}

func TestServer_Updates(t *testing.T) {
	ts := newTestServer(t)
	list := ts.entries[0].List

	conn := ts.dial(t, "")
	hello := read(t, conn)
	require.Equal(t, TypeSession, hello.Type)
	require.NotEmpty(t, hello.Session)

	require.NoError(t, conn.WriteJSON(Message{Type: TypeSubscribe, Path: list}))
	first := read(t, conn)
	require.Equal(t, TypeUpdate, first.Type)
	assert.Equal(t, list, first.Path)
	assert.Equal(t, "total", first.Update.Type)
	assert.NotEmpty(t, first.Update.To)

	t.Run("script change is partial", func(t *testing.T) {
		ts.change(t, "/app/src/util.js", "exports.util = 2;")

		f := read(t, conn)
		require.Equal(t, TypeUpdate, f.Type)
		assert.Equal(t, "partial", f.Update.Type)
		assert.Contains(t, string(f.Update.Instruction), `"merger":"ecmascript"`)
		assert.Contains(t, string(f.Update.Instruction), "exports.util = 2;")
	})

	t.Run("unknown list", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(Message{Type: TypeSubscribe, Path: "chunks/nope.js"}))
		f := read(t, conn)
		assert.Equal(t, TypeError, f.Type)
		assert.Equal(t, "chunks/nope.js", f.Path)
	})

	t.Run("reconnect resumes the session", func(t *testing.T) {
		require.NoError(t, conn.Close())
		require.Eventually(t, func() bool { return ts.ConnectionCount() == 0 }, 5*time.Second, 10*time.Millisecond)
		ts.change(t, "/app/src/util.js", "exports.util = 3;")

		again := ts.dial(t, hello.Session)
		resumed := read(t, again)
		require.Equal(t, hello.Session, resumed.Session)

		require.NoError(t, again.WriteJSON(Message{Type: TypeSubscribe, Path: list}))
		f := read(t, again)
		require.Equal(t, TypeUpdate, f.Type)
		assert.Equal(t, "partial", f.Update.Type)
		assert.Contains(t, string(f.Update.Instruction), "exports.util = 3;")
	})
}

func TestServer_ConcurrentBroadcastsSendOneUpdate(t *testing.T) {
	ts := newTestServer(t)
	list := ts.entries[0].List
	ctx := context.Background()

	conn := ts.dial(t, "")
	read(t, conn)
	require.NoError(t, conn.WriteJSON(Message{Type: TypeSubscribe, Path: list}))
	require.Equal(t, "total", read(t, conn).Update.Type)

	require.NoError(t, afero.WriteFile(ts.fs, "/app/src/util.js", []byte("exports.util = 2;"), 0o644))
	_, err := ts.project.Refresh([]string{"/app/src/util.js"})
	require.NoError(t, err)
	require.NoError(t, ts.Refresh(ctx))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts.Broadcast(ctx)
		}()
	}
	wg.Wait()

	f := read(t, conn)
	require.Equal(t, TypeUpdate, f.Type)
	assert.Equal(t, "partial", f.Update.Type)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var extra frame
	assert.Error(t, conn.ReadJSON(&extra), "each change is sent once")
	assert.Zero(t, ts.updates.len())
}

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex
	unlockA := k.lock("a")
	unlockB := k.lock("b")
	assert.Equal(t, 2, k.len())

	acquired := make(chan struct{})
	go func() {
		unlock := k.lock("a")
		close(acquired)
		unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second holder entered while the key was locked")
	case <-time.After(50 * time.Millisecond):
	}

	unlockA()
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never acquired the key")
	}
	unlockB()
	assert.Eventually(t, func() bool { return k.len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestServer_InvalidSession(t *testing.T) {
	ts := newTestServer(t)
	conn := ts.dial(t, "not-a-uuid")
	f := read(t, conn)
	require.Equal(t, TypeSession, f.Type)
	assert.NotEqual(t, "not-a-uuid", f.Session)
}

func TestServer_Files(t *testing.T) {
	ts := newTestServer(t)
	list := ts.entries[0].List

	resp, err := http.Get(ts.http.URL + "/" + list)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")
	assert.Contains(t, string(body), "TURBOPACK_CHUNK_LISTS")
	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)

	req, err := http.NewRequest(http.MethodGet, ts.http.URL+"/"+list, nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", etag)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp.StatusCode)

	resp, err = http.Get(ts.http.URL + "/chunks/missing.js")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_Metrics(t *testing.T) {
	ts := newTestServer(t)

	conn := ts.dial(t, "")
	read(t, conn)
	require.NoError(t, conn.WriteJSON(Message{Type: TypeSubscribe, Path: ts.entries[0].List}))
	read(t, conn)

	resp, err := http.Get(ts.http.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Contains(t, string(body), `pack_devserver_updates_total{kind="total"} 1`)
	assert.Contains(t, string(body), "pack_devserver_connections 1")
	assert.Contains(t, string(body), "pack_devserver_refreshes_total 1")
}

func TestRecoverPanics(t *testing.T) {
	s := &Server{logger: zap.NewNop()}
	h := s.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLogRequests_RecordsStatus(t *testing.T) {
	s := &Server{logger: zap.NewNop()}
	var seen *statusRecorder
	h := s.logRequests(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.(*statusRecorder)
		http.NotFound(w, r)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	require.NotNil(t, seen)
	assert.Equal(t, http.StatusNotFound, seen.status)
	assert.Positive(t, seen.bytes)
}
