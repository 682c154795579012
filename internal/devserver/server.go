// Package devserver serves development outputs over HTTP and pushes chunk
// list updates to connected clients over a websocket.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/conduit-lang/pack/internal/asset"
	"github.com/conduit-lang/pack/internal/chunking"
	"github.com/conduit-lang/pack/internal/devlist"
	"github.com/conduit-lang/pack/internal/issue"
	"github.com/conduit-lang/pack/internal/output"
	"github.com/conduit-lang/pack/internal/project"
	"github.com/conduit-lang/pack/internal/version"
	"github.com/conduit-lang/pack/internal/versionstore"
)

// HMRPath is the websocket endpoint.
const HMRPath = "/__pack/hmr"

// Server serves the dev outputs of a project.
type Server struct {
	project  *project.Project
	cc       *chunking.BuildContext
	versions *versionstore.Versions
	logger   *zap.Logger
	gatherer prometheus.Gatherer
	metrics  *Metrics
	hub      *hub
	router   chi.Router
	updates  keyedMutex

	mu    sync.RWMutex
	files map[string]asset.Output
	lists map[string]*devlist.ChunkList
	names map[string]string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRegistry registers the server metrics with reg and serves reg at
// /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.gatherer = reg
		s.metrics = newMetrics(reg)
	}
}

// New creates a server and computes the initial outputs.
func New(ctx context.Context, p *project.Project, cc *chunking.BuildContext, versions *versionstore.Versions, opts ...Option) (*Server, error) {
	s := &Server{
		project:  p,
		cc:       cc,
		versions: versions,
		logger:   zap.NewNop(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = newMetrics(nil)
	}
	s.logger = s.logger.Named("devserver")
	s.hub = newHub(s.logger, s.metrics)
	s.router = s.routes()

	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.recoverPanics)

	// The socket needs the raw writer to hijack the connection.
	r.Get(HMRPath, s.handleHMR)

	r.Group(func(r chi.Router) {
		r.Use(s.logRequests)
		r.Get("/__pack/entries", s.handleEntries)
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
		r.Get("/*", s.handleFile)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Refresh recomputes the chunk list of every entry and the outputs they
// reach.
func (s *Server) Refresh(ctx context.Context) error {
	files := make(map[string]asset.Output)
	lists := make(map[string]*devlist.ChunkList)
	names := make(map[string]string)
	root := s.cc.OutputRoot()

	for _, e := range s.project.Entries() {
		list, err := s.project.ChunkList(ctx, s.cc, e)
		if err != nil {
			return err
		}
		reached, err := output.Collect(ctx, []asset.Output{list})
		if err != nil {
			return fmt.Errorf("entry %s: %w", e.Name, err)
		}
		for i, f := range reached {
			rel, ok := root.PathTo(f.Path)
			if !ok {
				return issue.NewConfigError("output", f.Path, root)
			}
			files[rel] = f.Output
			if i == 0 {
				lists[rel] = list
				names[e.Name] = rel
			}
		}
	}

	s.mu.Lock()
	s.files, s.lists, s.names = files, lists, names
	s.mu.Unlock()

	s.metrics.Refreshes.Inc()
	s.logger.Debug("outputs refreshed", zap.Int("files", len(files)), zap.Int("lists", len(lists)))
	return nil
}

// Changed refreshes the project after files changed on disk and pushes
// updates to every subscribed client.
func (s *Server) Changed(ctx context.Context, paths []string) error {
	changed, err := s.project.Refresh(paths)
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		return nil
	}
	s.logger.Info("sources changed", zap.Strings("paths", changed))

	collector := issue.NewCollector()
	ctx = issue.WithCollector(ctx, collector)

	if err := s.Refresh(ctx); err != nil {
		s.broadcastError(err)
		return err
	}
	s.Broadcast(ctx)

	if issues := collector.Issues(); len(issues) > 0 {
		for _, c := range s.hub.snapshot() {
			_ = c.send(&Message{Type: TypeIssues, Issues: issues})
		}
	}
	return nil
}

// Broadcast sends every client the updates of the lists it subscribed to.
func (s *Server) Broadcast(ctx context.Context) {
	for _, c := range s.hub.snapshot() {
		for _, p := range c.subscriptions() {
			if err := s.sendUpdate(ctx, c, p); err != nil {
				s.logger.Warn("sending update failed", zap.String("session", c.session), zap.String("path", p), zap.Error(err))
			}
		}
	}
}

func (s *Server) broadcastError(err error) {
	for _, c := range s.hub.snapshot() {
		_ = c.send(&Message{Type: TypeError, Error: err.Error()})
	}
}

// ConnectionCount returns the number of connected update clients.
func (s *Server) ConnectionCount() int {
	return s.hub.count()
}

// Close disconnects every client.
func (s *Server) Close() {
	s.hub.close()
}

// sendUpdate brings the client's copy of the list at p up to date. The
// version sent is remembered per session before the frame goes out. Calls
// for the same session and list run one at a time, so each one computes
// its update from the version the previous one saved.
func (s *Server) sendUpdate(ctx context.Context, c *client, p string) error {
	unlock := s.updates.lock(c.session + "\x00" + p)
	defer unlock()

	s.mu.RLock()
	list, ok := s.lists[p]
	s.mu.RUnlock()
	if !ok {
		return c.send(&Message{Type: TypeError, Path: p, Error: "unknown chunk list"})
	}

	content, err := devlist.NewContent(ctx, list)
	if err != nil {
		return err
	}
	current, err := content.Version(ctx)
	if err != nil {
		return err
	}

	var from version.Version
	prev, found, err := s.versions.Load(ctx, c.session, p)
	if err != nil {
		return err
	}
	if found {
		from = prev
	}

	u, err := content.Update(ctx, from)
	if err != nil {
		return err
	}
	if u.Kind == version.UpdateNone {
		return nil
	}
	if err := s.versions.Save(ctx, c.session, p, current.(*devlist.Version)); err != nil {
		return err
	}
	s.metrics.Updates.WithLabelValues(u.Kind.String()).Inc()
	return c.send(&Message{Type: TypeUpdate, Path: p, Update: &u})
}

func (s *Server) handleHMR(w http.ResponseWriter, r *http.Request) {
	conn, err := s.hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	session := r.URL.Query().Get("session")
	if _, err := uuid.Parse(session); err != nil {
		session = uuid.NewString()
	}
	c := &client{conn: conn, session: session, subs: make(map[string]struct{})}
	s.hub.register(c)
	defer s.hub.unregister(c)

	if err := c.send(&Message{Type: TypeSession, Session: session}); err != nil {
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		switch msg.Type {
		case TypeSubscribe:
			c.subscribe(msg.Path)
			if err := s.sendUpdate(r.Context(), c, msg.Path); err != nil {
				s.logger.Warn("initial update failed", zap.String("path", msg.Path), zap.Error(err))
				_ = c.send(&Message{Type: TypeError, Path: msg.Path, Error: err.Error()})
			}
		case TypeUnsubscribe:
			c.unsubscribe(msg.Path)
		default:
			_ = c.send(&Message{Type: TypeError, Error: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}

type entryInfo struct {
	Name string `json:"name"`
	List string `json:"list"`
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	entries := make([]entryInfo, 0, len(s.names))
	for name, list := range s.names {
		entries = append(entries, entryInfo{Name: name, List: list})
	}
	s.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

// handleFile serves the development content of an output.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(chi.URLParam(r, "*"), "/")

	s.mu.RLock()
	o, ok := s.files[rel]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	vc, err := version.Of(ctx, o)
	if err == nil {
		var v version.Version
		if v, err = vc.Version(ctx); err == nil {
			etag := `"` + v.ID() + `"`
			w.Header().Set("ETag", etag)
			if r.Header.Get("If-None-Match") == etag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	}
	var content asset.Content
	if err == nil {
		content, err = vc.Content(ctx)
	}
	if err != nil {
		var cfgErr *issue.ConfigError
		status := http.StatusInternalServerError
		if errors.As(err, &cfgErr) {
			status = http.StatusUnprocessableEntity
		}
		s.logger.Error("serving output failed", zap.String("path", rel), zap.Error(err))
		http.Error(w, err.Error(), status)
		return
	}
	if !content.Found() {
		http.NotFound(w, r)
		return
	}

	if ct := mime.TypeByExtension(path.Ext(rel)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(content.Bytes())
}
