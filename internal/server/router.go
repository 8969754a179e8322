// Package server implements the HTTP API over the research store.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/inquiry-labs/researchdb/internal/gitlog"
	"github.com/inquiry-labs/researchdb/internal/storage"
)

// Server wires the store, schemas and optional git snapshotter behind
// the HTTP API.
type Server struct {
	research   *storage.Research
	schemas    *storage.Schemas
	cfg        *storage.ServerConfig
	git        *gitlog.Manager // nil when versioning is disabled
	version    string
	readLimit  *limiter
	writeLimit *limiter
}

// New creates the server. git may be nil to disable versioning.
func New(research *storage.Research, schemas *storage.Schemas, cfg *storage.ServerConfig, git *gitlog.Manager, version string) *Server {
	return &Server{
		research:   research,
		schemas:    schemas,
		cfg:        cfg,
		git:        git,
		version:    version,
		readLimit:  newLimiter(cfg.RateLimits.ReadRatePerMin),
		writeLimit: newLimiter(cfg.RateLimits.WriteRatePerMin),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	mux := &http.ServeMux{}

	mux.Handle("GET /api/health", wrap(s, false, s.health))
	mux.Handle("POST /api/sessions", wrap(s, true, s.newSession))
	mux.Handle("GET /api/report", wrap(s, false, s.report))
	mux.Handle("POST /api/rebuild", wrap(s, true, s.rebuildAll))
	mux.Handle("GET /api/schemas/{collection}", wrap(s, false, s.schema))
	mux.Handle("GET /api/git/history", wrap(s, false, s.history))

	mux.Handle("GET /api/{collection}", wrap(s, false, s.query))
	mux.Handle("POST /api/{collection}", wrap(s, true, s.saveDocument))
	mux.Handle("GET /api/{collection}/stats", wrap(s, false, s.stats))
	mux.Handle("GET /api/{collection}/unaddressed", wrap(s, false, s.unaddressed))
	mux.Handle("POST /api/{collection}/rebuild", wrap(s, true, s.rebuild))
	mux.Handle("GET /api/{collection}/sessions", wrap(s, false, s.listSessions))
	mux.Handle("GET /api/{collection}/sessions/{session}", wrap(s, false, s.getSession))
	mux.Handle("PUT /api/{collection}/sessions/{session}", wrap(s, true, s.putSession))
	mux.Handle("GET /api/{collection}/{id}", wrap(s, false, s.getDocument))
	mux.Handle("DELETE /api/{collection}/{id}", wrap(s, true, s.deleteDocument))

	return logRequests(mux)
}

// logRequests logs each request with its duration and status.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("HTTP", "method", r.Method, "path", r.URL.Path, "status", rec.status, "dur", time.Since(start).Round(time.Microsecond))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
