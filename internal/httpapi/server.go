package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/doc-translator/internal/config"
	"github.com/MimeLyc/doc-translator/internal/job"
)

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

// Server exposes the job queue over HTTP. Translation work never runs
// in this process; jobs execute in isolated worker processes and the
// handlers only read queue snapshots and persisted worker state.
type Server struct {
	queue    *job.Queue
	dataDir  string
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier

	// streamInterval is the poll cadence of the SSE job stream.
	streamInterval time.Duration

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

func NewServer(queue *job.Queue, dataDir string, opts ...Option) *Server {
	s := &Server{
		queue:          queue,
		dataDir:        dataDir,
		streamInterval: time.Second,
		mux:            http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/jobs/", s.handleJobByID)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
	s.mux.HandleFunc("/api/formats", s.handleFormats)
}
