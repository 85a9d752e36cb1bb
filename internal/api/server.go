// Package api provides the HTTP surface and the main server logic for
// interviewd.
//
// It exposes RESTful endpoints for creating and driving interview sessions,
// reading transcripts and feedback, looking up recorded attempts, and serving
// health and Prometheus metrics. The API integrates the session, attempt,
// feedback, device, and store modules.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/vocalhire/interviewd/internal/attempt"
	"github.com/vocalhire/interviewd/internal/device"
	"github.com/vocalhire/interviewd/internal/feedback"
	"github.com/vocalhire/interviewd/internal/genai"
	"github.com/vocalhire/interviewd/internal/observability"
	"github.com/vocalhire/interviewd/internal/provider"
	"github.com/vocalhire/interviewd/internal/session"
	"github.com/vocalhire/interviewd/internal/store"
)

// DefaultAddr is the default API server listen address.
const DefaultAddr = ":8080"

// Opts holds configuration options for the API server.
type Opts struct {
	// Addr is the listen address.
	Addr string
	// ProviderWSURL is the websocket endpoint of the voice call provider.
	// When empty the server falls back to an in-memory provider, which is
	// only useful for local runs and tests.
	ProviderWSURL string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the API server listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithProviderWSURL sets the voice provider websocket endpoint.
func WithProviderWSURL(url string) Option {
	return func(o *Opts) { o.ProviderWSURL = url }
}

// ProviderFactory creates one call provider per session.
type ProviderFactory func() provider.CallProvider

// MediaFactory creates one media API per session.
type MediaFactory func() device.MediaAPI

// Server wires the session machinery behind the HTTP endpoints. Sessions are
// held in memory; attempts live in the store and survive restarts.
type Server struct {
	addr        string
	repo        store.AttemptRepo
	gatekeeper  *attempt.Gatekeeper
	pipeline    *feedback.Pipeline
	newProvider ProviderFactory
	newMedia    MediaFactory

	mu       sync.Mutex
	sessions map[string]*session.Machine
}

// NewServer creates an API server from its collaborators.
func NewServer(repo store.AttemptRepo, scorer genai.Scorer, newProvider ProviderFactory, newMedia MediaFactory, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}

	gk := attempt.NewGatekeeper(repo)
	return &Server{
		addr:        cfg.Addr,
		repo:        repo,
		gatekeeper:  gk,
		pipeline:    feedback.NewPipeline(scorer, gk),
		newProvider: newProvider,
		newMedia:    newMedia,
		sessions:    make(map[string]*session.Machine),
	}
}

// Handler returns the routed HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sessions", s.createSessionHandler)
	mux.HandleFunc("/sessions/", s.sessionHandler)
	mux.HandleFunc("/attempts/", s.attemptHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", observability.MetricsHandler())
	return mux
}

// ListenAndServe runs the HTTP server until it fails.
func (s *Server) ListenAndServe() error {
	slog.Info("Server listening", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

// Run builds the configured modules and starts the API server. It blocks
// until the server exits.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	repo, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer repo.Close()

	scorer, err := buildScorer(genaiOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize scoring client: %w", err)
	}

	if cfg.ProviderWSURL == "" {
		cfg.ProviderWSURL = os.Getenv("PROVIDER_WS_URL")
	}
	newProvider := buildProviderFactory(cfg.ProviderWSURL)

	srv := NewServer(repo, scorer, newProvider, defaultMediaFactory, apiOpts...)
	return srv.ListenAndServe()
}

// buildStore selects the attempt store backend from the options. With no DSN
// configured the server runs on the in-memory store.
func buildStore(opts []store.Option) (store.AttemptRepo, error) {
	var cfg store.Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Warn("Server using in-memory attempt store, attempts will not survive restarts")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		slog.Debug("Server using PostgreSQL attempt store")
		return store.NewPostgresStore(opts...)
	}
	slog.Debug("Server using SQLite attempt store", "path", cfg.DSN)
	return store.NewSQLiteStore(opts...)
}

func buildScorer(opts []genai.Option) (genai.Scorer, error) {
	return genai.NewClient(opts...)
}

func buildProviderFactory(wsURL string) ProviderFactory {
	if wsURL == "" {
		slog.Warn("Server has no provider websocket URL, sessions will use an in-memory provider")
		return func() provider.CallProvider { return provider.NewMockProvider() }
	}
	return func() provider.CallProvider { return provider.NewWSClient(wsURL) }
}

// defaultMediaFactory grants every device request. Real camera and microphone
// streams belong to the interview front end; the server only tracks their
// on/off state.
func defaultMediaFactory() device.MediaAPI {
	return device.NewMockMediaAPI()
}

func (s *Server) addSession(m *session.Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[m.ID()] = m
}

func (s *Server) getSession(id string) (*session.Machine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessions[id]
	return m, ok
}

func (s *Server) sessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
