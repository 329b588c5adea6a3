package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lazypower/mnemo/internal/assistant"
	"github.com/lazypower/mnemo/internal/auth"
	"github.com/lazypower/mnemo/internal/metrics"
	"github.com/lazypower/mnemo/internal/store"
)

// Deps are the collaborators the HTTP surface is built on.
type Deps struct {
	DB       *store.DB
	Router   *assistant.Router
	Auth     *auth.Service
	Sessions *auth.Sessions

	Metrics  metrics.Recorder    // Nop when nil
	Gatherer prometheus.Gatherer // /metrics is not mounted when nil
	Logger   *slog.Logger

	LoginRatePerMin int // per client IP; 0 disables limiting
}

// Server is the mnemo HTTP server.
type Server struct {
	db       *store.DB
	assist   *assistant.Router
	auth     *auth.Service
	sessions *auth.Sessions
	metrics  metrics.Recorder
	gatherer prometheus.Gatherer
	logger   *slog.Logger
	limiter  *ipLimiter

	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server.
func New(d Deps, version string) *Server {
	s := &Server{
		db:       d.DB,
		assist:   d.Router,
		auth:     d.Auth,
		sessions: d.Sessions,
		metrics:  d.Metrics,
		gatherer: d.Gatherer,
		logger:   d.Logger,
		version:  version,
		started:  time.Now(),
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if d.LoginRatePerMin > 0 {
		s.limiter = newIPLimiter(d.LoginRatePerMin, time.Minute)
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.withSession)
	r.Use(s.logRequests)

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.middleware(s.metrics, s.logger))
		}
		r.Post("/login", s.handleLogin)
	})
	r.Get("/login/verify", s.handleVerify)
	r.Post("/logout", s.handleLogout)
	r.Get("/me", s.handleMe)

	r.Post("/message", s.handleMessage)
	r.Get("/get-notes", s.handleGetNotes)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/save-push-subscription", s.handleSavePushSubscription)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", metrics.Handler(s.gatherer))
	}

	r.Get("/*", spaHandler())

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.PingContext(r.Context()); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
