package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/gradekey/internal/config"
	"github.com/dgallion1/gradekey/internal/ollama"
	"github.com/dgallion1/gradekey/internal/pipeline"
)

// Server is the HTTP API server for gradekey.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	client       *ollama.Client
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, client *ollama.Client, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		client:       client,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Transcript endpoints. Auth is enforced only when an API key is
	// configured, so local single-user setups stay friction free.
	r.Group(func(r chi.Router) {
		if s.cfg.Serve.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.Serve.APIKey))
		}

		r.Post("/api/transcripts", s.handleSubmit)
		r.Get("/api/transcripts", s.handleList)
		r.Get("/api/transcripts/{jobID}/status", s.handleStatus)
		r.Get("/api/transcripts/{jobID}/legend", s.handleLegend)
		r.Get("/api/transcripts/{jobID}/csv", s.handleCSV)
		r.Delete("/api/transcripts/{jobID}", s.handleDelete)

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
