// Package api exposes the project editor's HTTP surface: session
// authentication, project and image persistence, server-side rendering
// and PDF export.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"github.com/underlog/underlog"
	"github.com/underlog/underlog/internal/store"
)

const sessionName = "underlog-session"

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	svc      *underlog.Service
	store    *store.Store
	sessions *sessions.CookieStore
	log      *slog.Logger
}

// NewServer creates and configures the HTTP server. sessionSecret
// signs the session cookies.
func NewServer(svc *underlog.Service, st *store.Store, sessionSecret []byte, log *slog.Logger) *Server {
	s := &Server{
		svc:      svc,
		store:    st,
		sessions: sessions.NewCookieStore(sessionSecret),
		log:      log,
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
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.Post("/pdf", s.handlePDF)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(SessionAuth(s.sessions, s.log))

		r.Get("/api/projects", s.handleListProjects)
		r.Post("/api/projects", s.handleCreateProject)
		r.Get("/api/projects/{projectID}", s.handleGetProject)
		r.Put("/api/projects/{projectID}", s.handleUpdateProject)
		r.Delete("/api/projects/{projectID}", s.handleDeleteProject)
		r.Get("/api/projects/{projectID}/image/{imageName}", s.handleGetImage)
		r.Post("/api/projects/{projectID}/render", s.handleRender)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// writeJSON writes a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encoding response", "error", err)
	}
}

// writeError writes a JSON error body.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
