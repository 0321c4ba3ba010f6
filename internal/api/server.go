// Package api serves the virtual folder forest over HTTP. It is the second
// interactive surface next to the FUSE view and shares its session.
package api

import (
	"net/http"

	"vfolder/internal/logging"
	"vfolder/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var (
	apiLogger = logging.GetLogger().WithPrefix("api")
)

// Server is the HTTP API server for vfolder.
type Server struct {
	router  chi.Router
	session *session.Session
	apiKey  string
}

// NewServer creates and configures the HTTP server. An empty apiKey
// disables authentication.
func NewServer(sess *session.Session, apiKey string) *Server {
	s := &Server{
		session: sess,
		apiKey:  apiKey,
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
	r.Use(RequestLogger(apiLogger))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.apiKey != "" {
			r.Use(AuthMiddleware(s.apiKey))
		}

		r.Get("/roots", s.handleListRoots)
		r.Post("/roots", s.handleCreateRoot)
		r.Route("/roots/{name}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteRoot)
			r.Patch("/", s.handleRenameRoot)
			r.Get("/tree", s.handleTree)
			r.Get("/flat", s.handleFlat)
			r.Get("/search", s.handleSearch)
		})

		r.Route("/nodes/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetNode)
			r.Patch("/", s.handlePatchNode)
			r.Delete("/", s.handleDeleteNode)
			r.Post("/children", s.handleAddChild)
			r.Post("/siblings", s.handleAddSibling)
			r.Get("/ancestors", s.handleAncestors)
			r.Get("/descendants", s.handleDescendants)
			r.Get("/resolve", s.handleResolve)
		})

		r.Post("/move", s.handleMove)
		r.Post("/save", s.handleSave)
		r.Post("/reload", s.handleReload)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
