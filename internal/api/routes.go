package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/cern-fcc/datacatalog/internal/auth"
)

// Routes builds the chi router mounting every handler under /api, mirroring
// the teacher's route-group structure: global middleware wraps the whole
// /api group, CORS is applied once at the top.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(LoggingMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/search", s.handleSearch)
		r.Get("/schema", s.handleSchema)
		r.Route("/navigation", func(r chi.Router) {
			r.Get("/search", s.handleGenericSearch)
			r.Get("/{entity}/options", s.handleDropdown)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(s.Authn, s.Config.General.RequiredCERNRole))
			r.Post("/ingest", s.handleIngest)
			r.Delete("/processes/{id}", s.handleDeleteProcess)
		})
	})

	return r
}
