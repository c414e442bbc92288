// Package api exposes the pipeline over HTTP: run start/stop, run and
// step history, and the pipeline configuration.
package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pivotnews/newsroom/internal/repository"
	"github.com/pivotnews/newsroom/internal/services"
)

type Server struct {
	pipeline *services.Pipeline
	history  *services.RunHistory
	config   repository.ConfigRepository
	// apiToken guards all pipeline endpoints; empty disables auth.
	apiToken string
}

func NewServer(pipeline *services.Pipeline, history *services.RunHistory, config repository.ConfigRepository, apiToken string) *Server {
	return &Server{
		pipeline: pipeline,
		history:  history,
		config:   config,
		apiToken: apiToken,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Route("/pipeline", func(r chi.Router) {
			r.Post("/run", s.startRun)
			r.Post("/stop", s.stopRun)
			r.Get("/config", s.getConfig)
			r.Put("/config", s.updateConfig)
		})
		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.listRuns)
			r.Get("/{id}", s.getRun)
		})
	})

	return r
}

// requireToken enforces bearer-token auth when a token is configured.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiToken != "" {
			auth := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || token != s.apiToken {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
