package internal

import (
	"context"
	"embed"
	"net/http"
	"time"

	"issue-tracker-api/internal/config"
	"issue-tracker-api/internal/handlers"
	"issue-tracker-api/internal/models"
	"issue-tracker-api/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed openapi
var openapiFS embed.FS

type Server struct {
	Store   store.Store
	Router  *chi.Mux
	Metrics *Metrics

	cfg *config.Config
	now func() time.Time
}

// NewServer wires the routes around an already opened store.
func NewServer(st store.Store, cfg *config.Config) *Server {
	s := &Server{
		Store:   st,
		Router:  chi.NewRouter(),
		Metrics: NewMetrics(),
		cfg:     cfg,
		now:     models.Now,
	}

	s.Router.Use(middleware.RequestID)
	s.Router.Use(middleware.RealIP)
	s.Router.Use(middleware.Logger)
	s.Router.Use(middleware.Recoverer)
	if cfg.EnableMetrics {
		s.Router.Use(s.Metrics.Middleware())
		s.Router.Get("/metrics", s.Metrics.Handler().ServeHTTP)
	}

	s.Router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("ok")); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	s.Router.Get("/dbping", s.dbPing)
	s.mountDocs(s.Router)

	s.Router.Route("/api", func(r chi.Router) {
		r.Use(withRequestTimeout(cfg.RequestTimeout))
		s.mountAPIRoutes(r)
	})

	return s
}

// Close releases the store.
func (s *Server) Close(ctx context.Context) error {
	if s.Store != nil {
		return s.Store.Close(ctx)
	}
	return nil
}

func (s *Server) dbPing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		http.Error(w, "db: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	if _, err := w.Write([]byte("db: ok")); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// mountDocs serves the OpenAPI document and a Swagger UI page
func (s *Server) mountDocs(mux *chi.Mux) {
	if !s.cfg.EnableSwagger {
		return
	}

	mux.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		data, err := openapiFS.ReadFile("openapi/openapi.yaml")
		if err != nil {
			http.Error(w, "Failed to read OpenAPI document", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/x-yaml")
		if _, err := w.Write(data); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`<!doctype html>
<html lang="en">
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1">
    <title>Issue Tracker API - Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.9.0/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            window.ui = SwaggerUIBundle({
                url: '/openapi.yaml',
                dom_id: '#swagger-ui',
                deepLinking: true,
                tryItOutEnabled: true
            });
        };
    </script>
</body>
</html>`))
	})
}

func (s *Server) mountAPIRoutes(r chi.Router) {
	r.Route("/issues/{project}", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.recoverIssueOp)
			r.Get("/", s.listIssues)
			r.Post("/", s.createIssue)
			r.Put("/", s.updateIssue)
			r.Delete("/", s.deleteIssue)
		})

		imports := handlers.NewImportsHandler(s.Store, s.cfg.ImportMaxBytes, s.cfg.ImportMapping)
		r.Post("/import", imports.UploadExcel)
	})

	r.Get("/projects", s.listProjects)
}
