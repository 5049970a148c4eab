// Package web serves the sheetload JSON API: catalog browsing plus preview
// and import runs over uploaded spreadsheets.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/JonMunkholm/sheetload/internal/config"
	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/JonMunkholm/sheetload/internal/keys"
	"github.com/JonMunkholm/sheetload/internal/pipeline"
	"github.com/JonMunkholm/sheetload/internal/source"
	"github.com/JonMunkholm/sheetload/internal/web/middleware"
)

// Server is the HTTP API.
type Server struct {
	cfg      *config.Config
	catalog  core.Catalog
	sources  *source.Registry
	resolver *keys.Resolver
	opts     pipeline.Options
	limiter  *core.RunLimiter
	columns  *lru.Cache[string, []core.DestinationColumn]
	router   *chi.Mux
	server   *http.Server
}

// NewServer wires the API over catalog and sources.
func NewServer(cfg *config.Config, catalog core.Catalog, sources *source.Registry) (*Server, error) {
	opts, err := pipeline.OptionsFromConfig(cfg.Pipeline)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, []core.DestinationColumn](cfg.Server.MetadataCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create metadata cache: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		catalog:  catalog,
		sources:  sources,
		resolver: keys.NewResolver(catalog),
		opts:     opts,
		limiter:  core.NewRunLimiter(cfg.Pipeline.MaxConcurrent, cfg.Pipeline.MaxWait),
		columns:  cache,
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Server.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(s.opts.Timeout + s.cfg.Pipeline.MaxWait))
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(s.cfg.Server.APIKeys))

		r.Get("/schemas", s.handleListSchemas)
		r.Get("/schemas/{schema}/tables", s.handleListTables)

		r.Get("/tables/{schema}/{table}/columns", s.handleColumns)
		r.Get("/tables/{schema}/{table}/identifier", s.handleIdentifier)

		r.Post("/preview/{schema}/{table}", s.handlePreview)
		r.Post("/import/{schema}/{table}", s.handleImport)
	})
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, then waits for active runs.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if err := s.server.Shutdown(ctx); err != nil {
		return err
	}
	return s.limiter.WaitForDrain(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
