// Package web provides the HTTP server and handlers for member imports.
package web

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/memberimport/internal/config"
	"github.com/JonMunkholm/memberimport/internal/core"
	mw "github.com/JonMunkholm/memberimport/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP server for member imports.
type Server struct {
	service  *core.Service
	cfg      *config.Config
	defaults core.ImportSettings
	router   *chi.Mux
	server   *http.Server
}

// NewServer wires routes and middleware around service.
func NewServer(service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service:  service,
		cfg:      cfg,
		defaults: sessionDefaults(cfg.Import),
		router:   chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// sessionDefaults seeds new sessions from configuration.
func sessionDefaults(c config.ImportConfig) core.ImportSettings {
	settings := core.DefaultSettings()
	if t, ok := core.ParseTier(c.DefaultTier); ok {
		settings.DefaultTier = t
	}
	if c.DefaultPoints >= 0 {
		settings.DefaultPoints = c.DefaultPoints
	}
	return settings
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		s.router.Use(mw.NewRateLimiter(s.cfg.Rate.RequestsPerMinute).Handler)
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/imports", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(s.cfg.Security))

		// Long-lived: progress streams and waiting for a result.
		r.Get("/{id}/progress", s.handleProgress)
		r.Get("/{id}/result", s.handleResult)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

			r.Get("/template", s.handleTemplate)
			r.Get("/history", s.handleHistory)
			r.Get("/{id}", s.handleSnapshot)
			r.Get("/{id}/errors.csv", s.handleErrorsCSV)
			r.Post("/{id}/cancel", s.handleCancel)
			r.Post("/{id}/reset", s.handleReset)
			r.Delete("/{id}", s.handleDelete)

			r.Group(func(r chi.Router) {
				if s.cfg.Rate.Enabled {
					r.Use(mw.NewRateLimiter(s.cfg.Rate.ImportLimit).Handler)
				}
				r.Post("/preview", s.handlePreview)
				r.Post("/", s.handleImport)
				r.Post("/{id}/start", s.handleStart)
			})
		})
	})
}

// Start listens on the configured address until Shutdown, then returns
// http.ErrServerClosed.
func (s *Server) Start() error {
	slog.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server. Safe to call before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds hardening headers to every response.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				h.Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}
			next.ServeHTTP(w, r)
		})
	}
}
