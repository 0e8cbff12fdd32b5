package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Server wraps the HTTP server.
type Server struct {
	srv *http.Server
}

// NewRouter wires the routes.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)

	r.Get("/health", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/records", h.Records)
		r.Get("/stats", h.Stats)
		r.Get("/runs", h.Runs)
		r.Post("/runs", h.StartRun)
		r.Delete("/search/cache", h.InvalidateCache)
	})
	return r
}

// NewServer wires routes and returns a ready-to-start Server.
func NewServer(addr string, h *Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:         addr,
			Handler:      NewRouter(h),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 2 * time.Hour, // a run enriches every website
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start begins listening and blocks until the server stops.
func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("gastro-leads api listening")
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down with the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// loggingMiddleware logs each request with method, path, status and duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
