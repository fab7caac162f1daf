// Package server exposes the conformance engine over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reoring/conformance"
	"github.com/reoring/conformance/internal/config"
	"github.com/reoring/conformance/internal/logger"
)

type Server struct {
	eng    *conformance.Engine
	cfg    config.ServerConfig
	logger *logger.Logger
	http   *http.Server
}

func New(eng *conformance.Engine, cfg config.ServerConfig, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{eng: eng, cfg: cfg, logger: log}
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Routes builds the router. It is exported for tests and for embedding the
// service into another mux.
func (s *Server) Routes() *chi.Mux {
	router := chi.NewRouter()
	router.Use(chimw.Recoverer)
	router.Use(s.withRequestID)
	router.Use(withLogging)

	router.Get("/healthz", s.healthz)
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/v1", func(r chi.Router) {
		r.Get("/schemas", s.schemas)
		r.Post("/validate/payload", s.validatePayload)
		r.Post("/validate/response", s.validateResponse)
	})
	return router
}

// Run serves on the configured address until ctx is canceled, then shuts
// down gracefully within the configured timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("http server listening")
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("http server shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
