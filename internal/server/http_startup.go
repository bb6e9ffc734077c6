package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"atsforge/internal/observability"
	"atsforge/internal/pipeline"
)

// Start wires observability, the template watcher and the pipeline, then
// serves HTTP until a shutdown signal arrives.
func (s *Server) Start() error {
	obsConfig := observability.GetObservabilityConfig(s.AppConfig, s.Version)
	om, err := observability.NewObservabilityManager(obsConfig, s.AppConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer s.shutdownObservability(om)

	if err := s.startTemplateWatcher(); err != nil {
		return err
	}

	pl := pipeline.New(s.Store, s.AIService, &s.AppConfig.AI, s.templateSource(), om.GetMetrics(), s.Logger)

	mux := s.setupRoutes(om, pl)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.Host, s.Port),
		Handler:      om.HTTPMiddleware()(mux),
		ReadTimeout:  s.AppConfig.Server.ReadTimeout,
		WriteTimeout: s.AppConfig.Server.WriteTimeout,
		IdleTimeout:  s.AppConfig.Server.IdleTimeout,
	}

	s.displayServerInfo()

	return s.run(httpServer)
}

func (s *Server) shutdownObservability(om *observability.ObservabilityManager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown observability")
	}
}

// templateSource exposes the watcher to the pipeline. A nil watcher must
// become a nil interface, not a typed nil, so the pipeline's guard holds.
func (s *Server) templateSource() pipeline.TemplateSource {
	if s.Templates == nil {
		return nil
	}
	return s.Templates
}

// startTemplateWatcher begins hot-reloading the instruction template file
// when one is configured
func (s *Server) startTemplateWatcher() error {
	if s.Templates == nil || s.AppConfig.AI.TemplateFile == "" {
		return nil
	}
	if err := s.Templates.Start(); err != nil {
		return fmt.Errorf("failed to start template watcher: %w", err)
	}
	return nil
}

// run serves until the listener fails or a SIGINT/SIGTERM arrives, then
// drains in-flight requests.
func (s *Server) run(httpServer *http.Server) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	useTLS := s.TLSConfig.Mode == "server"

	go func() {
		s.Logger.Info("Starting HTTP server",
			"address", httpServer.Addr,
			"tls_enabled", useTLS)

		var err error
		if useTLS {
			err = httpServer.ListenAndServeTLS(s.TLSConfig.CertFile, s.TLSConfig.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-quit:
		s.Logger.Info("Received shutdown signal, starting graceful shutdown",
			"signal", sig.String())
		return s.shutdown(httpServer)
	}
}

// shutdown stops the background workers, drains the HTTP server with a
// bounded deadline and closes the store.
func (s *Server) shutdown(httpServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.stopTemplateWatcher()
	s.cleanupRateLimiter()

	s.Logger.Info("Shutting down HTTP server...")
	if err := httpServer.Shutdown(ctx); err != nil {
		s.Logger.LogError(err, "Failed to shutdown server gracefully, forcing close")
		return httpServer.Close()
	}

	if err := s.Store.Close(); err != nil {
		s.Logger.LogError(err, "Failed to close store")
	}

	s.Logger.Info("Server shutdown completed successfully")
	return nil
}

func (s *Server) stopTemplateWatcher() {
	if s.Templates != nil && s.Templates.IsRunning() {
		if err := s.Templates.Stop(); err != nil {
			s.Logger.LogError(err, "Failed to stop template watcher")
		}
	}
}

func (s *Server) cleanupRateLimiter() {
	if s.RateLimiter != nil {
		s.RateLimiter.Close()
		s.Logger.Info("Rate limiter cleaned up")
	}
}
