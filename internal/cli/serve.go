package cli

import (
	"fmt"

	"atsforge/internal/ai"
	"atsforge/internal/auth"
	"atsforge/internal/compose"
	"atsforge/internal/config"
	"atsforge/internal/errors"
	"atsforge/internal/render"
	"atsforge/internal/server"
	"atsforge/internal/store"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP server that provides the REST API for document storage,
job descriptions, resume optimization and PDF rendering.

Available endpoints:
- POST /documents, GET /documents, GET /documents/current
- POST /jobs, GET /jobs, GET /jobs/{id}
- POST /optimize, GET /optimizations, GET /optimizations/{id}
- POST /render
- GET/PUT /settings
- GET /health, GET /stats

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server
- Use --cert-file and --key-file for TLS certificates`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled, server (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")

	// Bind flags to viper config keys
	bindFlag := func(key, flagName string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(flagName)); err != nil {
			panic(err)
		}
	}

	bindFlag("server.port", "port")
	bindFlag("server.host", "host")
	bindFlag("server.tls.mode", "tls-mode")
	bindFlag("server.tls.certfile", "cert-file")
	bindFlag("server.tls.keyfile", "key-file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := configFrom(cmd.Context())
	logger := loggerFrom(cmd.Context())

	// Validate TLS configuration after applying overrides
	tempConfig := &config.Config{Server: cfg.Server}
	if err := tempConfig.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	deps, cleanup, err := buildDependencies(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	return server.NewServer(cfg, Version, deps, logger).Start()
}

// buildDependencies wires the store, model service, render proxy, token
// verifier and template watcher from configuration. The returned cleanup
// releases what the server does not shut down itself.
func buildDependencies(cfg *config.Config, logger *errors.Logger) (server.Dependencies, func(), error) {
	st, err := store.Open(cfg.Database, logger, cfg.App.LogLevel == "debug")
	if err != nil {
		return server.Dependencies{}, nil, fmt.Errorf("failed to open store: %w", err)
	}

	aiService, err := ai.NewService(&cfg.AI, logger)
	if err != nil {
		_ = st.Close()
		return server.Dependencies{}, nil, fmt.Errorf("failed to create model service: %w", err)
	}

	verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
	if err != nil {
		_ = st.Close()
		return server.Dependencies{}, nil, fmt.Errorf("failed to create token verifier: %w", err)
	}

	templates, err := config.NewTemplateWatcher(cfg.AI, compose.DefaultTemplate, logger)
	if err != nil {
		_ = st.Close()
		return server.Dependencies{}, nil, fmt.Errorf("failed to load instruction template: %w", err)
	}

	deps := server.Dependencies{
		Store:       st,
		AIService:   aiService,
		RenderProxy: render.NewProxy(cfg.Render, logger),
		Verifier:    verifier,
		Templates:   templates,
	}

	cleanup := func() {
		if err := aiService.Close(); err != nil {
			logger.LogError(err, "Failed to close model service")
		}
	}

	return deps, cleanup, nil
}
