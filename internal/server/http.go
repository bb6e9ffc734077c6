package server

import (
	"atsforge/internal/ai"
	"atsforge/internal/auth"
	"atsforge/internal/config"
	atsErrors "atsforge/internal/errors"
	"atsforge/internal/render"
	"atsforge/internal/store"
)

// DocumentRequest represents the request body for uploading a source document
type DocumentRequest struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// JobRequest represents the request body for submitting a job description
type JobRequest struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
}

// OptimizeRequest represents the request body for the optimize endpoint
type OptimizeRequest struct {
	JobDescriptionID string `json:"jobDescriptionId"`
}

// RenderRequest represents the request body for the render endpoint.
// RenderKey overrides the key stored in user settings when provided.
type RenderRequest struct {
	OptimizationID string `json:"optimizationId"`
	Document       string `json:"document,omitempty"` // "resume" (default) or "cover_letter"
	RenderKey      string `json:"renderKey,omitempty"`
}

// SettingsRequest represents the request body for updating user settings
type SettingsRequest struct {
	InstructionTemplate string `json:"instructionTemplate"`
	RenderKey           string `json:"renderKey"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Dependencies holds the constructed components the server serves
type Dependencies struct {
	Store       *store.Store
	AIService   *ai.Service
	RenderProxy *render.Proxy
	Verifier    *auth.Verifier
	Templates   *config.TemplateWatcher
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// TLS Configuration
	TLSConfig config.TLSConfig

	// Wired components
	Store       *store.Store
	AIService   *ai.Service
	RenderProxy *render.Proxy
	Verifier    *auth.Verifier
	Templates   *config.TemplateWatcher

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *LimiterManager

	// Logger
	Logger *atsErrors.Logger
}

// NewServer creates a new Server instance from the app config and wired components
func NewServer(appCfg *config.Config, version string, deps Dependencies, logger *atsErrors.Logger) *Server {
	rateLimit := appCfg.Server.RateLimit

	var rateLimiter *LimiterManager
	if rateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			rateLimit.RequestsPerMin,
			rateLimit.BurstCapacity,
			logger,
		)
	}

	return &Server{
		Host:           appCfg.Server.Host,
		Port:           appCfg.Server.Port,
		Version:        version,
		AppConfig:      appCfg,
		TLSConfig:      appCfg.Server.TLS,
		Store:          deps.Store,
		AIService:      deps.AIService,
		RenderProxy:    deps.RenderProxy,
		Verifier:       deps.Verifier,
		Templates:      deps.Templates,
		MaxRequestSize: appCfg.Server.MaxRequestSize,
		RateLimit:      &rateLimit,
		RateLimiter:    rateLimiter,
		Logger:         logger,
	}
}
