package ai

import (
	"context"
	"fmt"
	"time"

	"atsforge/internal/config"
	"atsforge/internal/errors"
)

const modelCheckTimeout = 10 * time.Second

// Service handles language-model operations for the optimization pipeline
type Service struct {
	Provider AIProvider // Exported for access from server package
	config   *config.AIConfig
	logger   *errors.Logger
}

// NewService creates an AI service backed by the configured provider
func NewService(cfg *config.AIConfig, logger *errors.Logger) (*Service, error) {
	logger.Debug("Initializing AI service",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"temperature", cfg.Temperature,
		"timeout", cfg.Timeout,
		"max_retries", cfg.MaxRetries)

	var provider AIProvider
	var err error

	switch cfg.Provider {
	case "openai":
		provider, err = NewOpenAIProvider(cfg, logger)
	case "gemini":
		provider, err = NewGeminiProvider(cfg, logger)
	default:
		return nil, errors.NewInternalError(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("unsupported AI provider: %s", cfg.Provider), nil)
	}
	if err != nil {
		return nil, err
	}

	return &Service{
		Provider: provider,
		config:   cfg,
		logger:   logger,
	}, nil
}

// Optimize runs one optimization call against the configured provider
func (s *Service) Optimize(ctx context.Context, input OptimizeInput) (*ModelResult, *TokenUsage, error) {
	return s.Provider.Optimize(ctx, input)
}

// GetModelInfo returns model availability information for health checks
func (s *Service) GetModelInfo(ctx context.Context) *ModelInfo {
	return s.Provider.GetModelInfo(ctx)
}

// Close releases provider resources
func (s *Service) Close() error {
	return s.Provider.Close()
}
