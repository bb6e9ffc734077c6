package ai

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"

	"atsforge/internal/config"
	atsErrors "atsforge/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GeminiProvider implements AIProvider for Google Gemini
type GeminiProvider struct {
	client         *genai.Client
	config         *config.AIConfig
	circuitBreaker *CircuitBreaker[*genai.GenerateContentResponse]
	modelBreaker   *CircuitBreaker[*genai.Model]
	logger         *atsErrors.Logger
}

// Ensure GeminiProvider implements AIProvider
var _ AIProvider = (*GeminiProvider)(nil)

// NewGeminiProvider creates a new Gemini provider instance
func NewGeminiProvider(cfg *config.AIConfig, logger *atsErrors.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, atsErrors.NewServiceUnavailable(atsErrors.ErrCodeModelKeyMissing,
			"language-model API key is not configured")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, atsErrors.NewInternalError(atsErrors.ErrCodeModelFailed,
			"failed to create Gemini client", err)
	}

	return &GeminiProvider{
		client:         client,
		config:         cfg,
		circuitBreaker: NewCircuitBreaker[*genai.GenerateContentResponse]("AI-optimize", cfg.CircuitBreaker, logger),
		modelBreaker:   NewCircuitBreaker[*genai.Model]("AI-model", cfg.CircuitBreaker, logger),
		logger:         logger,
	}, nil
}

// Optimize implements AIProvider for the optimization operation
func (g *GeminiProvider) Optimize(ctx context.Context, input OptimizeInput) (*ModelResult, *TokenUsage, error) {
	tracer := otel.Tracer("atsforge.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini.optimize")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", g.config.Model),
		attribute.Int("input.prompt_length", len(input.Prompt)),
	)

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	genaiConfig := g.buildOptimizeSchema(input.ExpectCoverLetter)
	if input.SystemMessage != "" {
		genaiConfig.SystemInstruction = genai.NewContentFromText(input.SystemMessage, genai.RoleUser)
	}

	result, err := g.circuitBreaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return executeWithRetry(ctx, "optimize", g.config.MaxRetries, g.logger, func() (*genai.GenerateContentResponse, error) {
			return g.client.Models.GenerateContent(ctx, g.config.Model, genai.Text(input.Prompt), genaiConfig)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, nil, g.classifyError(err)
	}

	parsed, err := ParseModelContent(result.Text())
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, nil, err
	}

	usage := extractGeminiTokenUsage(result)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("ats.score", parsed.ATSScore),
		attribute.Int("output.optimized_length", len(parsed.OptimizedContent)),
	)
	return parsed, usage, nil
}

// classifyError maps Gemini client failures to the error taxonomy
func (g *GeminiProvider) classifyError(err error) error {
	var appErr *atsErrors.AppError
	if stderrors.As(err, &appErr) {
		return err
	}

	var netErr net.Error
	if stderrors.Is(err, context.DeadlineExceeded) ||
		(stderrors.As(err, &netErr) && netErr.Timeout()) {
		return atsErrors.NewTimeout(atsErrors.ErrCodeModelTimeout,
			"model call exceeded the configured timeout", err)
	}

	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) {
		return atsErrors.NewUpstreamError(atsErrors.ErrCodeModelFailed,
			fmt.Sprintf("model service returned status %d: %s", apiErr.Code, apiErr.Message), err)
	}

	return atsErrors.NewUpstreamError(atsErrors.ErrCodeModelFailed,
		"model service call failed", err)
}

// buildOptimizeSchema constrains the response to the expected JSON shape
func (g *GeminiProvider) buildOptimizeSchema(expectCoverLetter bool) *genai.GenerateContentConfig {
	properties := map[string]*genai.Schema{
		"optimized_latex": {Type: genai.TypeString},
		"suggestions":     {Type: genai.TypeString},
		"ats_score":       {Type: genai.TypeInteger},
	}
	if expectCoverLetter {
		properties["optimized_cover_letter"] = &genai.Schema{Type: genai.TypeString}
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type:       genai.TypeObject,
			Properties: properties,
			Required:   []string{"optimized_latex", "suggestions", "ats_score"},
		},
	}

	if g.config.Temperature > 0 {
		temperature := g.config.Temperature
		cfg.Temperature = &temperature
	}

	return cfg
}

// GetModelInfo checks the readiness and availability of the configured model
func (g *GeminiProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	modelInfo := &ModelInfo{
		Name:      g.config.Model,
		Available: false,
	}

	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	model, err := g.modelBreaker.Execute(func() (*genai.Model, error) {
		return g.client.Models.Get(checkCtx, g.config.Model, &genai.GetModelConfig{})
	})
	if err != nil {
		modelInfo.Error = fmt.Sprintf("Failed to get model info: %v", err)
		g.logger.Warn("Model availability check failed",
			"model", g.config.Model,
			"provider", g.config.Provider,
			"error", err.Error())
		return modelInfo
	}

	modelInfo.Available = true
	if model.DisplayName != "" {
		modelInfo.DisplayName = model.DisplayName
	}
	if model.Version != "" {
		modelInfo.Version = model.Version
	}
	return modelInfo
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (g *GeminiProvider) GetCircuitBreakerStats() map[string]any {
	stats := map[string]any{
		"ai_operations":    g.circuitBreaker.GetStats(),
		"model_operations": g.modelBreaker.GetStats(),
	}
	stats["overall_healthy"] = g.circuitBreaker.IsHealthy() && g.modelBreaker.IsHealthy()
	return stats
}

// Close implements AIProvider
func (g *GeminiProvider) Close() error {
	// Gemini client has no Close in single-shot usage
	return nil
}

func extractGeminiTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}

	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
