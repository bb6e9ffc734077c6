package ai

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"atsforge/internal/config"
	atsErrors "atsforge/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const upstreamBodyExcerptLimit = 200

// OpenAIProvider implements AIProvider against an OpenAI-compatible
// chat-completions endpoint
type OpenAIProvider struct {
	httpClient     *http.Client
	config         *config.AIConfig
	circuitBreaker *CircuitBreaker[*chatCompletionResponse]
	modelBreaker   *CircuitBreaker[*ModelInfo]
	logger         *atsErrors.Logger
}

// Ensure OpenAIProvider implements AIProvider
var _ AIProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a provider for an OpenAI-compatible endpoint
func NewOpenAIProvider(cfg *config.AIConfig, logger *atsErrors.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, atsErrors.NewServiceUnavailable(atsErrors.ErrCodeModelKeyMissing,
			"language-model API key is not configured")
	}

	return &OpenAIProvider{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config:         cfg,
		circuitBreaker: NewCircuitBreaker[*chatCompletionResponse]("AI-optimize", cfg.CircuitBreaker, logger),
		modelBreaker:   NewCircuitBreaker[*ModelInfo]("AI-model", cfg.CircuitBreaker, logger),
		logger:         logger,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

type chatCompletionRequest struct {
	Model          string             `json:"model"`
	Messages       []chatMessage      `json:"messages"`
	ResponseFormat chatResponseFormat `json:"response_format"`
	Temperature    float32            `json:"temperature,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

// Optimize implements AIProvider for the optimization operation
func (p *OpenAIProvider) Optimize(ctx context.Context, input OptimizeInput) (*ModelResult, *TokenUsage, error) {
	tracer := otel.Tracer("atsforge.ai.openai")
	ctx, span := tracer.Start(ctx, "openai.optimize")
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", p.config.Model),
		attribute.Int("input.prompt_length", len(input.Prompt)),
	)

	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	reqBody := chatCompletionRequest{
		Model: p.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: input.SystemMessage},
			{Role: "user", Content: input.Prompt},
		},
		ResponseFormat: chatResponseFormat{Type: "json_object"},
		Temperature:    p.config.Temperature,
	}

	envelope, err := p.circuitBreaker.Execute(func() (*chatCompletionResponse, error) {
		return executeWithRetry(ctx, "optimize", p.config.MaxRetries, p.logger, func() (*chatCompletionResponse, error) {
			return p.doChatCompletion(ctx, reqBody)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, nil, p.classifyError(err)
	}

	if len(envelope.Choices) == 0 || envelope.Choices[0].Message.Content == "" {
		err := atsErrors.NewMalformedUpstream(atsErrors.ErrCodeModelBadJSON,
			"model response has no message content", nil)
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, nil, err
	}

	result, err := ParseModelContent(envelope.Choices[0].Message.Content)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, nil, err
	}

	usage := p.extractTokenUsage(envelope)
	if usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("ats.score", result.ATSScore),
		attribute.Int("output.optimized_length", len(result.OptimizedContent)),
	)
	return result, usage, nil
}

// doChatCompletion performs one chat-completions round trip. Non-success
// statuses come back as httpStatusError so the retry layer can classify
// them; decode failures are terminal.
func (p *OpenAIProvider) doChatCompletion(ctx context.Context, reqBody chatCompletionRequest) (*chatCompletionResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, atsErrors.NewInternalError(atsErrors.ErrCodeModelFailed,
			"failed to encode model request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(p.config.BaseURL, "/")+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, atsErrors.NewInternalError(atsErrors.ErrCodeModelFailed,
			"failed to build model request", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Warn("Failed to close model response body", "error", closeErr.Error())
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, upstreamBodyExcerptLimit))
		return nil, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var envelope chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, atsErrors.NewMalformedUpstream(atsErrors.ErrCodeModelBadJSON,
			"failed to decode model response envelope", err)
	}
	return &envelope, nil
}

// classifyError maps transport-level failures to the error taxonomy
func (p *OpenAIProvider) classifyError(err error) error {
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

	var statusErr *httpStatusError
	if stderrors.As(err, &statusErr) {
		return atsErrors.NewUpstreamError(atsErrors.ErrCodeModelFailed,
			fmt.Sprintf("model service returned status %d: %s",
				statusErr.StatusCode, statusErr.Body), err)
	}

	return atsErrors.NewUpstreamError(atsErrors.ErrCodeModelFailed,
		"model service call failed", err)
}

// GetModelInfo checks availability of the configured model
func (p *OpenAIProvider) GetModelInfo(ctx context.Context) *ModelInfo {
	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	info, err := p.modelBreaker.Execute(func() (*ModelInfo, error) {
		return p.fetchModelInfo(checkCtx)
	})
	if err != nil {
		p.logger.Warn("Model availability check failed",
			"model", p.config.Model,
			"provider", p.config.Provider,
			"error", err.Error())
		return &ModelInfo{
			Name:  p.config.Model,
			Error: fmt.Sprintf("Failed to get model info: %v", err),
		}
	}
	return info
}

func (p *OpenAIProvider) fetchModelInfo(ctx context.Context) (*ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(p.config.BaseURL, "/")+"/models/"+p.config.Model, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Warn("Failed to close model response body", "error", closeErr.Error())
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, upstreamBodyExcerptLimit))
		return nil, &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var model struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&model); err != nil {
		return nil, err
	}

	return &ModelInfo{
		Name:      p.config.Model,
		Available: true,
	}, nil
}

// GetCircuitBreakerStats returns circuit breaker statistics
func (p *OpenAIProvider) GetCircuitBreakerStats() map[string]any {
	stats := map[string]any{
		"ai_operations":    p.circuitBreaker.GetStats(),
		"model_operations": p.modelBreaker.GetStats(),
	}
	stats["overall_healthy"] = p.circuitBreaker.IsHealthy() && p.modelBreaker.IsHealthy()
	return stats
}

// Close implements AIProvider
func (p *OpenAIProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *OpenAIProvider) extractTokenUsage(envelope *chatCompletionResponse) *TokenUsage {
	if envelope == nil || envelope.Usage == nil {
		return nil
	}
	return &TokenUsage{
		InputTokens:  envelope.Usage.PromptTokens,
		OutputTokens: envelope.Usage.CompletionTokens,
		TotalTokens:  envelope.Usage.TotalTokens,
	}
}
