package ai

import (
	"context"
)

// OptimizeInput carries the composed prompt for one optimization run
type OptimizeInput struct {
	Prompt        string
	SystemMessage string
	// ExpectCoverLetter signals that the prompt asked for an
	// optimized_cover_letter field in addition to the resume.
	ExpectCoverLetter bool
}

// AIProvider interface for different language-model backends
type AIProvider interface {
	Optimize(ctx context.Context, input OptimizeInput) (*ModelResult, *TokenUsage, error)
	GetModelInfo(ctx context.Context) *ModelInfo
	GetCircuitBreakerStats() map[string]any
	Close() error
}

// ModelInfo represents information about the configured model
type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName,omitempty"`
	Version     string `json:"version,omitempty"`
	Available   bool   `json:"available"`
	Error       string `json:"error,omitempty"`
}

// TokenUsage represents token usage information from model responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}
