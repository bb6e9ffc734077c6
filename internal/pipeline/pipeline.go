// Package pipeline orchestrates one optimization run: precondition checks,
// store reads, prompt composition, the model call, response validation and
// persistence of the result.
package pipeline

import (
	"context"
	"time"

	"atsforge/internal/ai"
	"atsforge/internal/compose"
	"atsforge/internal/config"
	"atsforge/internal/errors"
	"atsforge/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// Optimizer is the single model operation the pipeline depends on
type Optimizer interface {
	Optimize(ctx context.Context, input ai.OptimizeInput) (*ai.ModelResult, *ai.TokenUsage, error)
}

// TemplateSource supplies the process-wide default instruction template
type TemplateSource interface {
	Get() string
}

// MetricsRecorder receives business metrics from completed runs
type MetricsRecorder interface {
	RecordOptimizationCreated(ctx context.Context, provider string, score int)
	RecordPipelineDuration(ctx context.Context, duration time.Duration, success bool)
	RecordModelRequest(ctx context.Context, provider string, success bool, usage *ai.TokenUsage)
}

// Pipeline runs optimization requests. Stateless; safe for concurrent use.
type Pipeline struct {
	store     *store.Store
	optimizer Optimizer
	aiConfig  *config.AIConfig
	templates TemplateSource
	metrics   MetricsRecorder
	logger    *errors.Logger
}

// New creates a pipeline. templates and metrics may be nil.
func New(st *store.Store, optimizer Optimizer, aiConfig *config.AIConfig, templates TemplateSource, metrics MetricsRecorder, logger *errors.Logger) *Pipeline {
	return &Pipeline{
		store:     st,
		optimizer: optimizer,
		aiConfig:  aiConfig,
		templates: templates,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run executes one optimization for the given user and job description.
// Exactly one Optimization row is written on success and none on any
// failure path. Re-running with the same inputs creates a new independent
// record.
func (p *Pipeline) Run(ctx context.Context, userID, jobDescriptionID string) (*store.Optimization, error) {
	tracer := otel.Tracer("atsforge.pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.optimize")
	defer span.End()

	start := time.Now()
	result, err := p.run(ctx, userID, jobDescriptionID)
	if p.metrics != nil {
		p.metrics.RecordPipelineDuration(ctx, time.Since(start), err == nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, err
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("ats.score", result.ATSScore),
	)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, userID, jobDescriptionID string) (*store.Optimization, error) {
	// Preconditions fail fast, in order, each with a distinct error kind
	if userID == "" {
		return nil, errors.NewUnauthorized(errors.ErrCodeMissingIdentity,
			"caller identity is required")
	}
	if jobDescriptionID == "" {
		return nil, errors.NewBadRequest(errors.ErrCodeMissingJobID,
			"jobDescriptionId is required")
	}
	if p.aiConfig.APIKey == "" {
		return nil, errors.NewServiceUnavailable(errors.ErrCodeModelKeyMissing,
			"language-model API key is not configured")
	}

	job, err := p.store.GetJobDescription(ctx, userID, jobDescriptionID)
	if err != nil {
		return nil, err
	}

	resume, err := p.store.GetCurrentDocument(ctx, userID, store.DocumentTypeResume)
	if err != nil {
		return nil, err
	}

	// A cover letter is optional input; its absence is not an error
	coverLetter := ""
	if letter, err := p.store.GetCurrentDocument(ctx, userID, store.DocumentTypeCoverLetter); err == nil {
		coverLetter = letter.Content
	} else if errors.KindOf(err) != errors.KindNotFound {
		return nil, err
	}

	template, err := p.resolveTemplate(ctx, userID)
	if err != nil {
		return nil, err
	}

	prompt := compose.Prompt(compose.Request{
		Template:    template,
		Resume:      resume.Content,
		CoverLetter: coverLetter,
		Job: compose.Job{
			Title:       job.Title,
			Company:     job.Company,
			Description: job.Description,
		},
	})

	modelResult, usage, err := p.optimizer.Optimize(ctx, ai.OptimizeInput{
		Prompt:            prompt,
		SystemMessage:     compose.SystemMessage,
		ExpectCoverLetter: coverLetter != "",
	})
	if p.metrics != nil {
		p.metrics.RecordModelRequest(ctx, p.aiConfig.Provider, err == nil, usage)
	}
	if err != nil {
		return nil, err
	}

	optimization := &store.Optimization{
		UserID:               userID,
		JobDescriptionID:     job.ID,
		SourceDocumentID:     resume.ID,
		OptimizedContent:     modelResult.OptimizedContent,
		OptimizedCoverLetter: modelResult.OptimizedCoverLetter,
		Suggestions:          modelResult.Suggestions,
		ATSScore:             modelResult.ATSScore,
		Provider:             p.aiConfig.Provider,
		Model:                p.aiConfig.Model,
	}
	if err := p.store.CreateOptimization(ctx, optimization); err != nil {
		return nil, err
	}

	logArgs := []any{
		"user_id", userID,
		"job_description_id", job.ID,
		"optimization_id", optimization.ID,
		"ats_score", optimization.ATSScore,
	}
	if usage != nil {
		logArgs = append(logArgs, "total_tokens", usage.TotalTokens)
	}
	p.logger.Info("Optimization completed", logArgs...)

	if p.metrics != nil {
		p.metrics.RecordOptimizationCreated(ctx, p.aiConfig.Provider, optimization.ATSScore)
	}
	return optimization, nil
}

// resolveTemplate picks the user's saved template when present, otherwise
// the process-wide default.
func (p *Pipeline) resolveTemplate(ctx context.Context, userID string) (string, error) {
	settings, err := p.store.GetUserSettings(ctx, userID)
	if err != nil {
		return "", err
	}
	if settings != nil && settings.InstructionTemplate != "" {
		return settings.InstructionTemplate, nil
	}
	if p.templates != nil {
		if template := p.templates.Get(); template != "" {
			return template, nil
		}
	}
	return compose.DefaultTemplate, nil
}
