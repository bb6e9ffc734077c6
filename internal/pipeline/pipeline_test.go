package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"atsforge/internal/ai"
	"atsforge/internal/compose"
	"atsforge/internal/config"
	"atsforge/internal/errors"
	"atsforge/internal/store"
)

var testDBCounter atomic.Int64

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver: "sqlite",
		Path:   fmt.Sprintf("file:pipelinetest%d?mode=memory&cache=shared", testDBCounter.Add(1)),
	}
	s, err := store.Open(cfg, errors.NewLogger(slog.LevelError), false)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("failed to close test store: %v", err)
		}
	})
	return s
}

// fakeOptimizer simulates the model by parsing canned response content
// through the same validation path the real providers use
type fakeOptimizer struct {
	content   string
	err       error
	lastInput ai.OptimizeInput
	calls     int
}

func (f *fakeOptimizer) Optimize(ctx context.Context, input ai.OptimizeInput) (*ai.ModelResult, *ai.TokenUsage, error) {
	f.lastInput = input
	f.calls++
	if f.err != nil {
		return nil, nil, f.err
	}
	result, err := ai.ParseModelContent(f.content)
	if err != nil {
		return nil, nil, err
	}
	return result, &ai.TokenUsage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150}, nil
}

func testAIConfig() *config.AIConfig {
	return &config.AIConfig{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		APIKey:   "test-key",
	}
}

func newTestPipeline(t *testing.T, s *store.Store, optimizer Optimizer) *Pipeline {
	t.Helper()
	return New(s, optimizer, testAIConfig(), nil, nil, errors.NewLogger(slog.LevelError))
}

func seedUser(t *testing.T, s *store.Store, userID string) (*store.SourceDocument, *store.JobDescription) {
	t.Helper()
	ctx := context.Background()
	doc := &store.SourceDocument{UserID: userID, Type: store.DocumentTypeResume, Content: "\\section{Experience} Go developer"}
	if err := s.CreateSourceDocument(ctx, doc); err != nil {
		t.Fatalf("failed to seed resume: %v", err)
	}
	job := &store.JobDescription{
		UserID:      userID,
		Title:       "Backend Engineer",
		Company:     "Acme",
		Description: "requires Go and Kubernetes",
	}
	if err := s.CreateJobDescription(ctx, job); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}
	return doc, job
}

func countOptimizations(t *testing.T, s *store.Store, userID string) int {
	t.Helper()
	list, err := s.ListOptimizations(context.Background(), userID)
	if err != nil {
		t.Fatalf("failed to list optimizations: %v", err)
	}
	return len(list)
}

func TestRunEndToEnd(t *testing.T) {
	s := newTestStore(t)
	doc, job := seedUser(t, s, "user-a")

	fake := &fakeOptimizer{
		content: `{"optimized_latex": "\\section{Experience} Go and Kubernetes developer", "suggestions": "Added Kubernetes keyword to experience", "ats_score": 82}`,
	}
	p := newTestPipeline(t, s, fake)

	result, err := p.Run(context.Background(), "user-a", job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ATSScore != 82 {
		t.Errorf("ats score = %d, want 82", result.ATSScore)
	}
	if result.JobDescriptionID != job.ID {
		t.Errorf("job reference = %s, want %s", result.JobDescriptionID, job.ID)
	}
	if result.SourceDocumentID != doc.ID {
		t.Errorf("document reference = %s, want %s", result.SourceDocumentID, doc.ID)
	}
	if result.ID == "" {
		t.Error("expected persisted optimization ID")
	}
	if count := countOptimizations(t, s, "user-a"); count != 1 {
		t.Errorf("optimization rows = %d, want 1", count)
	}

	if !strings.Contains(fake.lastInput.Prompt, "Title: Backend Engineer") {
		t.Error("prompt missing job title")
	}
	if !strings.Contains(fake.lastInput.Prompt, "Go developer") {
		t.Error("prompt missing resume content")
	}
	if fake.lastInput.SystemMessage == "" {
		t.Error("expected a system message enforcing JSON output")
	}
}

func TestRunPreconditionOrder(t *testing.T) {
	s := newTestStore(t)
	_, job := seedUser(t, s, "user-a")
	fake := &fakeOptimizer{content: `{"optimized_latex": "x", "suggestions": "s", "ats_score": 1}`}

	tests := []struct {
		name     string
		userID   string
		jobID    string
		apiKey   string
		wantKind errors.Kind
	}{
		{"missing identity", "", job.ID, "key", errors.KindUnauthorized},
		{"missing job id", "user-a", "", "key", errors.KindBadRequest},
		{"missing model key", "user-a", job.ID, "", errors.KindServiceUnavailable},
		{"job not found", "user-a", "no-such-job", "key", errors.KindNotFound},
		{"job owned by someone else", "user-b", job.ID, "key", errors.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testAIConfig()
			cfg.APIKey = tt.apiKey
			p := New(s, fake, cfg, nil, nil, errors.NewLogger(slog.LevelError))

			_, err := p.Run(context.Background(), tt.userID, tt.jobID)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.KindOf(err); got != tt.wantKind {
				t.Errorf("error kind = %s, want %s", got, tt.wantKind)
			}
		})
	}

	if fake.calls != 0 {
		t.Errorf("model calls = %d, want 0 when preconditions fail", fake.calls)
	}
	if count := countOptimizations(t, s, "user-a"); count != 0 {
		t.Errorf("optimization rows = %d, want 0", count)
	}
}

func TestRunNoCurrentDocument(t *testing.T) {
	s := newTestStore(t)
	job := &store.JobDescription{UserID: "user-a", Title: "t", Description: "d"}
	if err := s.CreateJobDescription(context.Background(), job); err != nil {
		t.Fatalf("failed to seed job: %v", err)
	}

	p := newTestPipeline(t, s, &fakeOptimizer{})
	_, err := p.Run(context.Background(), "user-a", job.ID)
	if got := errors.KindOf(err); got != errors.KindNotFound {
		t.Errorf("error kind = %s, want %s", got, errors.KindNotFound)
	}
}

func TestRunIncompleteModelResponseWritesNothing(t *testing.T) {
	s := newTestStore(t)
	_, job := seedUser(t, s, "user-a")

	fake := &fakeOptimizer{content: `{"optimized_latex": "x", "suggestions": "s"}`}
	p := newTestPipeline(t, s, fake)

	_, err := p.Run(context.Background(), "user-a", job.ID)
	if got := errors.KindOf(err); got != errors.KindIncompleteUpstream {
		t.Errorf("error kind = %s, want %s", got, errors.KindIncompleteUpstream)
	}
	if count := countOptimizations(t, s, "user-a"); count != 0 {
		t.Errorf("optimization rows = %d, want 0 after failed run", count)
	}
}

func TestRunDefaultTemplateWhenNoSettings(t *testing.T) {
	s := newTestStore(t)
	_, job := seedUser(t, s, "user-a")

	fake := &fakeOptimizer{content: `{"optimized_latex": "x", "suggestions": "s", "ats_score": 50}`}
	p := newTestPipeline(t, s, fake)

	if _, err := p.Run(context.Background(), "user-a", job.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(fake.lastInput.Prompt, compose.DefaultTemplate) {
		t.Error("expected default template when no settings row exists")
	}
}

func TestRunUsesCustomTemplate(t *testing.T) {
	s := newTestStore(t)
	_, job := seedUser(t, s, "user-a")
	if err := s.UpsertUserSettings(context.Background(), &store.UserSettings{
		UserID:              "user-a",
		InstructionTemplate: "Focus on leadership experience.",
	}); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}

	fake := &fakeOptimizer{content: `{"optimized_latex": "x", "suggestions": "s", "ats_score": 50}`}
	p := newTestPipeline(t, s, fake)

	if _, err := p.Run(context.Background(), "user-a", job.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(fake.lastInput.Prompt, "Focus on leadership experience.") {
		t.Error("expected the user's custom template in the prompt")
	}
}

func TestRunIncludesCoverLetter(t *testing.T) {
	s := newTestStore(t)
	_, job := seedUser(t, s, "user-a")
	if err := s.CreateSourceDocument(context.Background(), &store.SourceDocument{
		UserID:  "user-a",
		Type:    store.DocumentTypeCoverLetter,
		Content: "Dear hiring manager",
	}); err != nil {
		t.Fatalf("failed to seed cover letter: %v", err)
	}

	fake := &fakeOptimizer{
		content: `{"optimized_latex": "x", "optimized_cover_letter": "Dear Acme team", "suggestions": "s", "ats_score": 50}`,
	}
	p := newTestPipeline(t, s, fake)

	result, err := p.Run(context.Background(), "user-a", job.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !fake.lastInput.ExpectCoverLetter {
		t.Error("expected cover letter flag on model input")
	}
	if !strings.Contains(fake.lastInput.Prompt, "Dear hiring manager") {
		t.Error("prompt missing cover letter content")
	}
	if result.OptimizedCoverLetter == nil || *result.OptimizedCoverLetter != "Dear Acme team" {
		t.Errorf("stored cover letter = %v, want optimized text", result.OptimizedCoverLetter)
	}
}

func TestRunNoIdempotence(t *testing.T) {
	s := newTestStore(t)
	_, job := seedUser(t, s, "user-a")

	fake := &fakeOptimizer{content: `{"optimized_latex": "x", "suggestions": "s", "ats_score": 50}`}
	p := newTestPipeline(t, s, fake)

	first, err := p.Run(context.Background(), "user-a", job.ID)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := p.Run(context.Background(), "user-a", job.ID)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if first.ID == second.ID {
		t.Error("repeated runs must create distinct records")
	}
	if count := countOptimizations(t, s, "user-a"); count != 2 {
		t.Errorf("optimization rows = %d, want 2", count)
	}
}

type recordedMetrics struct {
	created       int
	durations     int
	modelRequests int
	lastOK        bool
}

func (m *recordedMetrics) RecordOptimizationCreated(ctx context.Context, provider string, score int) {
	m.created++
}

func (m *recordedMetrics) RecordPipelineDuration(ctx context.Context, d time.Duration, success bool) {
	m.durations++
	m.lastOK = success
}

func (m *recordedMetrics) RecordModelRequest(ctx context.Context, provider string, success bool, usage *ai.TokenUsage) {
	m.modelRequests++
}

func TestRunRecordsMetrics(t *testing.T) {
	s := newTestStore(t)
	_, job := seedUser(t, s, "user-a")

	fake := &fakeOptimizer{content: `{"optimized_latex": "x", "suggestions": "s", "ats_score": 50}`}
	metrics := &recordedMetrics{}
	p := New(s, fake, testAIConfig(), nil, metrics, errors.NewLogger(slog.LevelError))

	if _, err := p.Run(context.Background(), "user-a", job.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.created != 1 {
		t.Errorf("created metric = %d, want 1", metrics.created)
	}
	if metrics.durations != 1 || !metrics.lastOK {
		t.Errorf("duration metric = %d (ok=%v), want 1 success", metrics.durations, metrics.lastOK)
	}
	if metrics.modelRequests != 1 {
		t.Errorf("model request metric = %d, want 1", metrics.modelRequests)
	}
}
