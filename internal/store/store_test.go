package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"

	"atsforge/internal/config"
	"atsforge/internal/errors"
)

var testDBCounter atomic.Int64

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := config.DatabaseConfig{
		Driver: "sqlite",
		Path:   fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", testDBCounter.Add(1)),
	}
	s, err := Open(cfg, errors.NewLogger(slog.LevelError), false)
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

func TestCreateSourceDocumentMarksCurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &SourceDocument{UserID: "user-1", Type: DocumentTypeResume, Content: "v1"}
	if err := s.CreateSourceDocument(ctx, first); err != nil {
		t.Fatalf("failed to create first document: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated document ID")
	}

	second := &SourceDocument{UserID: "user-1", Type: DocumentTypeResume, Content: "v2"}
	if err := s.CreateSourceDocument(ctx, second); err != nil {
		t.Fatalf("failed to create second document: %v", err)
	}

	current, err := s.GetCurrentDocument(ctx, "user-1", DocumentTypeResume)
	if err != nil {
		t.Fatalf("failed to get current document: %v", err)
	}
	if current.ID != second.ID {
		t.Errorf("current document = %s, want %s", current.ID, second.ID)
	}
	if current.Content != "v2" {
		t.Errorf("current content = %q, want %q", current.Content, "v2")
	}

	docs, err := s.ListSourceDocuments(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to list documents: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("document count = %d, want 2", len(docs))
	}
	currentCount := 0
	for _, d := range docs {
		if d.IsCurrent {
			currentCount++
		}
	}
	if currentCount != 1 {
		t.Errorf("documents marked current = %d, want 1", currentCount)
	}
}

func TestCurrentDocumentPerType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	resume := &SourceDocument{UserID: "user-1", Type: DocumentTypeResume, Content: "resume"}
	if err := s.CreateSourceDocument(ctx, resume); err != nil {
		t.Fatalf("failed to create resume: %v", err)
	}
	letter := &SourceDocument{UserID: "user-1", Type: DocumentTypeCoverLetter, Content: "letter"}
	if err := s.CreateSourceDocument(ctx, letter); err != nil {
		t.Fatalf("failed to create cover letter: %v", err)
	}

	gotResume, err := s.GetCurrentDocument(ctx, "user-1", DocumentTypeResume)
	if err != nil {
		t.Fatalf("failed to get current resume: %v", err)
	}
	if gotResume.ID != resume.ID {
		t.Errorf("current resume = %s, want %s", gotResume.ID, resume.ID)
	}

	gotLetter, err := s.GetCurrentDocument(ctx, "user-1", DocumentTypeCoverLetter)
	if err != nil {
		t.Fatalf("failed to get current cover letter: %v", err)
	}
	if gotLetter.ID != letter.ID {
		t.Errorf("current cover letter = %s, want %s", gotLetter.ID, letter.ID)
	}
}

func TestCreateSourceDocumentRejectsUnknownType(t *testing.T) {
	s := newTestStore(t)

	doc := &SourceDocument{UserID: "user-1", Type: "portfolio", Content: "x"}
	err := s.CreateSourceDocument(context.Background(), doc)
	if err == nil {
		t.Fatal("expected error for unknown document type")
	}
	if errors.KindOf(err) != errors.KindBadRequest {
		t.Errorf("error kind = %s, want %s", errors.KindOf(err), errors.KindBadRequest)
	}
}

func TestGetCurrentDocumentNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetCurrentDocument(context.Background(), "user-1", DocumentTypeResume)
	if err == nil {
		t.Fatal("expected error when no current document exists")
	}
	if errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("error kind = %s, want %s", errors.KindOf(err), errors.KindNotFound)
	}
}

func TestJobDescriptionOwnership(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := &JobDescription{UserID: "user-1", Title: "Engineer", Company: "Acme", Description: "Build things"}
	if err := s.CreateJobDescription(ctx, job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	got, err := s.GetJobDescription(ctx, "user-1", job.ID)
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if got.Title != "Engineer" {
		t.Errorf("title = %q, want %q", got.Title, "Engineer")
	}

	// Another user must not see it
	_, err = s.GetJobDescription(ctx, "user-2", job.ID)
	if errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("cross-user lookup kind = %s, want %s", errors.KindOf(err), errors.KindNotFound)
	}
}

func TestUpsertUserSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetUserSettings(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get settings: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil settings for new user")
	}

	if err := s.UpsertUserSettings(ctx, &UserSettings{
		UserID:              "user-1",
		InstructionTemplate: "first",
		RenderKey:           "key-1",
	}); err != nil {
		t.Fatalf("failed to create settings: %v", err)
	}
	if err := s.UpsertUserSettings(ctx, &UserSettings{
		UserID:              "user-1",
		InstructionTemplate: "second",
		RenderKey:           "key-2",
	}); err != nil {
		t.Fatalf("failed to update settings: %v", err)
	}

	got, err = s.GetUserSettings(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to get settings: %v", err)
	}
	if got == nil {
		t.Fatal("expected settings after upsert")
	}
	if got.InstructionTemplate != "second" {
		t.Errorf("instruction template = %q, want %q", got.InstructionTemplate, "second")
	}
	if got.RenderKey != "key-2" {
		t.Errorf("render key = %q, want %q", got.RenderKey, "key-2")
	}
}

func TestOptimizationRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	opt := &Optimization{
		UserID:           "user-1",
		JobDescriptionID: "job-1",
		SourceDocumentID: "doc-1",
		OptimizedContent: "\\documentclass{article}",
		ATSScore:         82,
		Suggestions:      "Added Kubernetes keyword to the skills section",
		Provider:         "openai",
		Model:            "gpt-4o-mini",
	}
	if err := s.CreateOptimization(ctx, opt); err != nil {
		t.Fatalf("failed to create optimization: %v", err)
	}

	got, err := s.GetOptimization(ctx, "user-1", opt.ID)
	if err != nil {
		t.Fatalf("failed to get optimization: %v", err)
	}
	if got.ATSScore != 82 {
		t.Errorf("ats score = %d, want 82", got.ATSScore)
	}
	if got.OptimizedCoverLetter != nil {
		t.Error("expected nil cover letter")
	}

	list, err := s.ListOptimizations(ctx, "user-1")
	if err != nil {
		t.Fatalf("failed to list optimizations: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("optimization count = %d, want 1", len(list))
	}

	_, err = s.GetOptimization(ctx, "user-2", opt.ID)
	if errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("cross-user lookup kind = %s, want %s", errors.KindOf(err), errors.KindNotFound)
	}
}

func TestGetStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateSourceDocument(ctx, &SourceDocument{UserID: "u", Type: DocumentTypeResume, Content: "x"}); err != nil {
		t.Fatalf("failed to create document: %v", err)
	}
	if err := s.CreateJobDescription(ctx, &JobDescription{UserID: "u", Title: "t", Description: "d"}); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	stats, err := s.GetStats(ctx)
	if err != nil {
		t.Fatalf("failed to get stats: %v", err)
	}
	if stats.Documents != 1 || stats.Jobs != 1 || stats.Optimizations != 0 {
		t.Errorf("stats = %+v, want 1 document, 1 job, 0 optimizations", stats)
	}
}
