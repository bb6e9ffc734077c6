package compose

import (
	"strings"
	"testing"
)

func TestPromptSectionOrder(t *testing.T) {
	prompt := Prompt(Request{
		Template: "Optimize carefully.",
		Resume:   "\\documentclass{article} 100% effort & passion",
		Job: Job{
			Title:       "Backend Engineer",
			Company:     "Acme",
			Description: "Requires Go and Kubernetes",
		},
	})

	sections := []string{
		"Optimize carefully.",
		"RESUME:",
		"\\documentclass{article} 100% effort & passion",
		"JOB DESCRIPTION:",
		"Title: Backend Engineer",
		"Company: Acme",
		"Description: Requires Go and Kubernetes",
		"OUTPUT FORMAT:",
		"optimized_latex",
		"suggestions",
		"ats_score",
	}
	pos := 0
	for _, section := range sections {
		idx := strings.Index(prompt[pos:], section)
		if idx < 0 {
			t.Fatalf("prompt missing %q after position %d:\n%s", section, pos, prompt)
		}
		pos += idx
	}
}

func TestPromptDefaultTemplate(t *testing.T) {
	prompt := Prompt(Request{
		Resume: "content",
		Job:    Job{Title: "t", Description: "d"},
	})

	if !strings.HasPrefix(prompt, DefaultTemplate) {
		t.Error("expected prompt to start with the default template")
	}
	if !strings.Contains(prompt, "don't fabricate experience") {
		t.Error("default template missing truthfulness instruction")
	}
	if !strings.Contains(prompt, "score (0-100)") {
		t.Error("default template missing score range instruction")
	}
}

func TestPromptCompanyFallback(t *testing.T) {
	prompt := Prompt(Request{
		Resume: "content",
		Job:    Job{Title: "t", Description: "d"},
	})
	if !strings.Contains(prompt, "Company: Not specified") {
		t.Error("expected company fallback when field is empty")
	}
}

func TestPromptCoverLetterSection(t *testing.T) {
	withLetter := Prompt(Request{
		Resume:      "resume",
		CoverLetter: "dear hiring manager",
		Job:         Job{Title: "t", Description: "d"},
	})
	if !strings.Contains(withLetter, "COVER LETTER:\ndear hiring manager") {
		t.Error("expected cover letter section")
	}
	if !strings.Contains(withLetter, "optimized_cover_letter") {
		t.Error("expected optimized_cover_letter output field")
	}

	withoutLetter := Prompt(Request{
		Resume: "resume",
		Job:    Job{Title: "t", Description: "d"},
	})
	if strings.Contains(withoutLetter, "COVER LETTER") {
		t.Error("unexpected cover letter section")
	}
	if strings.Contains(withoutLetter, "optimized_cover_letter") {
		t.Error("unexpected optimized_cover_letter output field")
	}
}

func TestPromptDoesNotEscapeInput(t *testing.T) {
	raw := `100% & #1 _test_ {braces} ~ ^`
	prompt := Prompt(Request{
		Resume: raw,
		Job:    Job{Title: "t", Description: "d"},
	})
	if !strings.Contains(prompt, raw) {
		t.Error("source text must pass through unmodified")
	}
}
