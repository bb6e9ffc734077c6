// Package compose builds language-model request payloads from an
// instruction template, the user's source documents and a job description.
// It is a pure string assembly layer with no side effects.
package compose

import (
	"fmt"
	"strings"
)

// DefaultTemplate is the process-wide instruction template used when a user
// has not customized one in their settings.
const DefaultTemplate = `You are an expert ATS (Applicant Tracking System) resume optimizer.

Given the following LaTeX resume and job description, optimize the resume to maximize ATS compatibility while maintaining authenticity.

INSTRUCTIONS:
1. Identify key keywords and phrases from the job description
2. Modify the LaTeX resume to incorporate these keywords naturally
3. Adjust bullet points to align with job requirements
4. Maintain LaTeX formatting integrity - CRITICAL: Always escape special LaTeX characters:
   - Use \& instead of & (ampersand)
   - Use \% instead of % (percent)
   - Use \$ instead of $ (dollar sign)
   - Use \# instead of # (hash)
   - Use \_ instead of _ (underscore)
   - Use \{ and \} instead of { and } (braces)
   - Use \textasciitilde for ~ (tilde)
   - Use \textasciicircum for ^ (caret)
5. Keep the changes truthful - don't fabricate experience
6. Provide an ATS compatibility score (0-100)
7. Include specific suggestions for improvement`

// SystemMessage reinforces JSON-only output on every model call
const SystemMessage = `You are an expert ATS resume optimizer. Always respond with valid JSON.`

// Job carries the job-description fields the prompt needs
type Job struct {
	Title       string
	Company     string
	Description string
}

// Request bundles everything the compositor folds into one payload
type Request struct {
	Template    string // instruction template; empty means DefaultTemplate
	Resume      string
	CoverLetter string // optional; adds a section and an extra output field
	Job         Job
}

// Prompt assembles the model payload: instructions first, then the source
// documents, then the job description, then the expected output shape. The
// source text passes through unescaped; escaping is the model's job on
// output, never ours on input.
func Prompt(req Request) string {
	template := req.Template
	if template == "" {
		template = DefaultTemplate
	}
	company := req.Job.Company
	if company == "" {
		company = "Not specified"
	}

	var b strings.Builder
	b.WriteString(template)
	b.WriteString("\n\nRESUME:\n")
	b.WriteString(req.Resume)
	if req.CoverLetter != "" {
		b.WriteString("\n\nCOVER LETTER:\n")
		b.WriteString(req.CoverLetter)
	}
	fmt.Fprintf(&b, "\n\nJOB DESCRIPTION:\nTitle: %s\nCompany: %s\nDescription: %s",
		req.Job.Title, company, req.Job.Description)
	b.WriteString("\n\nOUTPUT FORMAT:\nReturn a JSON object with these fields:\n")
	b.WriteString("- optimized_latex: The complete optimized LaTeX resume\n")
	if req.CoverLetter != "" {
		b.WriteString("- optimized_cover_letter: The complete optimized cover letter\n")
	}
	b.WriteString("- suggestions: A detailed explanation of changes made\n")
	b.WriteString("- ats_score: A number between 0-100 representing ATS compatibility")
	return b.String()
}
