package server

import (
	"net/http"
	"strings"

	atsErrors "atsforge/internal/errors"
	"atsforge/internal/observability"
	"atsforge/internal/store"

	"go.opentelemetry.io/otel/attribute"
)

// createJobHandler stores a submitted job description
func (s *Server) createJobHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("atsforge.api")
		ctx, span := tracer.Start(ctx, "api.jobs.create")
		defer span.End()

		var req JobRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		if strings.TrimSpace(req.Title) == "" {
			err := atsErrors.NewBadRequest(atsErrors.ErrCodeMissingContent, "title field is required")
			span.RecordError(err)
			writeAppError(w, s.Logger, err)
			return
		}
		if strings.TrimSpace(req.Description) == "" {
			err := atsErrors.NewBadRequest(atsErrors.ErrCodeMissingContent, "description field is required")
			span.RecordError(err)
			writeAppError(w, s.Logger, err)
			return
		}

		job := &store.JobDescription{
			UserID:      userIDFrom(r),
			Title:       req.Title,
			Company:     req.Company,
			Description: req.Description,
		}
		if err := s.Store.CreateJobDescription(ctx, job); err != nil {
			span.RecordError(err)
			writeAppError(w, s.Logger, err)
			return
		}

		span.SetAttributes(
			attribute.String("job.title", job.Title),
			attribute.Int("job.description_length", len(job.Description)),
		)

		s.Logger.Info("Job description stored",
			"job_description_id", job.ID,
			"title", job.Title,
			"user_id", job.UserID)

		writeJSONResponse(w, http.StatusCreated, job)
	}
}

// listJobsHandler returns all job descriptions for the authenticated user
func (s *Server) listJobsHandler(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.Store.ListJobDescriptions(r.Context(), userIDFrom(r))
	if err != nil {
		writeAppError(w, s.Logger, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// getJobHandler returns a single job description owned by the user
func (s *Server) getJobHandler(w http.ResponseWriter, r *http.Request) {
	job, err := s.Store.GetJobDescription(r.Context(), userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeAppError(w, s.Logger, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, job)
}
