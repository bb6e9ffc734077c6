package server

import (
	"net/http"
	"strings"

	atsErrors "atsforge/internal/errors"
	"atsforge/internal/observability"
	"atsforge/internal/pipeline"
	"atsforge/internal/store"

	"go.opentelemetry.io/otel/attribute"
)

// createOptimizeHandler runs the optimization pipeline for a stored job
// description against the user's current documents
func (s *Server) createOptimizeHandler(om *observability.ObservabilityManager, pl *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("atsforge.api")
		ctx, span := tracer.Start(ctx, "api.optimize")
		defer span.End()

		var req OptimizeRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		span.SetAttributes(attribute.String("job_description_id", req.JobDescriptionID))

		optimization, err := pl.Run(ctx, userIDFrom(r), req.JobDescriptionID)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "pipeline"))
			writeAppError(w, s.Logger, err)
			return
		}

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.String("optimization_id", optimization.ID),
			attribute.Int("ats.score", optimization.ATSScore),
		)

		writeJSONResponse(w, http.StatusCreated, optimization)
	}
}

// listOptimizationsHandler returns all optimizations for the authenticated user
func (s *Server) listOptimizationsHandler(w http.ResponseWriter, r *http.Request) {
	optimizations, err := s.Store.ListOptimizations(r.Context(), userIDFrom(r))
	if err != nil {
		writeAppError(w, s.Logger, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"optimizations": optimizations})
}

// getOptimizationHandler returns a single optimization owned by the user
func (s *Server) getOptimizationHandler(w http.ResponseWriter, r *http.Request) {
	optimization, err := s.Store.GetOptimization(r.Context(), userIDFrom(r), r.PathValue("id"))
	if err != nil {
		writeAppError(w, s.Logger, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, optimization)
}

// createRenderHandler forwards an optimization's document to the render
// service. The render key resolves request over stored user settings over
// the server-wide default.
func (s *Server) createRenderHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("atsforge.api")
		ctx, span := tracer.Start(ctx, "api.render")
		defer span.End()

		var req RenderRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		userID := userIDFrom(r)

		optimization, err := s.Store.GetOptimization(ctx, userID, strings.TrimSpace(req.OptimizationID))
		if err != nil {
			span.RecordError(err)
			writeAppError(w, s.Logger, err)
			return
		}

		content, err := renderContent(optimization, req.Document)
		if err != nil {
			span.RecordError(err)
			writeAppError(w, s.Logger, err)
			return
		}

		credential := req.RenderKey
		if credential == "" {
			settings, err := s.Store.GetUserSettings(ctx, userID)
			if err != nil {
				span.RecordError(err)
				writeAppError(w, s.Logger, err)
				return
			}
			if settings != nil {
				credential = settings.RenderKey
			}
		}
		if credential == "" {
			credential = s.AppConfig.Render.APIKey
		}

		metrics := om.GetMetrics()
		result, err := s.RenderProxy.Render(ctx, content, credential)
		metrics.RecordDocumentRendered(ctx, err == nil)
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "render"))
			writeAppError(w, s.Logger, err)
			return
		}

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.String("optimization_id", optimization.ID),
		)

		s.Logger.Info("Document rendered",
			"optimization_id", optimization.ID,
			"user_id", userID)

		writeJSONResponse(w, http.StatusOK, result)
	}
}

// renderContent selects the document source to render from an optimization
func renderContent(optimization *store.Optimization, document string) (string, error) {
	switch document {
	case "", store.DocumentTypeResume:
		return optimization.OptimizedContent, nil
	case store.DocumentTypeCoverLetter:
		if optimization.OptimizedCoverLetter == nil {
			return "", atsErrors.NewBadRequest(
				atsErrors.ErrCodeMissingContent,
				"optimization has no optimized cover letter",
			)
		}
		return *optimization.OptimizedCoverLetter, nil
	default:
		return "", atsErrors.NewBadRequest(
			atsErrors.ErrCodeInvalidDocumentType,
			"document must be resume or cover_letter",
		)
	}
}
