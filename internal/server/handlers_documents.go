package server

import (
	"net/http"
	"strings"

	atsErrors "atsforge/internal/errors"
	"atsforge/internal/observability"
	"atsforge/internal/store"

	"go.opentelemetry.io/otel/attribute"
)

// createDocumentHandler stores a new source document and makes it current
func (s *Server) createDocumentHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("atsforge.api")
		ctx, span := tracer.Start(ctx, "api.documents.create")
		defer span.End()

		var req DocumentRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		if strings.TrimSpace(req.Content) == "" {
			err := atsErrors.NewBadRequest(atsErrors.ErrCodeMissingContent, "content field is required")
			span.RecordError(err)
			writeAppError(w, s.Logger, err)
			return
		}

		doc := &store.SourceDocument{
			UserID:  userIDFrom(r),
			Type:    req.Type,
			Content: req.Content,
		}
		if err := s.Store.CreateSourceDocument(ctx, doc); err != nil {
			span.RecordError(err)
			writeAppError(w, s.Logger, err)
			return
		}

		span.SetAttributes(
			attribute.String("document.type", doc.Type),
			attribute.Int("document.content_length", len(doc.Content)),
		)

		s.Logger.Info("Source document stored",
			"document_id", doc.ID,
			"type", doc.Type,
			"user_id", doc.UserID)

		writeJSONResponse(w, http.StatusCreated, doc)
	}
}

// listDocumentsHandler returns all source documents for the authenticated user
func (s *Server) listDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	docs, err := s.Store.ListSourceDocuments(r.Context(), userIDFrom(r))
	if err != nil {
		writeAppError(w, s.Logger, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"documents": docs})
}

// currentDocumentHandler returns the current document of the requested type
func (s *Server) currentDocumentHandler(w http.ResponseWriter, r *http.Request) {
	docType := r.URL.Query().Get("type")
	if docType == "" {
		docType = store.DocumentTypeResume
	}

	doc, err := s.Store.GetCurrentDocument(r.Context(), userIDFrom(r), docType)
	if err != nil {
		writeAppError(w, s.Logger, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, doc)
}
