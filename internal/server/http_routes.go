package server

import (
	"context"
	"net/http"
	"strings"

	atsErrors "atsforge/internal/errors"
	"atsforge/internal/observability"
	"atsforge/internal/pipeline"
)

type contextKey string

const userIDKey contextKey = "user_id"

// userIDFrom returns the authenticated user ID stored by authMiddleware
func userIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(userIDKey).(string); ok {
		return id
	}
	return ""
}

// setupRoutes configures all HTTP routes and middleware
func (s *Server) setupRoutes(om *observability.ObservabilityManager, pl *pipeline.Pipeline) *http.ServeMux {
	mux := http.NewServeMux()

	rateLimitHandler := s.rateLimitMiddleware(om.GetMetrics())
	requestLimitHandler := s.requestSizeLimitMiddleware()

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return s.authMiddleware(rateLimitHandler(requestLimitHandler(next)))
	}

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /stats", s.statsHandler)

	mux.HandleFunc("POST /documents", authed(s.createDocumentHandler(om)))
	mux.HandleFunc("GET /documents", authed(s.listDocumentsHandler))
	mux.HandleFunc("GET /documents/current", authed(s.currentDocumentHandler))

	mux.HandleFunc("POST /jobs", authed(s.createJobHandler(om)))
	mux.HandleFunc("GET /jobs", authed(s.listJobsHandler))
	mux.HandleFunc("GET /jobs/{id}", authed(s.getJobHandler))

	mux.HandleFunc("POST /optimize", authed(s.createOptimizeHandler(om, pl)))
	mux.HandleFunc("GET /optimizations", authed(s.listOptimizationsHandler))
	mux.HandleFunc("GET /optimizations/{id}", authed(s.getOptimizationHandler))

	mux.HandleFunc("POST /render", authed(s.createRenderHandler(om)))

	mux.HandleFunc("GET /settings", authed(s.getSettingsHandler))
	mux.HandleFunc("PUT /settings", authed(s.updateSettingsHandler))

	return mux
}

// authMiddleware verifies the bearer token and stores the user identity
// in the request context
func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok {
			s.Logger.Info("Authentication failed: missing bearer token",
				"endpoint", r.URL.Path,
				"client_ip", clientIP(r))
			writeAppError(w, s.Logger, atsErrors.NewUnauthorized(
				atsErrors.ErrCodeMissingIdentity,
				"Authorization Bearer token required",
			))
			return
		}

		userID, err := s.Verifier.VerifyToken(token)
		if err != nil {
			s.Logger.Info("Authentication failed: invalid token",
				"endpoint", r.URL.Path,
				"client_ip", clientIP(r))
			writeAppError(w, s.Logger, err)
			return
		}

		s.Logger.Debug("Authentication successful",
			"endpoint", r.URL.Path,
			"user_id", userID)

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next(w, r.WithContext(ctx))
	}
}

// requestSizeLimitMiddleware limits the size of incoming requests
func (s *Server) requestSizeLimitMiddleware() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.MaxRequestSize > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, s.MaxRequestSize)
			}

			next(w, r)
		}
	}
}
