package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	atsErrors "atsforge/internal/errors"
)

// getHealthCheckTimeout returns the configured health check timeout
func (s *Server) getHealthCheckTimeout() time.Duration {
	timeout := s.AppConfig.Observability.HealthCheck.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return timeout
}

// healthHandler provides a health check endpoint covering the database,
// the configured model and its circuit breakers
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	timeout := s.getHealthCheckTimeout()
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()

	response := map[string]any{
		"status":  "healthy",
		"service": "atsforge",
		"version": s.Version,
	}

	overallHealthy := true

	dbStatus := map[string]any{"available": true}
	if err := s.Store.Ping(ctx); err != nil {
		dbStatus["available"] = false
		dbStatus["error"] = "database unreachable"
		overallHealthy = false
	}
	response["database"] = dbStatus

	modelInfo := s.AIService.GetModelInfo(ctx)
	response["model"] = modelInfo
	if !modelInfo.Available {
		overallHealthy = false
	}

	response["circuit_breakers"] = s.AIService.Provider.GetCircuitBreakerStats()

	if !overallHealthy {
		response["status"] = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode health response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// statsHandler provides server statistics including store counts and
// rate limiting info
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"service": "atsforge",
		"version": s.Version,
		"server": map[string]any{
			"max_request_size_bytes": s.MaxRequestSize,
		},
	}

	if stats, err := s.Store.GetStats(r.Context()); err == nil {
		response["store"] = stats
	}

	if s.RateLimiter != nil {
		response["rate_limiting"] = s.RateLimiter.GetStats()
	} else {
		response["rate_limiting"] = map[string]any{
			"enabled": false,
		}
	}

	if s.RateLimit != nil {
		response["rate_limit_config"] = map[string]any{
			"enabled":          s.RateLimit.Enabled,
			"requests_per_min": s.RateLimit.RequestsPerMin,
			"burst_capacity":   s.RateLimit.BurstCapacity,
			"by_user":          s.RateLimit.ByUser,
			"by_ip":            s.RateLimit.ByIP,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode stats response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// parseJSONRequest decodes the request body into v. The body is already
// capped by MaxBytesReader; hitting that cap surfaces as a descriptive
// error rather than a generic read failure.
func parseJSONRequest(r *http.Request, v any) error {
	if r.Header.Get("Content-Type") != "application/json" {
		return fmt.Errorf("content-type must be application/json")
	}
	defer func() {
		if err := r.Body.Close(); err != nil {
			log.Printf("Failed to close request body: %v", err)
		}
	}()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
		}
		return fmt.Errorf("failed to parse JSON: %w", err)
	}
	return nil
}

// writeJSONResponse writes a JSON response with the given status code
func writeJSONResponse(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, errCode, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{
		Error:   errCode,
		Message: message,
	})
}

// writeAppError maps an application error to its HTTP representation.
// Causes are logged but never surfaced to the client.
func writeAppError(w http.ResponseWriter, logger *atsErrors.Logger, err error) {
	status := atsErrors.HTTPStatus(err)

	var appErr *atsErrors.AppError
	if errors.As(err, &appErr) {
		if status >= http.StatusInternalServerError {
			logger.LogError(err, "Request failed", "code", appErr.Code)
		}
		writeErrorResponse(w, appErr.Code, appErr.Message, status)
		return
	}

	logger.LogError(err, "Request failed with untyped error")
	writeErrorResponse(w, "INTERNAL_ERROR", "An internal error occurred", status)
}
