package errors

import (
	"fmt"
	"net/http"
)

// Kind categorizes errors by the failure they represent
type Kind string

const (
	KindBadRequest         Kind = "bad_request"
	KindUnauthorized       Kind = "unauthorized"
	KindNotFound           Kind = "not_found"
	KindServiceUnavailable Kind = "service_unavailable"
	KindUpstream           Kind = "upstream_error"
	KindMalformedUpstream  Kind = "malformed_upstream_response"
	KindIncompleteUpstream Kind = "incomplete_upstream_response"
	KindTimeout            Kind = "timeout"
	KindInternal           Kind = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Kind    Kind           `json:"kind"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"cause,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// newAppError is an unexported helper to create AppError instances
func newAppError(kind Kind, code, message string, cause error) *AppError {
	return &AppError{
		Kind:    kind,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Error constructors for the different kinds
func NewBadRequest(code, message string) *AppError {
	return newAppError(KindBadRequest, code, message, nil)
}

func NewUnauthorized(code, message string) *AppError {
	return newAppError(KindUnauthorized, code, message, nil)
}

func NewNotFound(code, message string) *AppError {
	return newAppError(KindNotFound, code, message, nil)
}

func NewServiceUnavailable(code, message string) *AppError {
	return newAppError(KindServiceUnavailable, code, message, nil)
}

func NewUpstreamError(code, message string, cause error) *AppError {
	return newAppError(KindUpstream, code, message, cause)
}

func NewMalformedUpstream(code, message string, cause error) *AppError {
	return newAppError(KindMalformedUpstream, code, message, cause)
}

func NewIncompleteUpstream(code, message string) *AppError {
	return newAppError(KindIncompleteUpstream, code, message, nil)
}

func NewTimeout(code, message string, cause error) *AppError {
	return newAppError(KindTimeout, code, message, cause)
}

func NewInternalError(code, message string, cause error) *AppError {
	return newAppError(KindInternal, code, message, cause)
}

// WithContext adds context to an error
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// HTTPStatus maps an error kind to the HTTP status the API surfaces
func HTTPStatus(err error) int {
	appErr, ok := err.(*AppError)
	if !ok {
		return http.StatusInternalServerError
	}

	switch appErr.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindUpstream, KindMalformedUpstream, KindIncompleteUpstream:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the kind of an error, or KindInternal for plain errors
func KindOf(err error) Kind {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Kind
	}
	return KindInternal
}

// Common error codes
const (
	ErrCodeMissingJobID         = "MISSING_JOB_DESCRIPTION_ID"
	ErrCodeMissingContent       = "MISSING_CONTENT"
	ErrCodeMissingCredential    = "MISSING_CREDENTIAL"
	ErrCodeMissingIdentity      = "MISSING_IDENTITY"
	ErrCodeInvalidToken         = "INVALID_TOKEN"
	ErrCodeJobNotFound          = "JOB_DESCRIPTION_NOT_FOUND"
	ErrCodeNoCurrentDocument    = "NO_CURRENT_DOCUMENT"
	ErrCodeInvalidDocumentType  = "INVALID_DOCUMENT_TYPE"
	ErrCodeOptimizationNotFound = "OPTIMIZATION_NOT_FOUND"
	ErrCodeModelKeyMissing      = "MODEL_API_KEY_NOT_CONFIGURED"
	ErrCodeModelFailed          = "MODEL_SERVICE_FAILED"
	ErrCodeModelTimeout         = "MODEL_TIMEOUT"
	ErrCodeModelBadJSON         = "MODEL_RESPONSE_NOT_JSON"
	ErrCodeModelMissingFields   = "MODEL_RESPONSE_MISSING_FIELDS"
	ErrCodeRenderFailed         = "RENDER_SERVICE_FAILED"
	ErrCodeRenderTimeout        = "RENDER_TIMEOUT"
	ErrCodeRenderBadResponse    = "RENDER_RESPONSE_INVALID"
	ErrCodeStoreFailed          = "STORE_OPERATION_FAILED"
	ErrCodeInvalidConfig        = "INVALID_CONFIG"
)
