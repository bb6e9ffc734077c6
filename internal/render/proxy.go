// Package render forwards finished documents to the external rendering
// service and normalizes its response and error shapes.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"

	"atsforge/internal/config"
	"atsforge/internal/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const bodyExcerptLimit = 200

// Proxy relays rendering requests. Stateless; safe for concurrent use.
type Proxy struct {
	httpClient *http.Client
	endpoint   string
	logger     *errors.Logger
}

// Result is the normalized rendering service response
type Result struct {
	Success     bool   `json:"success"`
	ArtifactURL string `json:"artifactUrl"`
}

// NewProxy creates a render proxy for the configured endpoint
func NewProxy(cfg config.RenderConfig, logger *errors.Logger) *Proxy {
	return &Proxy{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		endpoint: cfg.Endpoint,
		logger:   logger,
	}
}

// Render forwards content and the caller's credential to the rendering
// service in a single request. The credential is sent in a header and never
// appears in logs or error messages.
func (p *Proxy) Render(ctx context.Context, content, credential string) (*Result, error) {
	tracer := otel.Tracer("atsforge.render")
	ctx, span := tracer.Start(ctx, "render.proxy")
	defer span.End()

	span.SetAttributes(attribute.Int("input.content_length", len(content)))

	if content == "" {
		return nil, errors.NewBadRequest(errors.ErrCodeMissingContent,
			"document content is required")
	}
	if credential == "" {
		return nil, errors.NewBadRequest(errors.ErrCodeMissingCredential,
			"rendering credential is required")
	}

	payload, err := json.Marshal(map[string]string{"document_source": content})
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeRenderFailed,
			"failed to encode render request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.NewInternalError(errors.ErrCodeRenderFailed,
			"failed to build render request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", credential)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		var netErr net.Error
		if stderrors.Is(err, context.DeadlineExceeded) ||
			(stderrors.As(err, &netErr) && netErr.Timeout()) {
			return nil, errors.NewTimeout(errors.ErrCodeRenderTimeout,
				"rendering service did not respond within the configured timeout", err)
		}
		return nil, errors.NewUpstreamError(errors.ErrCodeRenderFailed,
			"failed to reach rendering service", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Warn("Failed to close render response body", "error", closeErr.Error())
		}
	}()

	span.SetAttributes(attribute.Int("upstream.status", resp.StatusCode))

	// Inspect the declared content type before parsing. On failure the
	// upstream may answer with an HTML error page instead of JSON; that
	// must surface as a descriptive error, not a parse crash.
	contentType := responseMediaType(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, p.upstreamError(resp.StatusCode, contentType, resp.Body)
	}

	if contentType != "application/json" {
		excerpt := readExcerpt(resp.Body)
		return nil, errors.NewMalformedUpstream(errors.ErrCodeRenderBadResponse,
			fmt.Sprintf("rendering service returned unexpected content type %q: %s", contentType, excerpt), nil)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		span.RecordError(err)
		return nil, errors.NewMalformedUpstream(errors.ErrCodeRenderBadResponse,
			"failed to parse rendering service response", err)
	}
	if !result.Success || result.ArtifactURL == "" {
		return nil, errors.NewMalformedUpstream(errors.ErrCodeRenderBadResponse,
			"rendering service response missing success flag or artifact URL", nil)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return &result, nil
}

// upstreamError builds the error for a non-success upstream status. JSON
// error bodies contribute their error text; anything else contributes a
// truncated excerpt.
func (p *Proxy) upstreamError(status int, contentType string, body io.Reader) error {
	if contentType == "application/json" {
		raw, _ := io.ReadAll(io.LimitReader(body, 4096))
		var upstream struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &upstream); err == nil && upstream.Error != "" {
			return errors.NewUpstreamError(errors.ErrCodeRenderFailed,
				fmt.Sprintf("rendering service returned status %d: %s", status, upstream.Error), nil)
		}
		// Declared JSON but no usable error field; fall back to an excerpt
		excerpt := readExcerpt(bytes.NewReader(raw))
		return errors.NewUpstreamError(errors.ErrCodeRenderFailed,
			fmt.Sprintf("rendering service returned status %d with %s body: %s", status, contentType, excerpt), nil)
	}

	excerpt := readExcerpt(body)
	return errors.NewUpstreamError(errors.ErrCodeRenderFailed,
		fmt.Sprintf("rendering service returned status %d with %s body: %s", status, contentType, excerpt), nil)
}

func responseMediaType(resp *http.Response) string {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return strings.TrimSpace(strings.ToLower(resp.Header.Get("Content-Type")))
	}
	return mediaType
}

func readExcerpt(body io.Reader) string {
	excerpt, _ := io.ReadAll(io.LimitReader(body, bodyExcerptLimit))
	return strings.TrimSpace(string(excerpt))
}
