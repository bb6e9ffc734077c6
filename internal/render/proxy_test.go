package render

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"atsforge/internal/config"
	"atsforge/internal/errors"
)

func newTestProxy(t *testing.T, handler http.HandlerFunc) *Proxy {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewProxy(config.RenderConfig{
		Endpoint: server.URL,
		Timeout:  5 * time.Second,
	}, errors.NewLogger(slog.LevelError))
}

func TestRenderSuccess(t *testing.T) {
	var gotBody map[string]string
	var gotKey string
	proxy := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{"success": true, "artifactUrl": "https://cdn.example.com/out.pdf"}`)); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	})

	result, err := proxy.Render(context.Background(), "\\documentclass{article}", "secret-key")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Error("expected success flag")
	}
	if result.ArtifactURL != "https://cdn.example.com/out.pdf" {
		t.Errorf("artifact url = %q", result.ArtifactURL)
	}
	if gotBody["document_source"] != "\\documentclass{article}" {
		t.Errorf("document_source = %q", gotBody["document_source"])
	}
	if gotKey != "secret-key" {
		t.Errorf("x-api-key = %q, want secret-key", gotKey)
	}
}

func TestRenderMissingInputs(t *testing.T) {
	proxy := NewProxy(config.RenderConfig{Endpoint: "http://localhost", Timeout: time.Second},
		errors.NewLogger(slog.LevelError))

	_, err := proxy.Render(context.Background(), "", "key")
	if kind := errors.KindOf(err); kind != errors.KindBadRequest {
		t.Errorf("missing content kind = %s, want %s", kind, errors.KindBadRequest)
	}

	_, err = proxy.Render(context.Background(), "content", "")
	if kind := errors.KindOf(err); kind != errors.KindBadRequest {
		t.Errorf("missing credential kind = %s, want %s", kind, errors.KindBadRequest)
	}
}

func TestRenderHTMLErrorPage(t *testing.T) {
	proxy := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		if _, err := w.Write([]byte("<html><body><h1>502 Bad Gateway</h1></body></html>")); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	})

	_, err := proxy.Render(context.Background(), "content", "secret-key")
	if err == nil {
		t.Fatal("expected error")
	}
	if kind := errors.KindOf(err); kind != errors.KindUpstream {
		t.Errorf("error kind = %s, want %s", kind, errors.KindUpstream)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error must name the upstream status: %v", err)
	}
	if !strings.Contains(err.Error(), "Bad Gateway") {
		t.Errorf("error must carry a body excerpt: %v", err)
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Error("error must never echo the credential")
	}
}

func TestRenderJSONError(t *testing.T) {
	proxy := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		if _, err := w.Write([]byte(`{"error": "invalid API key"}`)); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	})

	_, err := proxy.Render(context.Background(), "content", "secret-key")
	if kind := errors.KindOf(err); kind != errors.KindUpstream {
		t.Errorf("error kind = %s, want %s", kind, errors.KindUpstream)
	}
	if !strings.Contains(err.Error(), "invalid API key") {
		t.Errorf("error must carry upstream error text: %v", err)
	}
}

func TestRenderJSONErrorUndecodableBody(t *testing.T) {
	proxy := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		if _, err := w.Write([]byte("upstream exploded mid-response")); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	})

	_, err := proxy.Render(context.Background(), "content", "secret-key")
	if kind := errors.KindOf(err); kind != errors.KindUpstream {
		t.Errorf("error kind = %s, want %s", kind, errors.KindUpstream)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error must name the upstream status: %v", err)
	}
	if !strings.Contains(err.Error(), "upstream exploded") {
		t.Errorf("error must carry a body excerpt: %v", err)
	}
}

func TestRenderSuccessStatusWrongShape(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing artifact url", `{"success": true}`},
		{"missing success flag", `{"artifactUrl": "https://cdn.example.com/out.pdf"}`},
		{"not json", `PDF BYTES`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proxy := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				if _, err := w.Write([]byte(tt.body)); err != nil {
					t.Fatalf("failed to write response: %v", err)
				}
			})

			_, err := proxy.Render(context.Background(), "content", "key")
			if kind := errors.KindOf(err); kind != errors.KindMalformedUpstream {
				t.Errorf("error kind = %s, want %s", kind, errors.KindMalformedUpstream)
			}
		})
	}
}

func TestRenderSuccessStatusNonJSONContentType(t *testing.T) {
	proxy := newTestProxy(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		if _, err := w.Write([]byte("%PDF-1.7")); err != nil {
			t.Fatalf("failed to write response: %v", err)
		}
	})

	_, err := proxy.Render(context.Background(), "content", "key")
	if kind := errors.KindOf(err); kind != errors.KindMalformedUpstream {
		t.Errorf("error kind = %s, want %s", kind, errors.KindMalformedUpstream)
	}
}

func TestRenderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(server.Close)

	proxy := NewProxy(config.RenderConfig{
		Endpoint: server.URL,
		Timeout:  20 * time.Millisecond,
	}, errors.NewLogger(slog.LevelError))

	_, err := proxy.Render(context.Background(), "content", "key")
	if kind := errors.KindOf(err); kind != errors.KindTimeout {
		t.Errorf("error kind = %s, want %s", kind, errors.KindTimeout)
	}
}
