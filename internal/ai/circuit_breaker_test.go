package ai

import (
	stderrors "errors"
	"log/slog"
	"testing"
	"time"

	"atsforge/internal/config"
	"atsforge/internal/errors"
)

func breakerConfig(enabled bool) config.CircuitBreakerConfig {
	return config.CircuitBreakerConfig{
		Enabled:          enabled,
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          60 * time.Second,
		MinRequests:      3,
		FailureThreshold: 0.6,
	}
}

func TestCircuitBreakerDisabled(t *testing.T) {
	cb := NewCircuitBreaker[string]("AI-test", breakerConfig(false), errors.NewLogger(slog.LevelError))
	if cb != nil {
		t.Fatal("expected nil breaker when disabled")
	}

	// Nil breaker must execute directly and report healthy
	result, err := cb.Execute(func() (string, error) { return "ok", nil })
	if err != nil || result != "ok" {
		t.Errorf("execute = (%q, %v), want (ok, nil)", result, err)
	}
	if !cb.IsHealthy() {
		t.Error("nil breaker must report healthy")
	}
	stats := cb.GetStats()
	if enabled, _ := stats["enabled"].(bool); enabled {
		t.Error("nil breaker stats must report enabled=false")
	}
}

func TestCircuitBreakerTripsAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker[string]("AI-test", breakerConfig(true), errors.NewLogger(slog.LevelError))
	if cb == nil {
		t.Fatal("expected breaker when enabled")
	}

	failure := stderrors.New("upstream down")
	for i := 0; i < 5; i++ {
		_, _ = cb.Execute(func() (string, error) { return "", failure })
	}

	if cb.IsHealthy() {
		t.Error("breaker should be open after repeated failures")
	}
	stats := cb.GetStats()
	if state, _ := stats["state"].(string); state != "open" {
		t.Errorf("state = %q, want open", state)
	}
}

func TestCircuitBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker[int]("AI-test", breakerConfig(true), errors.NewLogger(slog.LevelError))

	for i := 0; i < 10; i++ {
		result, err := cb.Execute(func() (int, error) { return i, nil })
		if err != nil || result != i {
			t.Fatalf("execute = (%d, %v), want (%d, nil)", result, err, i)
		}
	}

	if !cb.IsHealthy() {
		t.Error("breaker should stay closed on success")
	}
}
