package observability

import (
	"atsforge/internal/config"
)

// GetObservabilityConfig maps the loaded application configuration onto the
// manager's own config type. A nil config yields development defaults.
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	if cfg == nil {
		return ObservabilityConfig{
			ServiceName:    "atsforge",
			ServiceVersion: version,
			Enabled:        true,
			ConsoleOutput:  true,
			PrettyPrint:    true,
			SampleRate:     1.0,
			Prometheus:     GetPrometheusConfig(nil),
		}
	}

	obs := cfg.Observability

	out := ObservabilityConfig{
		ServiceName:    obs.ServiceName,
		ServiceVersion: obs.ServiceVersion,
		Enabled:        obs.Enabled,
		ConsoleOutput:  obs.ConsoleOutput,
		PrettyPrint:    obs.Console.PrettyPrint,
		SampleRate:     obs.SampleRate,
		Prometheus:     GetPrometheusConfig(cfg),
	}
	if out.ServiceVersion == "" {
		out.ServiceVersion = version
	}
	return out
}
