package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"atsforge/internal/ai"
	"atsforge/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// ObservabilityConfig holds configuration for observability
type ObservabilityConfig struct {
	ServiceName    string
	ServiceVersion string
	Enabled        bool
	ConsoleOutput  bool
	PrettyPrint    bool
	SampleRate     float64
	Prometheus     PrometheusConfig
}

// Metrics holds all custom metrics for ATSForge
type Metrics struct {
	// Model operation metrics
	ModelRequestCount metric.Int64Counter
	ModelErrorCount   metric.Int64Counter
	ModelTokenUsage   metric.Int64Histogram

	// Pipeline metrics
	PipelineDuration     metric.Float64Histogram
	OptimizationsCreated metric.Int64Counter
	ATSScores            metric.Int64Histogram

	// Render metrics
	DocumentsRendered metric.Int64Counter

	// Rate limiting metrics
	RateLimitHits metric.Int64Counter
}

// ObservabilityManager manages OpenTelemetry setup
type ObservabilityManager struct {
	config           ObservabilityConfig
	fullConfig       *config.Config // Store full config for access to nested settings
	tracerProvider   *trace.TracerProvider
	meterProvider    *sdkmetric.MeterProvider
	metrics          *Metrics
	shutdownFuncs    []func(context.Context) error
	prometheusServer *http.ServeMux
}

// NewObservabilityManager creates a new observability manager
func NewObservabilityManager(obsConfig ObservabilityConfig, fullConfig *config.Config) (*ObservabilityManager, error) {
	if !obsConfig.Enabled {
		return &ObservabilityManager{config: obsConfig, fullConfig: fullConfig}, nil
	}

	om := &ObservabilityManager{
		config:        obsConfig,
		fullConfig:    fullConfig,
		shutdownFuncs: make([]func(context.Context) error, 0),
	}

	if err := om.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := om.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return om, nil
}

// initTracing wires the span exporter, sampler and propagator. Console
// output wins over OTLP; with neither, spans go to a discard exporter so
// instrumented code paths stay identical across environments.
func (om *ObservabilityManager) initTracing() error {
	exporter, err := om.spanExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := om.buildResource()
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(om.config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	om.tracerProvider = tp
	om.shutdownFuncs = append(om.shutdownFuncs, tp.Shutdown)

	return nil
}

func (om *ObservabilityManager) spanExporter() (trace.SpanExporter, error) {
	if om.config.ConsoleOutput {
		var opts []stdouttrace.Option
		if om.config.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		return stdouttrace.New(opts...)
	}
	if om.fullConfig != nil && om.fullConfig.Observability.OTLP.Enabled {
		return om.createOTLPExporter()
	}
	return &noOpSpanExporter{}, nil
}

// initMetrics builds the meter provider from whichever readers the
// configuration enables, then registers the business instruments.
func (om *ObservabilityManager) initMetrics() error {
	readers, err := om.buildMetricReaders()
	if err != nil {
		return err
	}

	res, err := om.buildResource()
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	om.meterProvider = mp
	om.shutdownFuncs = append(om.shutdownFuncs, mp.Shutdown)

	return om.initCustomMetrics()
}

// buildMetricReaders collects the enabled readers: stdout for development,
// OTLP push and Prometheus scrape for production. With none enabled a
// manual reader keeps the provider functional.
func (om *ObservabilityManager) buildMetricReaders() ([]sdkmetric.Reader, error) {
	var readers []sdkmetric.Reader

	if om.config.ConsoleOutput {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(om.metricsInterval())))
	}

	if om.fullConfig != nil && om.fullConfig.Observability.OTLP.Enabled {
		reader, err := om.createOTLPMetricsReader()
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics reader: %w", err)
		}
		readers = append(readers, reader)
	}

	if om.config.Prometheus.Enabled {
		reader, mux, err := newPrometheusReader(om.config.Prometheus)
		if err != nil {
			return nil, err
		}
		readers = append(readers, reader)
		om.prometheusServer = mux
		servePrometheus(mux, om.config.Prometheus.Port)
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}

	return readers, nil
}

func (om *ObservabilityManager) buildResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(om.config.ServiceName),
			semconv.ServiceVersion(om.config.ServiceVersion),
			attribute.String("service.instance.id", om.serviceInstanceID()),
		),
	)
}

// initCustomMetrics registers the business instruments. Registration stops
// at the first failure; record methods tolerate nil instruments so a bare
// Metrics value stays usable in tests.
func (om *ObservabilityManager) initCustomMetrics() error {
	meter := om.meterProvider.Meter(om.config.ServiceName)
	m := &Metrics{}
	var err error

	if m.ModelRequestCount, err = meter.Int64Counter(
		"atsforge_model_requests_total",
		metric.WithDescription("Total number of model requests"),
	); err != nil {
		return fmt.Errorf("failed to create model request count metric: %w", err)
	}

	if m.ModelErrorCount, err = meter.Int64Counter(
		"atsforge_model_errors_total",
		metric.WithDescription("Total number of model request errors"),
	); err != nil {
		return fmt.Errorf("failed to create model error count metric: %w", err)
	}

	if m.ModelTokenUsage, err = meter.Int64Histogram(
		"atsforge_model_token_usage_total",
		metric.WithDescription("Token usage for model requests (input, output, total)"),
		metric.WithUnit("tokens"),
	); err != nil {
		return fmt.Errorf("failed to create model token usage metric: %w", err)
	}

	if m.PipelineDuration, err = meter.Float64Histogram(
		"atsforge_pipeline_duration_seconds",
		metric.WithDescription("Time spent running the optimization pipeline"),
		metric.WithUnit("s"),
	); err != nil {
		return fmt.Errorf("failed to create pipeline duration metric: %w", err)
	}

	if m.OptimizationsCreated, err = meter.Int64Counter(
		"atsforge_optimizations_created_total",
		metric.WithDescription("Total number of optimizations created"),
	); err != nil {
		return fmt.Errorf("failed to create optimizations created metric: %w", err)
	}

	if m.ATSScores, err = meter.Int64Histogram(
		"atsforge_ats_score",
		metric.WithDescription("ATS compatibility scores returned by the model"),
	); err != nil {
		return fmt.Errorf("failed to create ATS score metric: %w", err)
	}

	if m.DocumentsRendered, err = meter.Int64Counter(
		"atsforge_documents_rendered_total",
		metric.WithDescription("Total number of documents sent to the render service"),
	); err != nil {
		return fmt.Errorf("failed to create documents rendered metric: %w", err)
	}

	if m.RateLimitHits, err = meter.Int64Counter(
		"atsforge_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	); err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	om.metrics = m
	return nil
}

// GetMetrics returns the metrics instance
func (om *ObservabilityManager) GetMetrics() *Metrics {
	if om.metrics == nil {
		return &Metrics{} // Return empty metrics if not initialized
	}
	return om.metrics
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (om *ObservabilityManager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !om.config.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	return otelhttp.NewMiddleware(
		om.config.ServiceName,
		otelhttp.WithTracerProvider(om.tracerProvider),
		otelhttp.WithMeterProvider(om.meterProvider),
	)
}

// Tracer returns a tracer for the service
func (om *ObservabilityManager) Tracer(name string) oteltrace.Tracer {
	if !om.config.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return otel.Tracer(name)
}

// Shutdown gracefully shuts down all observability components
func (om *ObservabilityManager) Shutdown(ctx context.Context) error {
	for _, shutdown := range om.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RecordPipelineDuration records how long an optimization run took
func (m *Metrics) RecordPipelineDuration(ctx context.Context, duration time.Duration, success bool) {
	if m.PipelineDuration == nil {
		return
	}
	m.PipelineDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.Bool("success", success),
	))
}

// RecordOptimizationCreated records a persisted optimization and its score
func (m *Metrics) RecordOptimizationCreated(ctx context.Context, provider string, score int) {
	attrs := metric.WithAttributes(attribute.String("provider", provider))
	if m.OptimizationsCreated != nil {
		m.OptimizationsCreated.Add(ctx, 1, attrs)
	}
	if m.ATSScores != nil {
		m.ATSScores.Record(ctx, int64(score), attrs)
	}
}

// RecordModelRequest records a model call outcome and its token usage
func (m *Metrics) RecordModelRequest(ctx context.Context, provider string, success bool, usage *ai.TokenUsage) {
	attrs := []attribute.KeyValue{
		attribute.String("provider", provider),
		attribute.Bool("success", success),
	}

	if m.ModelRequestCount != nil {
		m.ModelRequestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	if !success && m.ModelErrorCount != nil {
		m.ModelErrorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	m.recordTokenMetrics(ctx, usage, attrs)
}

// recordTokenMetrics records individual token usage metrics
func (m *Metrics) recordTokenMetrics(ctx context.Context, usage *ai.TokenUsage, attrs []attribute.KeyValue) {
	if usage == nil || m.ModelTokenUsage == nil {
		return
	}

	tokenTypes := []struct {
		tokenType string
		value     int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	}

	for _, tt := range tokenTypes {
		tokenAttrs := append(attrs, attribute.String("token_type", tt.tokenType))
		m.ModelTokenUsage.Record(ctx, tt.value, metric.WithAttributes(tokenAttrs...))
	}
}

// RecordDocumentRendered records a render proxy call outcome
func (m *Metrics) RecordDocumentRendered(ctx context.Context, success bool) {
	if m.DocumentsRendered == nil {
		return
	}
	m.DocumentsRendered.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("success", success),
	))
}

// RecordRateLimitHit records a rejected request
func (m *Metrics) RecordRateLimitHit(ctx context.Context, limiterType string) {
	if m.RateLimitHits == nil {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("limiter", limiterType),
	))
}

// No-op exporter for when no trace backend is configured
type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

// createOTLPExporter builds the OTLP HTTP trace exporter from the OTLP
// config section.
func (om *ObservabilityManager) createOTLPExporter() (trace.SpanExporter, error) {
	if om.fullConfig == nil {
		return nil, fmt.Errorf("config not available for OTLP configuration")
	}
	otlp := om.fullConfig.Observability.OTLP

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(otlp.Endpoint)}
	if otlp.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlp.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlp.Headers))
	}

	return otlptracehttp.New(context.Background(), opts...)
}

// createOTLPMetricsReader builds a periodic reader pushing over OTLP HTTP.
func (om *ObservabilityManager) createOTLPMetricsReader() (sdkmetric.Reader, error) {
	if om.fullConfig == nil {
		return nil, fmt.Errorf("config not available for OTLP configuration")
	}
	otlp := om.fullConfig.Observability.OTLP

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpointURL(otlp.Endpoint)}
	if otlp.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlp.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlp.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	return sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(om.metricsInterval())), nil
}

func (om *ObservabilityManager) serviceInstanceID() string {
	if om.fullConfig != nil && om.fullConfig.Observability.ServiceInstance != "" {
		return om.fullConfig.Observability.ServiceInstance
	}
	return "atsforge-1"
}

func (om *ObservabilityManager) metricsInterval() time.Duration {
	if om.fullConfig != nil && om.fullConfig.Observability.Metrics.CollectionInterval > 0 {
		return om.fullConfig.Observability.Metrics.CollectionInterval
	}
	return 15 * time.Second
}
