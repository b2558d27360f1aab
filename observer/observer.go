// Package observer provides OTEL-based observability for docmind.
//
// It wraps Provider, EmbeddingProvider and LayoutAnalyzer with instrumented
// versions that emit traces, metrics, and logs via OpenTelemetry, and opens
// one parent span per stream run. Users export to any OTEL-compatible
// backend by setting standard OTEL env vars.
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/nevindra/docmind/observer"

// Instruments holds all OTEL instruments used by the observer wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger otellog.Logger

	// Counters
	TokenUsage     metric.Int64Counter
	CostTotal      metric.Float64Counter
	LLMRequests    metric.Int64Counter
	EmbedRequests  metric.Int64Counter
	LayoutRequests metric.Int64Counter

	// Histograms
	LLMDuration    metric.Float64Histogram
	EmbedDuration  metric.Float64Histogram
	LayoutDuration metric.Float64Histogram

	// Stream-level
	StreamRuns     metric.Int64Counter
	StreamDuration metric.Float64Histogram

	Cost *CostCalculator
}

// Init sets up OTEL trace, metric, and log providers with OTLP HTTP exporters.
// Configuration comes from standard OTEL env vars (OTEL_EXPORTER_OTLP_ENDPOINT, etc.).
// Returns a shutdown function that must be called on application exit.
func Init(ctx context.Context, serviceName string, pricing map[string]ModelPricing) (*Instruments, func(context.Context) error, error) {
	if serviceName == "" {
		serviceName = "docmind"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	// Trace provider
	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	// Metric provider
	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	// Log provider
	logExp, err := otlploghttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	inst, err := newInstruments(pricing)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

func newInstruments(pricing map[string]ModelPricing) (*Instruments, error) {
	meter := otel.Meter(scopeName)
	inst := &Instruments{
		Tracer: otel.Tracer(scopeName),
		Meter:  meter,
		Logger: global.GetLoggerProvider().Logger(scopeName),
		Cost:   NewCostCalculator(pricing),
	}

	counters := []struct {
		dst              *metric.Int64Counter
		name, desc, unit string
	}{
		{&inst.TokenUsage, "llm.token.usage", "Total tokens consumed", "{token}"},
		{&inst.LLMRequests, "llm.requests", "LLM request count", "{request}"},
		{&inst.EmbedRequests, "embedding.requests", "Embedding request count", "{request}"},
		{&inst.LayoutRequests, "layout.requests", "Layout analysis request count", "{request}"},
		{&inst.StreamRuns, "stream.runs", "Stream run count", "{run}"},
	}
	for _, c := range counters {
		v, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
		*c.dst = v
	}

	histograms := []struct {
		dst        *metric.Float64Histogram
		name, desc string
	}{
		{&inst.LLMDuration, "llm.duration", "LLM call duration"},
		{&inst.EmbedDuration, "embedding.duration", "Embedding call duration"},
		{&inst.LayoutDuration, "layout.duration", "Layout analysis duration"},
		{&inst.StreamDuration, "stream.duration", "Stream run duration"},
	}
	for _, h := range histograms {
		v, err := meter.Float64Histogram(h.name, metric.WithDescription(h.desc), metric.WithUnit("ms"))
		if err != nil {
			return nil, err
		}
		*h.dst = v
	}

	costTotal, err := meter.Float64Counter("llm.cost.total",
		metric.WithDescription("Cumulative LLM cost in USD"),
		metric.WithUnit("USD"))
	if err != nil {
		return nil, err
	}
	inst.CostTotal = costTotal
	return inst, nil
}

// NewNoop returns Instruments bound to the current global OTEL providers
// without installing exporters. With no providers configured every
// instrument is a no-op.
func NewNoop() (*Instruments, error) {
	return newInstruments(nil)
}
