package observer

import (
	"context"
	"time"

	"github.com/nevindra/docmind"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedLayout wraps a docmind.LayoutAnalyzer with OTEL instrumentation.
type ObservedLayout struct {
	inner docmind.LayoutAnalyzer
	inst  *Instruments
}

// WrapLayout returns an instrumented layout analyzer.
func WrapLayout(inner docmind.LayoutAnalyzer, inst *Instruments) *ObservedLayout {
	return &ObservedLayout{inner: inner, inst: inst}
}

func (o *ObservedLayout) Name() string { return o.inner.Name() }

func (o *ObservedLayout) Analyze(ctx context.Context, content []byte) (docmind.Layout, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "layout.analyze", trace.WithAttributes(
		AttrLayoutAnalyzer.String(o.inner.Name()),
		AttrLayoutBytes.Int(len(content)),
	))
	defer span.End()
	start := time.Now()

	lay, err := o.inner.Analyze(ctx, content)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(
			AttrLayoutPages.Int(len(lay.Pages)),
			AttrLayoutTables.Int(len(lay.Tables)),
			AttrLayoutKeyValues.Int(len(lay.KeyValuePairs)),
		)
	}

	o.inst.LayoutRequests.Add(ctx, 1, metric.WithAttributes(
		AttrLayoutAnalyzer.String(o.inner.Name()),
		attribute.String("status", status),
	))
	o.inst.LayoutDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrLayoutAnalyzer.String(o.inner.Name()),
	))
	return lay, err
}

var _ docmind.LayoutAnalyzer = (*ObservedLayout)(nil)
