package observer

import (
	"context"
	"time"

	"github.com/nevindra/docmind"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StreamSpan opens the parent span of one stream run. Capability calls made
// with the returned context become its children. The returned function
// closes the span and records the run's outcome; call it exactly once.
func StreamSpan(ctx context.Context, inst *Instruments, tag docmind.StreamTag, filename string) (context.Context, func(docmind.Result)) {
	ctx, span := inst.Tracer.Start(ctx, "stream.run", trace.WithAttributes(
		AttrStream.String(string(tag)),
		AttrFilename.String(filename),
	))
	start := time.Now()
	span.AddEvent("stream.started")

	return ctx, func(res docmind.Result) {
		defer span.End()
		durationMs := float64(time.Since(start).Milliseconds())
		status := string(res.Status)

		switch {
		case ctx.Err() != nil && res.Status == docmind.StatusError:
			status = "cancelled"
			span.AddEvent("stream.cancelled")
			span.SetStatus(codes.Error, "cancelled")
		case res.Status == docmind.StatusError:
			span.AddEvent("stream.failed", trace.WithAttributes(attribute.String("message", res.Message)))
			span.SetStatus(codes.Error, res.Message)
		default:
			span.AddEvent("stream.completed")
		}
		span.SetAttributes(AttrStreamStatus.String(status))

		inst.StreamRuns.Add(ctx, 1, metric.WithAttributes(
			AttrStream.String(string(tag)),
			attribute.String("status", status),
		))
		inst.StreamDuration.Record(ctx, durationMs, metric.WithAttributes(
			AttrStream.String(string(tag)),
		))

		var rec otellog.Record
		rec.SetSeverity(otellog.SeverityInfo)
		rec.SetBody(otellog.StringValue("stream run completed"))
		rec.AddAttributes(
			otellog.String("stream", string(tag)),
			otellog.String("stream.status", status),
			otellog.String("document.filename", filename),
			otellog.Float64("duration_ms", durationMs),
		)
		inst.Logger.Emit(ctx, rec)
	}
}
