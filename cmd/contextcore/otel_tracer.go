package main

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/contextcore/core/pkg/taskspan"
)

var errInvalidID = errors.New("span has a malformed trace_id or span_id")

// otelTracer adapts an OTel trace.Tracer to taskspan.SpanTracer, the
// concrete half of the seam pkg/taskspan documents: it mirrors Span
// lifecycle starts/ends into an external tracer using the Span's own
// hex trace_id/span_id as the OTel SpanContext, so traces correlate
// across this process and whatever else is instrumented.
type otelTracer struct {
	tracer trace.Tracer
	logger *slog.Logger
}

// newOTelTracer wraps the global otel.Tracer for name.
func newOTelTracer(name string, logger *slog.Logger) *otelTracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &otelTracer{tracer: otel.Tracer(name), logger: logger}
}

type otelHandle struct {
	ctx  context.Context
	span trace.Span
}

func (t *otelTracer) MirrorStart(s *taskspan.Span) any {
	sc, err := spanContextFor(s)
	if err != nil {
		t.logger.Warn("otel mirror: invalid span/trace id, skipping", "task_id", s.TaskID, "error", err)
		return nil
	}
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), sc)
	ctx, span := t.tracer.Start(ctx, s.Title)
	return otelHandle{ctx: ctx, span: span}
}

func (t *otelTracer) MirrorEnd(s *taskspan.Span, handle any) {
	h, ok := handle.(otelHandle)
	if !ok || h.span == nil {
		return
	}
	h.span.End()
}

func spanContextFor(s *taskspan.Span) (trace.SpanContext, error) {
	traceIDBytes, err := hex.DecodeString(s.TraceID)
	if err != nil || len(traceIDBytes) != 16 {
		return trace.SpanContext{}, errInvalidID
	}
	spanIDBytes, err := hex.DecodeString(s.SpanID)
	if err != nil || len(spanIDBytes) != 8 {
		return trace.SpanContext{}, errInvalidID
	}
	var traceID trace.TraceID
	var spanID trace.SpanID
	copy(traceID[:], traceIDBytes)
	copy(spanID[:], spanIDBytes)
	return trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}), nil
}
