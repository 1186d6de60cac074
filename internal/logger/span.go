package logger

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sra/api/workflow"

// Span attribute keys. They mirror the log field names so a trace and its
// log lines can be joined on the same ids.
const (
	attrRequestID    = attribute.Key("sra.request_id")
	attrUserID       = attribute.Key("sra.user_id")
	attrAssessmentID = attribute.Key("sra.assessment_id")
	attrThreadID     = attribute.Key("sra.thread_id")
	attrComponent    = attribute.Key("sra.component")
)

// SpanContext is one workflow operation's span.
//
//	ctx, span := startOp(ctx, "workflow.submit_answers", caller, id)
//	defer span.End()
type SpanContext struct {
	ctx  context.Context
	span trace.Span
}

// StartSpan opens name under ctx's span, tagged with ctx's LogFields.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) *SpanContext {
	if attrs := spanAttributes(GetLogFields(ctx)); len(attrs) > 0 {
		opts = append(opts, trace.WithAttributes(attrs...))
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, opts...)
	return &SpanContext{ctx: ctx, span: span}
}

// Annotate tags the span active in ctx with ids learned mid-operation,
// such as a thread id once the thread exists.
func Annotate(ctx context.Context, fields LogFields) {
	if attrs := spanAttributes(fields); len(attrs) > 0 {
		trace.SpanFromContext(ctx).SetAttributes(attrs...)
	}
}

func spanAttributes(f LogFields) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if f.RequestID != "" {
		attrs = append(attrs, attrRequestID.String(f.RequestID))
	}
	if f.UserID != nil {
		attrs = append(attrs, attrUserID.Int64(*f.UserID))
	}
	if f.AssessmentID != nil {
		attrs = append(attrs, attrAssessmentID.Int64(*f.AssessmentID))
	}
	if f.ThreadID != nil {
		attrs = append(attrs, attrThreadID.Int64(*f.ThreadID))
	}
	if f.Component != "" {
		attrs = append(attrs, attrComponent.String(f.Component))
	}
	return attrs
}

func (sc *SpanContext) Context() context.Context {
	return sc.ctx
}

func (sc *SpanContext) End() {
	sc.span.End()
}

// RecordError fails the span. Nil is ignored, so callers can pass the
// operation's final error unconditionally.
func (sc *SpanContext) RecordError(err error) {
	if err == nil {
		return
	}
	sc.span.RecordError(err)
	sc.span.SetStatus(codes.Error, err.Error())
}
