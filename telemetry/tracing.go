// Package telemetry provides OpenTelemetry tracing for connection endpoints.
//
// Every outbound call gets a client span and every inbound request a server
// span. Params and results are attached only in debug mode because they carry
// business payloads.
package telemetry

import (
	"context"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracing with RPC-specific helpers.
type Tracer struct {
	tracer trace.Tracer
	debug  bool // When true, include payloads in span attributes
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return NewNoopTracer()
	}
	return globalTracer
}

// NewTracer creates a new tracer with the given name from the global provider.
func NewTracer(name string, debug bool) *Tracer {
	return &Tracer{
		tracer: otel.Tracer(name),
		debug:  debug,
	}
}

// NewTracerFromProvider creates a tracer from an explicit provider.
func NewTracerFromProvider(tp trace.TracerProvider, name string, debug bool) *Tracer {
	return &Tracer{
		tracer: tp.Tracer(name),
		debug:  debug,
	}
}

// NewNoopTracer returns a tracer that records nothing.
func NewNoopTracer() *Tracer {
	return &Tracer{tracer: noop.NewTracerProvider().Tracer("")}
}

// SetDebug enables or disables debug mode (payloads in spans).
func (t *Tracer) SetDebug(debug bool) {
	t.debug = debug
}

// Debug returns whether debug mode is enabled.
func (t *Tracer) Debug() bool {
	return t.debug
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// SpanOptions describes the settlement of one request, inbound or outbound.
type SpanOptions struct {
	ErrorCode int
	Params    string // Only included if debug=true
	Result    string // Only included if debug=true
}

// StartCallSpan starts a span for an outbound request.
func (t *Tracer) StartCallSpan(ctx context.Context, method string, id int64) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "rpc.call "+method, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("rpc.method", method),
		attribute.String("rpc.id", strconv.FormatInt(id, 10)),
	)
	return ctx, span
}

// EndCallSpan ends an outbound request span.
func (t *Tracer) EndCallSpan(span trace.Span, opts SpanOptions, err error) {
	t.end(span, opts, err)
}

// StartDispatchSpan starts a span for an inbound request served by a delegate.
func (t *Tracer) StartDispatchSpan(ctx context.Context, method string, id int64) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, "rpc.dispatch "+method, trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		attribute.String("rpc.method", method),
		attribute.String("rpc.id", strconv.FormatInt(id, 10)),
	)
	return ctx, span
}

// EndDispatchSpan ends an inbound request span.
func (t *Tracer) EndDispatchSpan(span trace.Span, opts SpanOptions, err error) {
	t.end(span, opts, err)
}

func (t *Tracer) end(span trace.Span, opts SpanOptions, err error) {
	if t.debug {
		if opts.Params != "" {
			span.SetAttributes(attribute.String("rpc.params", truncate(opts.Params, 4000)))
		}
		if opts.Result != "" {
			span.SetAttributes(attribute.String("rpc.result", truncate(opts.Result, 4000)))
		}
	}

	if err != nil {
		span.SetAttributes(attribute.Int("rpc.error_code", opts.ErrorCode))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
