package telemetry

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// DefaultServiceName is used when neither config nor OTEL_SERVICE_NAME names the service.
const DefaultServiceName = "acpkit"

// Resource attributes describing the endpoint that exports spans.
const (
	RoleKey            = attribute.Key("acp.role")
	ProtocolVersionKey = attribute.Key("acp.protocol_version")
)

// ProviderConfig describes where spans go and which endpoint produced them.
type ProviderConfig struct {
	ServiceName string

	// Role is "agent" or "client"; empty for processes hosting both.
	Role string

	// ProtocolVersion is the protocol revision the endpoint speaks.
	ProtocolVersion string

	// Endpoint is host:port of the OTLP collector. An http:// prefix
	// implies Insecure. Falls back to OTEL_EXPORTER_OTLP_ENDPOINT.
	Endpoint string

	// Protocol is "grpc" (default) or "http".
	Protocol string

	Insecure bool

	// Debug records params and results on spans.
	Debug bool
}

// Provider owns the span pipeline of one process.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer *Tracer
}

// InitProvider starts batching spans to an OTLP collector and makes the
// provider's tracer the global one, so connections opened without
// WithTracer report to it. Shut it down before exit to flush.
func InitProvider(ctx context.Context, cfg ProviderConfig) (*Provider, error) {
	endpoint, insecure, err := resolveEndpoint(cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := newExporter(ctx, cfg.Protocol, endpoint, insecure)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(resource.Default(), endpointResource(cfg))
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	p := &Provider{tp: tp, tracer: NewTracerFromProvider(tp, serviceName(cfg), cfg.Debug)}
	SetGlobalTracer(p.tracer)
	return p, nil
}

// NewSyncProvider exports every span as it ends. It is not installed
// globally; pass its Tracer to connections explicitly.
func NewSyncProvider(exporter sdktrace.SpanExporter, serviceName string, debug bool) *Provider {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	return &Provider{tp: tp, tracer: NewTracerFromProvider(tp, serviceName, debug)}
}

// Tracer returns the tracer connections should use.
func (p *Provider) Tracer() *Tracer {
	return p.tracer
}

// Shutdown flushes buffered spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

func resolveEndpoint(cfg ProviderConfig) (string, bool, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		return "", false, fmt.Errorf("telemetry endpoint not configured (set endpoint or OTEL_EXPORTER_OTLP_ENDPOINT)")
	}

	insecure := cfg.Insecure
	if rest, ok := strings.CutPrefix(endpoint, "http://"); ok {
		endpoint, insecure = rest, true
	}
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return endpoint, insecure, nil
}

func newExporter(ctx context.Context, protocol, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch strings.ToLower(protocol) {
	case "", "grpc":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	case "http":
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unknown telemetry protocol %q (use grpc or http)", protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry exporter: %w", err)
	}
	return exporter, nil
}

// endpointResource names the service and the protocol endpoint behind it.
func endpointResource(cfg ProviderConfig) *resource.Resource {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName(cfg))}
	if cfg.Role != "" {
		attrs = append(attrs, RoleKey.String(cfg.Role))
	}
	if cfg.ProtocolVersion != "" {
		attrs = append(attrs, ProtocolVersionKey.String(cfg.ProtocolVersion))
	}
	return resource.NewSchemaless(attrs...)
}

func serviceName(cfg ProviderConfig) string {
	if cfg.ServiceName != "" {
		return cfg.ServiceName
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return DefaultServiceName
}
