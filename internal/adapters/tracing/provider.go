// Package tracing records resolve and export spans with OpenTelemetry.
package tracing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/eleven-am/playbook/internal/domain"
	"github.com/eleven-am/playbook/internal/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Provider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	enabled  bool
	logger   *slog.Logger
}

// NewProvider builds the tracer provider described by config. A disabled
// config yields a no-op tracer. Extra options are appended to the SDK
// provider options.
func NewProvider(config domain.TracingConfig, logger *slog.Logger, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tracing")

	if !config.Enabled {
		return &Provider{
			tracer: noop.NewTracerProvider().Tracer("noop"),
			logger: logger,
		}, nil
	}

	var exporter sdktrace.SpanExporter
	switch config.Exporter {
	case "stdout":
		var err error
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
	case "none", "":
	default:
		return nil, domain.NewConfigError("tracing.exporter", fmt.Errorf("%w: %q", domain.ErrInvalidInput, config.Exporter))
	}

	serviceName := config.ServiceName
	if serviceName == "" {
		serviceName = domain.DefaultTracingConfig().ServiceName
	}
	sampleRate := config.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	options := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRate))),
	}
	if exporter != nil {
		options = append(options, sdktrace.WithBatcher(exporter))
	}
	options = append(options, opts...)

	provider := sdktrace.NewTracerProvider(options...)
	logger.Info("tracing enabled", "exporter", config.Exporter, "service", serviceName, "sample_rate", sampleRate)

	return &Provider{
		provider: provider,
		tracer:   provider.Tracer(serviceName),
		enabled:  true,
		logger:   logger,
	}, nil
}

func (p *Provider) Enabled() bool {
	return p.enabled
}

// Tracer adapts the provider to the engine's tracer port.
func (p *Provider) Tracer() ports.Tracer {
	return &tracer{tracer: p.tracer}
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	p.logger.Debug("shutting down tracing provider")
	return p.provider.Shutdown(ctx)
}

type tracer struct {
	tracer trace.Tracer
}

func (t *tracer) Start(ctx context.Context, name string, attrs map[string]any) (context.Context, ports.Span) {
	ctx, s := t.tracer.Start(ctx, name, trace.WithAttributes(attributes(attrs)...))
	return ctx, &span{span: s}
}

type span struct {
	span trace.Span
}

func (s *span) SetAttribute(key string, value any) {
	s.span.SetAttributes(attributeOf(key, value))
}

func (s *span) RecordError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

func (s *span) End() {
	s.span.End()
}

func attributes(attrs map[string]any) []attribute.KeyValue {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, k := range keys {
		out = append(out, attributeOf(k, attrs[k]))
	}
	return out
}

func attributeOf(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case bool:
		return attribute.Bool(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	default:
		return attribute.String(key, fmt.Sprint(v))
	}
}
