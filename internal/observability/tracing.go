package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"focusvault/internal/shared/utils/id"
)

// TracingConfig configures session tracing. Spans are written as JSON lines
// to Output (stderr when empty).
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
	Output         string  `mapstructure:"output" yaml:"output"`
	SampleRate     float64 `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
	ServiceName    string  `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string  `mapstructure:"service_version" yaml:"service_version"`
}

// TracerProvider wraps OpenTelemetry tracer
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	output   io.Closer
}

// NewTracerProvider creates a new tracer provider
func NewTracerProvider(config TracingConfig) (*TracerProvider, error) {
	if !config.Enabled {
		return &TracerProvider{
			tracer: noop.NewTracerProvider().Tracer("focusvault"),
		}, nil
	}

	if config.ServiceName == "" {
		config.ServiceName = "focusvault"
	}
	if config.SampleRate <= 0 || config.SampleRate > 1.0 {
		config.SampleRate = 1.0
	}

	var (
		writer io.Writer = os.Stderr
		closer io.Closer
	)
	if config.Output != "" {
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open trace output: %w", err)
		}
		writer, closer = file, file
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(writer))
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.SampleRate)),
	)

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer("focusvault"),
		output:   closer,
	}, nil
}

// Shutdown flushes pending spans and closes the output file.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		if err := tp.provider.Shutdown(ctx); err != nil {
			return err
		}
	}
	if tp.output != nil {
		return tp.output.Close()
	}
	return nil
}

// Tracer returns the tracer
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// StartSpan starts a span on tracer, adding the session and plan IDs found
// in ctx to attrs.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if sessionID := id.SessionIDFromContext(ctx); sessionID != "" {
		attrs = append(attrs, attribute.String(AttrSessionID, sessionID))
	}
	if planID := id.PlanIDFromContext(ctx); planID != "" {
		attrs = append(attrs, attribute.String(AttrPlanID, planID))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// Common span names
const (
	SpanStudySession = "focusvault.session"
)

// Common attribute keys
const (
	AttrSessionID = "focusvault.session_id"
	AttrPlanID    = "focusvault.plan_id"
	AttrKind      = "focusvault.kind"
	AttrSubject   = "focusvault.subject"
	AttrDuration  = "focusvault.duration_seconds"
	AttrOutcome   = "focusvault.outcome"
)

// Outcomes recorded on a session span when it ends.
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeSuspended = "suspended"
	OutcomeDeleted   = "deleted"
)

// SessionAttrs creates the attributes describing a study session.
func SessionAttrs(kind, subject string, seconds int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrKind, kind),
		attribute.Int(AttrDuration, seconds),
	}
	if subject != "" {
		attrs = append(attrs, attribute.String(AttrSubject, subject))
	}
	return attrs
}
