package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/otlptranslator"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsCollector records study session metrics. Metrics are exposed
// through a Prometheus registry that can be flushed to a node-exporter
// textfile; nothing listens on the network.
type MetricsCollector struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider
	textfile string

	sessionsStarted   metric.Int64Counter
	sessionsCompleted metric.Int64Counter
	sessionsCancelled metric.Int64Counter
	studyTime         metric.Int64Counter
	sessionsActive    metric.Int64UpDownCounter
}

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	TextfilePath string `mapstructure:"textfile_path" yaml:"textfile_path"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	registry := prometheus.NewRegistry()
	// node-exporter's textfile collector only parses legacy metric names.
	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithTranslationStrategy(otlptranslator.UnderscoreEscapingWithSuffixes),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	meter := provider.Meter("focusvault")

	sessionsStarted, err := meter.Int64Counter(
		"focusvault.sessions.started",
		metric.WithDescription("Study sessions started"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions_started counter: %w", err)
	}

	sessionsCompleted, err := meter.Int64Counter(
		"focusvault.sessions.completed",
		metric.WithDescription("Study sessions that counted down to zero"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions_completed counter: %w", err)
	}

	sessionsCancelled, err := meter.Int64Counter(
		"focusvault.sessions.cancelled",
		metric.WithDescription("Study sessions cancelled before completion"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions_cancelled counter: %w", err)
	}

	studyTime, err := meter.Int64Counter(
		"focusvault.study.time",
		metric.WithDescription("Seconds counted down by completed sessions"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create study_time counter: %w", err)
	}

	sessionsActive, err := meter.Int64UpDownCounter(
		"focusvault.sessions.active",
		metric.WithDescription("Sessions opened and not yet finished"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sessions_active gauge: %w", err)
	}

	return &MetricsCollector{
		registry:          registry,
		provider:          provider,
		textfile:          config.TextfilePath,
		sessionsStarted:   sessionsStarted,
		sessionsCompleted: sessionsCompleted,
		sessionsCancelled: sessionsCancelled,
		studyTime:         studyTime,
		sessionsActive:    sessionsActive,
	}, nil
}

// Registry exposes the Prometheus registry backing the collector, or nil
// when metrics are disabled.
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// RecordSessionStarted counts a session entering Running.
func (m *MetricsCollector) RecordSessionStarted(ctx context.Context, kind string) {
	if m.sessionsStarted == nil {
		return
	}
	m.sessionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordSessionCompleted counts a completion and the seconds it covered.
func (m *MetricsCollector) RecordSessionCompleted(ctx context.Context, kind string, seconds int) {
	if m.sessionsCompleted == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.sessionsCompleted.Add(ctx, 1, attrs)
	m.studyTime.Add(ctx, int64(seconds), attrs)
}

// RecordSessionCancelled counts a session cancelled before completion.
func (m *MetricsCollector) RecordSessionCancelled(ctx context.Context, kind string) {
	if m.sessionsCancelled == nil {
		return
	}
	m.sessionsCancelled.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// IncrementActiveSessions increments the active sessions gauge
func (m *MetricsCollector) IncrementActiveSessions(ctx context.Context) {
	if m.sessionsActive == nil {
		return
	}
	m.sessionsActive.Add(ctx, 1)
}

// DecrementActiveSessions decrements the active sessions gauge
func (m *MetricsCollector) DecrementActiveSessions(ctx context.Context) {
	if m.sessionsActive == nil {
		return
	}
	m.sessionsActive.Add(ctx, -1)
}

// WriteTextfile flushes the current metric values to the configured
// textfile. It is a no-op when metrics are disabled or no path is set.
func (m *MetricsCollector) WriteTextfile() error {
	if m.registry == nil || m.textfile == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(m.textfile, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Shutdown flushes the textfile and stops the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	if err := m.WriteTextfile(); err != nil {
		return err
	}
	return m.provider.Shutdown(ctx)
}
