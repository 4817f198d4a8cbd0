package telemetry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Endpoint is one OTLP destination. When GrpcEndpoint is set it wins
// over HttpEndpoint.
type Endpoint struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

func (e Endpoint) set() bool {
	return e.GrpcEndpoint != "" || e.HttpEndpoint != ""
}

func (e Endpoint) transport() string {
	if e.GrpcEndpoint != "" {
		return "grpc"
	}
	return "http"
}

type Config struct {
	Otlp struct {
		Traces  Endpoint `json:"traces"`
		Metrics Endpoint `json:"metrics"`
	} `json:"otlp"`
	// seconds between metric exports, defaults to 5
	MetricInterval int `json:"metric_interval"`
}

func (c Config) Enabled() bool {
	return c.Otlp.Traces.set() || c.Otlp.Metrics.set()
}

func newResource(serviceName string) (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		),
	)
}

func newTraceProvider(ctx context.Context, r *resource.Resource, c Config) (*trace.TracerProvider, error) {
	opts := []trace.TracerProviderOption{trace.WithResource(r)}
	if c.Otlp.Traces.set() {
		exporter, err := traceExporter(ctx, c.Otlp.Traces)
		if err != nil {
			return nil, err
		}
		opts = append(opts, trace.WithBatcher(exporter))
	}
	return trace.NewTracerProvider(opts...), nil
}

func traceExporter(ctx context.Context, e Endpoint) (trace.SpanExporter, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	slog.Info(
		"tracer export initialized",
		"type", e.transport(),
		"endpoint", e.GrpcEndpoint+e.HttpEndpoint,
		"headers", len(e.Headers) > 0,
	)
	if e.GrpcEndpoint != "" {
		return otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(e.GrpcEndpoint),
			otlptracegrpc.WithHeaders(e.Headers),
		)
	}
	return otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(e.HttpEndpoint),
		otlptracehttp.WithHeaders(e.Headers),
	)
}

func newMetricProvider(ctx context.Context, r *resource.Resource, c Config) (*metric.MeterProvider, error) {
	opts := []metric.Option{metric.WithResource(r)}
	if c.Otlp.Metrics.set() {
		exporter, err := metricExporter(ctx, c.Otlp.Metrics)
		if err != nil {
			return nil, err
		}
		interval := time.Second * 5
		if c.MetricInterval > 0 {
			interval = time.Duration(c.MetricInterval) * time.Second
		}
		opts = append(opts, metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(interval))))
	}
	return metric.NewMeterProvider(opts...), nil
}

func metricExporter(ctx context.Context, e Endpoint) (metric.Exporter, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*3)
	defer cancel()

	slog.Info(
		"metric exporter initialized",
		"type", e.transport(),
		"endpoint", e.GrpcEndpoint+e.HttpEndpoint,
		"headers", len(e.Headers) > 0,
	)
	if e.GrpcEndpoint != "" {
		return otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(e.GrpcEndpoint),
			otlpmetricgrpc.WithHeaders(e.Headers),
		)
	}
	return otlpmetrichttp.New(
		ctx,
		otlpmetrichttp.WithEndpointURL(e.HttpEndpoint),
		otlpmetrichttp.WithHeaders(e.Headers),
	)
}
