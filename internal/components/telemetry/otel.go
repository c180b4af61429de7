package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// OtlpConnConfig points one signal at a collector. GrpcEndpoint wins when
// both endpoints are set.
type OtlpConnConfig struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

func (c OtlpConnConfig) enabled() bool {
	return c.GrpcEndpoint != "" || c.HttpEndpoint != ""
}

func (c OtlpConnConfig) log(signal string) {
	protocol, endpoint := "grpc", c.GrpcEndpoint
	if endpoint == "" {
		protocol, endpoint = "http", c.HttpEndpoint
	}
	slog.Info(
		"otlp exporter",
		"signal", signal,
		"protocol", protocol,
		"endpoint", endpoint,
		"headers", len(c.Headers),
	)
}

type OtlpConfig struct {
	Traces  OtlpConnConfig `json:"traces"`
	Metrics OtlpConnConfig `json:"metrics"`
}

type Config struct {
	Otlp OtlpConfig `json:"otlp"`
}

// Telemetry holds the providers installed by Setup, a provider is nil when
// its signal is not configured.
type Telemetry struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

// Shutdown flushes and stops whichever providers are installed.
func (t Telemetry) Shutdown(ctx context.Context) error {
	var err error
	if t.TracerProvider != nil {
		err = errors.Join(err, t.TracerProvider.Shutdown(ctx))
	}
	if t.MeterProvider != nil {
		err = errors.Join(err, t.MeterProvider.Shutdown(ctx))
	}
	return err
}

// Setup installs global otel providers for the configured signals. An empty
// config leaves the global no-op providers in place.
func Setup(ctx context.Context, serviceName string, config Config) (Telemetry, error) {
	var tel Telemetry
	traces, metrics := config.Otlp.Traces, config.Otlp.Metrics
	if !traces.enabled() && !metrics.enabled() {
		return tel, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	r, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return tel, err
	}

	if traces.enabled() {
		exporter, err := traceExporter(ctx, traces)
		if err != nil {
			return tel, err
		}
		tel.TracerProvider = trace.NewTracerProvider(
			trace.WithBatcher(exporter),
			trace.WithResource(r),
		)
		otel.SetTracerProvider(tel.TracerProvider)
	}

	if metrics.enabled() {
		exporter, err := metricExporter(ctx, metrics)
		if err != nil {
			return tel, errors.Join(err, tel.Shutdown(ctx))
		}
		tel.MeterProvider = metric.NewMeterProvider(
			metric.WithReader(metric.NewPeriodicReader(exporter, metric.WithInterval(time.Minute))),
			metric.WithResource(r),
		)
		otel.SetMeterProvider(tel.MeterProvider)
	}

	return tel, nil
}

func traceExporter(ctx context.Context, c OtlpConnConfig) (trace.SpanExporter, error) {
	c.log("traces")
	if c.GrpcEndpoint != "" {
		return otlptracegrpc.New(
			ctx,
			otlptracegrpc.WithEndpointURL(c.GrpcEndpoint),
			otlptracegrpc.WithHeaders(c.Headers),
		)
	}
	return otlptracehttp.New(
		ctx,
		otlptracehttp.WithEndpointURL(c.HttpEndpoint),
		otlptracehttp.WithHeaders(c.Headers),
	)
}

func metricExporter(ctx context.Context, c OtlpConnConfig) (metric.Exporter, error) {
	c.log("metrics")
	if c.GrpcEndpoint != "" {
		return otlpmetricgrpc.New(
			ctx,
			otlpmetricgrpc.WithEndpointURL(c.GrpcEndpoint),
			otlpmetricgrpc.WithHeaders(c.Headers),
		)
	}
	return otlpmetrichttp.New(
		ctx,
		otlpmetrichttp.WithEndpointURL(c.HttpEndpoint),
		otlpmetrichttp.WithHeaders(c.Headers),
	)
}
