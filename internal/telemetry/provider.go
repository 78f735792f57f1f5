// Package telemetry wires OpenTelemetry tracing for the audio spans.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/zjrosen/chime/internal/config"
	"github.com/zjrosen/chime/internal/log"
)

// ServiceName is reported as service.name on every span.
const ServiceName = "chime"

// ShutdownFunc flushes pending spans and stops the exporter.
type ShutdownFunc func(context.Context) error

// Options adjusts Setup. The zero value writes stdout spans to os.Stdout.
type Options struct {
	// Stdout receives spans for the stdout exporter.
	Stdout io.Writer
}

// Setup installs a global tracer provider for cfg.Exporter.
//
// Tracing is opt-in: with the "none" exporter Setup returns a no-op shutdown
// function and the global provider is left alone.
func Setup(ctx context.Context, cfg config.TelemetryConfig, opts Options) (ShutdownFunc, error) {
	noop := func(context.Context) error { return nil }

	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	switch cfg.Exporter {
	case "", config.ExporterNone:
		return noop, nil
	case config.ExporterStdout:
		w := opts.Stdout
		if w == nil {
			w = os.Stdout
		}
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	case config.ExporterOTLP:
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
	default:
		return noop, fmt.Errorf("unknown telemetry exporter %q", cfg.Exporter)
	}
	if err != nil {
		return noop, fmt.Errorf("creating %s exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(attribute.String("service.name", ServiceName)),
	)
	if err != nil {
		return noop, fmt.Errorf("creating resource: %w", err)
	}

	var spanOpt sdktrace.TracerProviderOption
	if cfg.Exporter == config.ExporterStdout {
		spanOpt = sdktrace.WithSyncer(exporter)
	} else {
		spanOpt = sdktrace.WithBatcher(exporter)
	}
	tp := sdktrace.NewTracerProvider(
		spanOpt,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	log.Info(log.CatTelemetry, "Tracing enabled", "exporter", cfg.Exporter, "endpoint", cfg.Endpoint)

	return tp.Shutdown, nil
}
