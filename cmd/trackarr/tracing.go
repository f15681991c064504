package main

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Tracing exporters selectable with TRACING_EXPORTER
const (
	tracingExporterNone   = "none"
	tracingExporterStdout = "stdout"
)

// setupTracing installs the global tracer provider. ratio is the fraction
// of root spans that are sampled; 0 disables sampling. The stdout exporter
// writes finished spans as JSON to w.
func setupTracing(exporter string, ratio float64, w io.Writer) (func(context.Context) error, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", "trackarr"),
		attribute.String("service.version", version),
	)

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}

	switch exporter {
	case "", tracingExporterNone:
	case tracingExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q", exporter)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
