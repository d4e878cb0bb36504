package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSetupDisabled(t *testing.T) {
	before := otel.GetTracerProvider()
	shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
	if otel.GetTracerProvider() != before {
		t.Error("tracer provider replaced without an endpoint")
	}
}

func TestSetupExporter(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	// the exporter connects lazily, so no collector is needed
	shutdown, err := Setup(context.Background(), Config{Endpoint: "127.0.0.1:4318", Insecure: true, ServiceVersion: "test"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Errorf("tracer provider = %T", otel.GetTracerProvider())
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// nothing was recorded, so shutdown does not export
	_ = shutdown(ctx)
}
