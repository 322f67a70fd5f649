package telemetry

import (
	"context"
	"testing"

	"github.com/kalambet/sprout/internal/config"
)

func TestInit_Disabled(t *testing.T) {
	for _, cfg := range []config.TelemetryConfig{
		{Enabled: false, OTLPEndpoint: "localhost:4317"},
		{Enabled: true, OTLPEndpoint: ""},
	} {
		shutdown, err := Init(context.Background(), cfg, "test")
		if err != nil {
			t.Fatalf("Init(%+v): %v", cfg, err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	}
}

func TestInit_Enabled(t *testing.T) {
	// The gRPC exporter connects lazily, so Init succeeds without a collector.
	shutdown, err := Init(context.Background(), config.TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "127.0.0.1:4317",
		ServiceName:  "sprout-test",
	}, "test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
