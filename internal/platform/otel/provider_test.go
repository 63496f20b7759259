package otel_test

import (
	"context"
	"testing"

	pdfotel "github.com/louisbranch/pdfstore/internal/platform/otel"
)

func TestSetupNoop(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		enabled  string
	}{
		{name: "endpoint empty", endpoint: "", enabled: ""},
		{name: "explicitly disabled", endpoint: "http://localhost:4318", enabled: "false"},
		{name: "disabled any case", endpoint: "http://localhost:4318", enabled: "FALSE"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("PDFSTORE_OTEL_ENDPOINT", tc.endpoint)
			t.Setenv("PDFSTORE_OTEL_ENABLED", tc.enabled)

			shutdown, err := pdfotel.Setup(context.Background(), "pdfstore-test")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			if err := shutdown(ctx); err != nil {
				t.Fatalf("noop shutdown should not error: %v", err)
			}
		})
	}
}

func TestSetupCreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no export actually happens.
	t.Setenv("PDFSTORE_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("PDFSTORE_OTEL_ENABLED", "")

	shutdown, err := pdfotel.Setup(context.Background(), "pdfstore-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
