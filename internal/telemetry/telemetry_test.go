package telemetry

import (
	"context"
	"testing"
)

func TestInitDisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), "releasefinder-test", "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("noop shutdown failed: %v", err)
	}
}

func TestStripScheme(t *testing.T) {
	cases := map[string]string{
		"http://collector:4318": "collector:4318",
		"https://otel.example":  "otel.example",
		"collector:4318":        "collector:4318",
	}
	for in, want := range cases {
		if got := stripScheme(in); got != want {
			t.Fatalf("stripScheme(%q) = %q, want %q", in, got, want)
		}
	}
}
