package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestNewTracerProvider_ExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewTracerProvider(Options{ServiceName: "promptgate-test", Writer: &buf})
	if err != nil {
		t.Fatalf("NewTracerProvider() error = %v", err)
	}

	_, span := tp.Tracer("test").Start(context.Background(), "dispatch.attempt")
	span.End()

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "dispatch.attempt") {
		t.Errorf("exported output missing span name: %s", out)
	}
	if !strings.Contains(out, "promptgate-test") {
		t.Errorf("exported output missing service name: %s", out)
	}
}
