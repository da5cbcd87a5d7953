package tracing

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

func TestSetup_WritesSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	defer otel.SetTracerProvider(prev)

	var buf bytes.Buffer
	shutdown, err := Setup(&buf)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	ctx, parent := Start(context.Background(), "provision.create")
	_, child := Start(ctx, "persist")
	child.SetAttributes(attribute.String("server.uuid", "abc"))
	End(child, errors.New("unique constraint"))
	End(parent, nil)

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"provision.create", "persist", "unique constraint", "server.uuid"} {
		if !strings.Contains(out, want) {
			t.Errorf("trace output missing %q", want)
		}
	}
}
