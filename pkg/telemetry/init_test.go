package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitStdoutExporter(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	var buf bytes.Buffer
	ctx := context.Background()

	shutdown, err := Init(ctx, Options{ServiceName: "tagguard", ServiceVersion: "test", Stdout: &buf})
	require.NoError(t, err)

	_, span := Tracer("tagguard/test").Start(ctx, "Collect Instance")
	span.End()

	require.NoError(t, shutdown(ctx))
	assert.Contains(t, buf.String(), "Collect Instance")
}
