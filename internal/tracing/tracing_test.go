package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTracerReturnsUsableNoopTracerWhenEndpointUnset(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	tr := Tracer("hermes-agent-gateway/test")
	require.NotNil(t, tr)

	_, span := tr.Start(context.Background(), "unit-test-span")
	defer span.End()
	require.False(t, span.SpanContext().IsValid())
}

func TestShutdownIsSafeWithoutInit(t *testing.T) {
	require.NoError(t, Shutdown(context.Background()))
}

func TestHostOfStripsScheme(t *testing.T) {
	require.Equal(t, "collector:4318", hostOf("http://collector:4318"))
	require.Equal(t, "collector:4318", hostOf("https://collector:4318"))
	require.Equal(t, "collector:4318", hostOf("collector:4318"))
}

func TestStartSpanAndEndWithErrorRunOnNoopTracer(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "hermes-agent-gateway/test", "unit-test-span")
	require.NotNil(t, ctx)
	EndWithError(span, nil)

	_, span2 := StartSpan(context.Background(), "hermes-agent-gateway/test", "unit-test-span-err")
	EndWithError(span2, errBoom)
}

var errBoom = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }
