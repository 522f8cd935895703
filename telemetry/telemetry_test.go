package telemetry

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/MrEthical07/lireddit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewNone(t *testing.T) {
	tel, err := New(context.Background(), lireddit.DefaultConfig().Telemetry, nil)
	require.NoError(t, err)
	assert.NotNil(t, tel.Meter())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestPrometheusBridge(t *testing.T) {
	cfg := lireddit.DefaultConfig().Telemetry
	cfg.MetricExporter = "prometheus"
	reg := prometheus.NewRegistry()

	tel, err := New(context.Background(), cfg, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })
	require.IsType(t, &sdkmetric.MeterProvider{}, tel.MeterProvider)

	counter, err := tel.Meter().Int64Counter("bridge_probe")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if strings.Contains(f.GetName(), "bridge_probe") {
			found = true
			assert.True(t, strings.HasPrefix(f.GetName(), "otel_"), f.GetName())
		}
	}
	assert.True(t, found, "bridge_probe not gathered")
}

func TestPrometheusBridgeRequiresRegisterer(t *testing.T) {
	cfg := lireddit.DefaultConfig().Telemetry
	cfg.MetricExporter = "prometheus"

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestStdoutTraces(t *testing.T) {
	cfg := lireddit.DefaultConfig().Telemetry
	cfg.TraceExporter = "stdout"
	var buf bytes.Buffer

	tel, err := newWithWriter(context.Background(), cfg, nil, &buf)
	require.NoError(t, err)
	require.IsType(t, &sdktrace.TracerProvider{}, tel.TracerProvider)

	_, span := tel.TracerProvider.Tracer(InstrumentationName).Start(context.Background(), "probe-span")
	span.End()
	require.NoError(t, tel.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "probe-span")
}

func TestUnknownExporter(t *testing.T) {
	cfg := lireddit.DefaultConfig().Telemetry
	cfg.TraceExporter = "zipkin"

	_, err := New(context.Background(), cfg, nil)
	require.ErrorIs(t, err, ErrUnknownExporter)
}
