package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_Disabled(t *testing.T) {
	ctx := context.Background()

	p, err := Init(ctx, nil)
	require.NoError(t, err)
	assert.Nil(t, p.tracerProvider)

	p, err = Init(ctx, &Config{ServiceName: "storefront-test"})
	require.NoError(t, err)
	assert.Nil(t, p.meterProvider)
	assert.NotNil(t, GetMeter())
	assert.NoError(t, Shutdown(ctx))
}

func TestInit_EnabledAppliesDefaults(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping exporter setup in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cfg := &Config{
		Enabled:        true,
		ServiceName:    "storefront-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
		CollectorAddr:  "localhost:4317",
		SampleRatio:    4,
	}

	p, err := Init(ctx, cfg)
	require.NoError(t, err)
	assert.NotNil(t, p.tracerProvider)
	assert.NotNil(t, p.meterProvider)
	assert.Equal(t, 15*time.Second, cfg.MetricInterval)
	assert.Equal(t, 1.0, cfg.SampleRatio)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
	defer shutdownCancel()
	_ = Shutdown(shutdownCtx)
}

func TestShutdown_WithoutInit(t *testing.T) {
	mu.Lock()
	active = nil
	mu.Unlock()
	assert.NoError(t, Shutdown(context.Background()))
}

func TestSetSpanError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	mu.Lock()
	prev := tracer
	tracer = tp.Tracer("test")
	mu.Unlock()
	defer func() {
		mu.Lock()
		tracer = prev
		mu.Unlock()
	}()

	ctx, span := StartSpan(context.Background(), "checkout.verify_payment")
	SetSpanError(ctx, errors.New("verification timed out"))
	SetSpanError(ctx, nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "checkout.verify_payment", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "verification timed out", ended[0].Status().Description)
}

func TestSetSpanError_NoSpan(t *testing.T) {
	SetSpanError(context.Background(), assert.AnError)
}

func TestNewResource(t *testing.T) {
	res := newResource(&Config{
		ServiceName:    "storefront-test",
		ServiceVersion: "1.0.0",
		Environment:    "test",
	})

	found := map[string]string{}
	for _, attr := range res.Attributes() {
		found[string(attr.Key)] = attr.Value.Emit()
	}
	assert.Equal(t, "storefront-test", found["service.name"])
	assert.Equal(t, "storefront", found["service.namespace"])
	assert.Equal(t, "test", found["deployment.environment.name"])
}
