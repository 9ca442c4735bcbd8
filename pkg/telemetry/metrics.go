package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricOpts describes an instrument
type MetricOpts struct {
	Name        string
	Description string
	Unit        string
	// Buckets overrides the histogram boundaries; ignored by counters
	Buckets []float64
}

// Counter is a monotonic int64 counter. A nil *Counter drops measurements.
type Counter struct {
	counter metric.Int64Counter
}

// NewCounter creates a counter on the storefront meter
func NewCounter(opts MetricOpts) (*Counter, error) {
	c, err := GetMeter().Int64Counter(opts.Name,
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	)
	if err != nil {
		return nil, err
	}
	return &Counter{counter: c}, nil
}

// Add adds value to the counter
func (c *Counter) Add(ctx context.Context, value int64, attrs ...attribute.KeyValue) {
	if c == nil {
		return
	}
	c.counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

// Inc adds one
func (c *Counter) Inc(ctx context.Context, attrs ...attribute.KeyValue) {
	c.Add(ctx, 1, attrs...)
}

// Histogram records float64 observations, usually latencies in seconds.
// A nil *Histogram drops measurements.
type Histogram struct {
	histogram metric.Float64Histogram
}

// NewHistogram creates a histogram on the storefront meter
func NewHistogram(opts MetricOpts) (*Histogram, error) {
	options := []metric.Float64HistogramOption{
		metric.WithDescription(opts.Description),
		metric.WithUnit(opts.Unit),
	}
	if len(opts.Buckets) > 0 {
		options = append(options, metric.WithExplicitBucketBoundaries(opts.Buckets...))
	}

	h, err := GetMeter().Float64Histogram(opts.Name, options...)
	if err != nil {
		return nil, err
	}
	return &Histogram{histogram: h}, nil
}

// Record records value
func (h *Histogram) Record(ctx context.Context, value float64, attrs ...attribute.KeyValue) {
	if h == nil {
		return
	}
	h.histogram.Record(ctx, value, metric.WithAttributes(attrs...))
}

// Attribute keys shared by storefront metrics and spans
const (
	AttrStatusCode    = "http.status_code"
	AttrEntity        = "storefront.entity"
	AttrCheckoutState = "checkout.state"
	AttrCheckoutStep  = "checkout.step"
	AttrFailReason    = "checkout.failure_reason"
	AttrEndpoint      = "backend.endpoint"
)

func StatusCodeAttr(code int) attribute.KeyValue {
	return attribute.Int(AttrStatusCode, code)
}

// EntityAttr tags a measurement with the bookable entity kind
func EntityAttr(entity string) attribute.KeyValue {
	return attribute.String(AttrEntity, entity)
}

func CheckoutStateAttr(state string) attribute.KeyValue {
	return attribute.String(AttrCheckoutState, state)
}

func CheckoutStepAttr(step string) attribute.KeyValue {
	return attribute.String(AttrCheckoutStep, step)
}

func FailReasonAttr(reason string) attribute.KeyValue {
	return attribute.String(AttrFailReason, reason)
}

// EndpointAttr tags a backend call with its path template
func EndpointAttr(path string) attribute.KeyValue {
	return attribute.String(AttrEndpoint, path)
}
