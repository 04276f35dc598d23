package ansiblegraph

import (
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Option configures a Materializer or Reconstructor.
type Option func(*options)

type options struct {
	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter
	newID  func() string
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTracer sets an OpenTelemetry tracer. Defaults to the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithMeter sets an OpenTelemetry meter. Defaults to the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithIDGenerator sets the correlation id generator used while storing.
// Ids must be unique within one Store call. Defaults to random UUIDs.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) {
		o.newID = fn
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracer == nil {
		o.tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	if o.meter == nil {
		o.meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o
}
