package workflow

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	mi "github.com/cschleiden/go-approvals/internal/metrics"
	"github.com/cschleiden/go-approvals/metrics"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type Options struct {
	Logger *slog.Logger

	Metrics metrics.Client

	TracerProvider trace.TracerProvider

	Clock clock.Clock

	// Executor performs approved actions. Defaults to SimulatedExecutor.
	Executor Executor

	// ResponseTemperature is the temperature used when generating the final answer. Defaults to 0.5.
	ResponseTemperature float64

	// RecoverGracePeriod is how long a task must not have been updated before Recover considers its
	// run abandoned. Runs updated more recently may still be in flight in another process.
	RecoverGracePeriod time.Duration
}

var DefaultOptions = Options{
	ResponseTemperature: 0.5,
	RecoverGracePeriod:  2 * time.Minute,
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithMetrics(client metrics.Client) Option {
	return func(o *Options) {
		o.Metrics = client
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *Options) {
		o.TracerProvider = tp
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

func WithExecutor(e Executor) Option {
	return func(o *Options) {
		o.Executor = e
	}
}

func WithResponseTemperature(t float64) Option {
	return func(o *Options) {
		o.ResponseTemperature = t
	}
}

func WithRecoverGracePeriod(d time.Duration) Option {
	return func(o *Options) {
		o.RecoverGracePeriod = d
	}
}

func applyOptions(opts ...Option) Options {
	options := DefaultOptions
	for _, opt := range opts {
		opt(&options)
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if options.Metrics == nil {
		options.Metrics = mi.NewNoopMetricsClient()
	}

	if options.TracerProvider == nil {
		options.TracerProvider = noop.NewTracerProvider()
	}

	if options.Clock == nil {
		options.Clock = clock.New()
	}

	if options.Executor == nil {
		options.Executor = &SimulatedExecutor{}
	}

	return options
}
