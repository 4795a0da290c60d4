package sweeper

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	mi "github.com/cschleiden/go-approvals/internal/metrics"
	"github.com/cschleiden/go-approvals/metrics"
)

type Options struct {
	// Interval between two sweeps. Defaults to 30s.
	Interval time.Duration

	// Timeout after which a task waiting for approval is auto-rejected, measured from its creation.
	// Defaults to 300s.
	Timeout time.Duration

	Logger *slog.Logger

	Metrics metrics.Client

	Clock clock.Clock
}

var DefaultOptions = Options{
	Interval: 30 * time.Second,
	Timeout:  300 * time.Second,
}

type Option func(*Options)

func WithInterval(d time.Duration) Option {
	return func(o *Options) {
		o.Interval = d
	}
}

func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

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

func WithClock(c clock.Clock) Option {
	return func(o *Options) {
		o.Clock = c
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

	if options.Clock == nil {
		options.Clock = clock.New()
	}

	return options
}
