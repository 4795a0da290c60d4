package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/cschleiden/go-approvals/internal/metrickeys"
	mi "github.com/cschleiden/go-approvals/internal/metrics"
	"github.com/cschleiden/go-approvals/log"
	"github.com/cschleiden/go-approvals/metrics"
)

type RetryOptions struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64

	InitialInterval time.Duration
	MaxInterval     time.Duration

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics metrics.Client
}

var DefaultRetryOptions = RetryOptions{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     10 * time.Second,
}

type RetryOption func(*RetryOptions)

func WithMaxRetries(n uint64) RetryOption {
	return func(o *RetryOptions) {
		o.MaxRetries = n
	}
}

func WithBackoff(initial, max time.Duration) RetryOption {
	return func(o *RetryOptions) {
		o.InitialInterval = initial
		o.MaxInterval = max
	}
}

func WithRetryClock(c clock.Clock) RetryOption {
	return func(o *RetryOptions) {
		o.Clock = c
	}
}

func WithRetryLogger(logger *slog.Logger) RetryOption {
	return func(o *RetryOptions) {
		o.Logger = logger
	}
}

func WithRetryMetrics(client metrics.Client) RetryOption {
	return func(o *RetryOptions) {
		o.Metrics = client
	}
}

type retryingModel struct {
	model   Model
	options RetryOptions
}

// WithRetry wraps a model so that transient failures are retried with exponential backoff. Other
// errors are returned immediately.
func WithRetry(m Model, opts ...RetryOption) Model {
	options := DefaultRetryOptions
	for _, opt := range opts {
		opt(&options)
	}

	if options.Clock == nil {
		options.Clock = clock.New()
	}

	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	if options.Metrics == nil {
		options.Metrics = mi.NewNoopMetricsClient()
	}

	return &retryingModel{
		model:   m,
		options: options,
	}
}

func (r *retryingModel) Generate(ctx context.Context, req *Request) (string, error) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     r.options.InitialInterval,
		RandomizationFactor: 0.5,
		Multiplier:          2,
		MaxInterval:         r.options.MaxInterval,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               r.options.Clock,
	}
	b.Reset()

	attempt := 0

	return backoff.RetryNotifyWithData(func() (string, error) {
		attempt++

		out, err := r.model.Generate(ctx, req)
		if err != nil && !IsTransient(err) {
			return "", backoff.Permanent(err)
		}

		return out, err
	}, backoff.WithContext(backoff.WithMaxRetries(b, r.options.MaxRetries), ctx), func(err error, d time.Duration) {
		r.options.Metrics.Counter(metrickeys.ModelRetry, metrics.Tags{}, 1)

		r.options.Logger.WarnContext(ctx, "transient model error, retrying",
			log.AttemptKey, attempt,
			log.DurationKey, d.Milliseconds(),
			"error", err,
		)
	})
}
