package web

import (
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
)

type Options struct {
	Logger *slog.Logger

	Clock clock.Clock

	// ApprovalTimeout is reported by the health endpoint.
	ApprovalTimeout time.Duration

	// CORS allows requests from any origin.
	CORS bool

	// DefaultListLimit is the page size of GET /tasks without a limit. Defaults to 50.
	DefaultListLimit int

	Version string
}

var DefaultOptions = Options{
	ApprovalTimeout:  300 * time.Second,
	CORS:             true,
	DefaultListLimit: 50,
	Version:          "1.0.0",
}

type Option func(*Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

func WithApprovalTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ApprovalTimeout = d
	}
}

func WithCORS(enabled bool) Option {
	return func(o *Options) {
		o.CORS = enabled
	}
}

func WithDefaultListLimit(limit int) Option {
	return func(o *Options) {
		o.DefaultListLimit = limit
	}
}

func WithVersion(version string) Option {
	return func(o *Options) {
		o.Version = version
	}
}
