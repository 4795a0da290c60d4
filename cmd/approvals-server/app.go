package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cschleiden/go-approvals/backend"
	"github.com/cschleiden/go-approvals/backend/cache"
	"github.com/cschleiden/go-approvals/backend/mysql"
	redisbackend "github.com/cschleiden/go-approvals/backend/redis"
	"github.com/cschleiden/go-approvals/backend/sqlite"
	"github.com/cschleiden/go-approvals/classifier"
	"github.com/cschleiden/go-approvals/internal/config"
	"github.com/cschleiden/go-approvals/llm"
	"github.com/cschleiden/go-approvals/llm/anthropic"
	"github.com/cschleiden/go-approvals/llm/gemini"
	"github.com/cschleiden/go-approvals/log"
	prom "github.com/cschleiden/go-approvals/metrics/prometheus"
	"github.com/cschleiden/go-approvals/sweeper"
	"github.com/cschleiden/go-approvals/workflow"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// app holds the components shared by all commands.
type app struct {
	config   *config.Config
	logger   *slog.Logger
	registry *promclient.Registry
	backend  backend.Backend
	cache    *cache.CheckpointCache
	engine   *workflow.Engine
	sweeper  *sweeper.Sweeper

	closers []func(context.Context) error
}

func newApp(ctx context.Context, configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}

	a := &app{
		config:   cfg,
		logger:   cfg.Log.NewLogger(os.Stderr),
		registry: promclient.NewRegistry(),
	}

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	metrics := prom.New(a.registry, func(err error) {
		a.logger.Warn("could not register metric", "error", err)
	})

	tp, err := a.tracerProvider(ctx)
	if err != nil {
		return nil, err
	}

	b, err := a.newBackend(
		backend.WithLogger(a.logger),
		backend.WithMetrics(metrics),
		backend.WithTracerProvider(tp),
	)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.backend = b
	a.closers = append(a.closers, func(context.Context) error { return b.Close() })

	if cfg.Store.CheckpointCache.Size > 0 {
		a.cache = cache.NewCheckpointCache(b, cfg.Store.CheckpointCache.Size, cfg.Store.CheckpointCache.TTL)
		a.backend = a.cache
	}

	model, err := a.newModel(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	model = llm.WithRetry(model,
		llm.WithMaxRetries(cfg.LLM.MaxRetries),
		llm.WithBackoff(cfg.LLM.InitialBackoff, llm.DefaultRetryOptions.MaxInterval),
		llm.WithRetryLogger(a.logger),
		llm.WithRetryMetrics(metrics),
	)

	a.engine = workflow.New(a.backend, a.backend,
		classifier.New(model, classifier.WithLogger(a.logger), classifier.WithMetrics(metrics)),
		model,
		workflow.WithLogger(a.logger),
		workflow.WithMetrics(metrics),
		workflow.WithTracerProvider(tp),
		workflow.WithRecoverGracePeriod(cfg.Approval.RecoverGrace),
	)

	a.sweeper = sweeper.New(a.backend, a.engine,
		sweeper.WithInterval(cfg.Approval.SweepInterval),
		sweeper.WithTimeout(cfg.Approval.Timeout),
		sweeper.WithLogger(a.logger),
		sweeper.WithMetrics(metrics),
	)

	return a, nil
}

// Close releases all resources, in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}

	return errors.Join(errs...)
}

func (a *app) tracerProvider(ctx context.Context) (trace.TracerProvider, error) {
	var exporter sdktrace.SpanExporter

	switch a.config.Tracing.Exporter {
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("creating stdout exporter: %w", err)
		}

		exporter = exp

	case "otlp":
		exp, err := otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(a.config.Tracing.Endpoint),
			otlptracehttp.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("creating otlp exporter: %w", err)
		}

		exporter = exp

	default:
		return noop.NewTracerProvider(), nil
	}

	r := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String("approvals"),
		semconv.ServiceVersionKey.String(version),
		attribute.String(log.BackendKey, a.config.Store.Backend),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
	)

	otel.SetTracerProvider(tp)
	a.closers = append(a.closers, tp.Shutdown)

	return tp, nil
}

func (a *app) newBackend(opts ...backend.BackendOption) (backend.Backend, error) {
	s := a.config.Store

	switch s.Backend {
	case "memory":
		return sqlite.NewInMemoryBackend(sqlite.WithBackendOptions(opts...)), nil

	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}

		return sqlite.NewSqliteBackend(s.Path, sqlite.WithBackendOptions(opts...)), nil

	case "mysql":
		return mysql.NewMysqlBackend(
			s.MySQL.Host, s.MySQL.Port, s.MySQL.User, s.MySQL.Password, s.MySQL.Database,
			mysql.WithBackendOptions(opts...),
		), nil

	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{s.Redis.Addr},
			Password: s.Redis.Password,
			DB:       s.Redis.DB,
		})

		b, err := redisbackend.NewRedisBackend(client,
			redisbackend.WithKeyPrefix(s.Redis.KeyPrefix),
			redisbackend.WithBackendOptions(opts...),
		)
		if err != nil {
			return nil, fmt.Errorf("creating redis backend: %w", err)
		}

		return b, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", s.Backend)
}

func (a *app) newModel(ctx context.Context) (llm.Model, error) {
	c := a.config.LLM

	switch c.Provider {
	case "gemini":
		m, err := gemini.New(ctx, c.APIKey, c.Model)
		if err != nil {
			return nil, fmt.Errorf("creating gemini client: %w", err)
		}

		return m, nil
	case "anthropic":
		return anthropic.New(c.APIKey, c.Model), nil
	}

	return nil, fmt.Errorf("unknown llm provider %q", c.Provider)
}
