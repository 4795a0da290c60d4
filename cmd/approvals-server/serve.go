package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cschleiden/go-approvals/web"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, configFile string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configFile)
	if err != nil {
		return err
	}

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.Close(closeCtx); err != nil {
			a.logger.Error("closing", "error", err)
		}
	}()

	gin.SetMode(gin.ReleaseMode)

	router := web.NewRouter(a.engine, a.backend,
		web.WithLogger(a.logger),
		web.WithApprovalTimeout(a.config.Approval.Timeout),
		web.WithCORS(a.config.Server.CORS),
		web.WithVersion(version),
	)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	srv := &http.Server{
		Addr:              a.config.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.cache != nil {
		g.Go(func() error {
			a.cache.StartEviction(ctx)
			return nil
		})
	}

	g.Go(func() error {
		a.recoverLoop(ctx)
		return nil
	})

	g.Go(func() error {
		if err := a.sweeper.Start(ctx); err != nil {
			return fmt.Errorf("starting sweeper: %w", err)
		}

		return a.sweeper.WaitForCompletion()
	})

	g.Go(func() error {
		a.logger.InfoContext(ctx, "listening", "addr", srv.Addr, "store", a.config.Store.Backend)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// recoverLoop continues abandoned runs at start and then on every sweep interval, so runs younger
// than the grace period at start are picked up later.
func (a *app) recoverLoop(ctx context.Context) {
	ticker := time.NewTicker(a.config.Approval.SweepInterval)
	defer ticker.Stop()

	for {
		if n, err := a.engine.Recover(ctx); err != nil {
			a.logger.ErrorContext(ctx, "could not recover all interrupted runs", "error", err)
		} else if n > 0 {
			a.logger.InfoContext(ctx, "recovered interrupted runs", "count", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sweepOnce(ctx context.Context, configFile string) error {
	a, err := newApp(ctx, configFile)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	n, err := a.sweeper.Sweep(ctx)
	a.logger.InfoContext(ctx, "sweep finished", "auto_rejected", n)

	return err
}

func recoverOnce(ctx context.Context, configFile string) error {
	a, err := newApp(ctx, configFile)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	n, err := a.engine.Recover(ctx)
	a.logger.InfoContext(ctx, "recover finished", "recovered", n)

	return err
}
