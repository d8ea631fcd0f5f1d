package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/pthm/hxstream"
	"github.com/pthm/hxstream/example/components"
	"github.com/pthm/hxstream/lib/config"
	"github.com/pthm/hxstream/lib/metrics"
	"github.com/pthm/hxstream/lib/storecache"
	"github.com/pthm/hxstream/lib/templates"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync() //nolint:errcheck

	if err := run(logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.NewLoader().WithConfigPath("hxstream.yaml").Load()
	if err != nil {
		return err
	}

	db := components.NewDB("Buy groceries", "Review PR #123", "Call dentist")
	reg := hxstream.NewRegistry()
	components.Register(reg, db, components.Templates(templates.WithLogger(logger)))

	promReg := prometheus.NewRegistry()
	engine := hxstream.NewEngine(reg,
		hxstream.WithLogger(logger),
		hxstream.WithRelease(cfg.Render.Release),
		hxstream.WithMetrics(metrics.NewCollector(cfg.Metrics.Namespace, promReg)),
		hxstream.WithStoreCache(storecache.NewMemory(cfg.Cache.TTL)),
	)

	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.Handle("/", engine.Handler(nil))

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting server", zap.String("addr", "http://localhost"+cfg.Server.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
