package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/pthm/hxstream"
	"github.com/pthm/hxstream/lib/config"
	"github.com/pthm/hxstream/lib/encoding"
	"github.com/pthm/hxstream/lib/metrics"
	"github.com/pthm/hxstream/lib/storecache"
	"github.com/pthm/hxstream/lib/templates"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "hxstream.yaml", "YAML configuration file")
	dataDir := fs.String("data", "", "directory of <store>.yaml files")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.NewLoader().WithConfigPath(*configPath).Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, cleanup, err := buildHandler(ctx, cfg, *dataDir, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// buildHandler wires the engine from cfg. The returned cleanup releases the
// store cache connection.
func buildHandler(ctx context.Context, cfg *config.Config, dataDir string, logger *zap.Logger) (http.Handler, func(), error) {
	cleanup := func() {}

	reg := hxstream.NewRegistry()
	tmpl := templates.NewCache(os.DirFS(cfg.Render.TemplatesDir), templates.WithLogger(logger))
	names, err := componentFiles(cfg.Render.TemplatesDir)
	if err != nil {
		return nil, cleanup, err
	}
	for _, name := range names {
		reg.Add(templates.Component(tmpl, name, loadView))
	}
	if dataDir != "" {
		stores, err := fileStores(dataDir)
		if err != nil {
			return nil, cleanup, err
		}
		reg.AddStore(stores...)
	}

	if cfg.Render.WatchInterval > 0 {
		w := templates.NewWatcher(cfg.Render.TemplatesDir,
			templates.WithInterval(cfg.Render.WatchInterval),
			templates.WithWatcherLogger(logger),
		)
		tmpl.Watch(ctx, w)
	}

	opts := []hxstream.Option{
		hxstream.WithLogger(logger),
		hxstream.WithRelease(cfg.Render.Release),
	}

	mux := http.NewServeMux()
	if cfg.Metrics.Enabled {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, hxstream.WithMetrics(metrics.NewCollector(cfg.Metrics.Namespace, promReg)))
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	}

	if cfg.Cache.Enabled {
		cache, closeCache, err := newStoreCache(cfg.Cache, logger)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = closeCache
		opts = append(opts, hxstream.WithStoreCache(cache))
	}

	engine := hxstream.NewEngine(reg, opts...)
	mux.Handle("/", engine.Handler(nil))

	logger.Info("components registered",
		zap.Strings("components", reg.ComponentNames()),
		zap.String("templates", cfg.Render.TemplatesDir),
	)
	return mux, cleanup, nil
}

func newStoreCache(cfg config.CacheConfig, logger *zap.Logger) (storecache.Cache, func(), error) {
	if cfg.Driver != config.CacheRedis {
		return storecache.NewMemory(cfg.TTL), func() {}, nil
	}

	enc, err := encoding.NewEncoder([]byte(cfg.SigningKey))
	if err != nil {
		return nil, nil, fmt.Errorf("store cache: %w", err)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	opts := []storecache.RedisOption{storecache.WithDefaultTTL(cfg.TTL)}
	if cfg.Sealed {
		opts = append(opts, storecache.WithSealedEntries())
	}
	cache := storecache.NewRedis(client, enc, logger, opts...)
	return cache, func() {
		if err := cache.Close(); err != nil {
			logger.Warn("store cache close failed", zap.Error(err))
		}
		if err := client.Close(); err != nil {
			logger.Warn("redis close failed", zap.Error(err))
		}
	}, nil
}

// view is the data file templates are rendered with.
type view struct {
	Attrs map[string]string
	Store any
}

func loadView(ctx context.Context, c *hxstream.Context) (any, error) {
	data, err := c.StoreData(ctx)
	if err != nil {
		return nil, err
	}
	return view{Attrs: c.Attributes, Store: data}, nil
}

// componentFiles lists component names for the templates in dir, skipping
// error templates.
func componentFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+templates.Extension))
	if err != nil {
		return nil, err
	}
	var names []string
	for _, m := range matches {
		name := strings.TrimSuffix(filepath.Base(m), templates.Extension)
		if strings.HasSuffix(name, templates.ErrorSuffix) {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// fileStore serves the contents of a YAML file as store data.
type fileStore struct {
	name string
	path string
}

func (s *fileStore) Name() string { return s.name }

func (s *fileStore) Cacheable() bool { return true }

func (s *fileStore) Load(ctx context.Context, sc *hxstream.StoreContext) (any, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var data any
	if err := yaml.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return data, nil
}

func fileStores(dir string) ([]hxstream.Store, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	stores := make([]hxstream.Store, 0, len(matches))
	for _, m := range matches {
		stores = append(stores, &fileStore{
			name: strings.TrimSuffix(filepath.Base(m), ".yaml"),
			path: m,
		})
	}
	return stores, nil
}
