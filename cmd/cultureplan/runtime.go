package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"cultureplan/internal/blob"
	"cultureplan/internal/config"
	"cultureplan/internal/core"
	"cultureplan/internal/logging"
)

// runtime bundles what a command needs from configuration: a logger, the
// catalog service and the artifact store settings.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    core.PersistentStore
	service  *core.Service
	registry *prometheus.Registry
}

func openRuntime(ctx context.Context, configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}
	rt := &runtime{cfg: cfg, logger: logger}
	opts := []core.ServiceOption{core.WithLogger(logging.Adapt(logger))}
	switch cfg.Metrics.Backend {
	case "expvar":
		opts = append(opts, core.WithMetricsRecorder(core.NewExpvarMetricsRecorder("")))
	case "prometheus":
		rt.registry = prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(rt.registry)
		if err != nil {
			_ = logger.Sync()
			return nil, err
		}
		opts = append(opts, core.WithMetricsRecorder(rec))
	}
	store, err := core.OpenPersistentStore(ctx, core.StorageOptions{
		Driver:      core.StorageDriver(cfg.Storage.Driver),
		SQLitePath:  cfg.Storage.SQLitePath,
		PostgresDSN: cfg.Storage.PostgresDSN,
	}, nil)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	rt.store = store
	rt.service = core.NewService(store, opts...)
	logger.Debug("catalog opened", zap.String("driver", cfg.Storage.Driver))
	return rt, nil
}

func (rt *runtime) blobConfig() blob.Config {
	s3 := rt.cfg.Blob.S3
	return blob.Config{
		Driver: blob.Driver(rt.cfg.Blob.Driver),
		Root:   rt.cfg.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    s3.Bucket,
			Region:    s3.Region,
			Endpoint:  s3.Endpoint,
			Prefix:    s3.Prefix,
			PathStyle: s3.PathStyle,
		},
	}
}

// Close releases the catalog and flushes logs and metrics.
func (rt *runtime) Close() {
	if rt.registry != nil {
		if families, err := rt.registry.Gather(); err == nil {
			for _, mf := range families {
				rt.logger.Debug("metric", zap.String("name", mf.GetName()), zap.Int("series", len(mf.GetMetric())))
			}
		}
	}
	if closer, ok := rt.store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			rt.logger.Warn("close catalog", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}
