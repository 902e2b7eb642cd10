// Package bootstrap wires configuration into a running store and the
// shared observability collaborators.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"kindling/internal/config"
	"kindling/internal/featureflags"
	"kindling/internal/observability"
	"kindling/internal/store"
	"kindling/internal/store/gormstore"
	"kindling/internal/store/redisstore"
)

// Runtime holds the initialized process-wide collaborators.
type Runtime struct {
	Store  store.Store
	Flags  *featureflags.Manager
	Logger *slog.Logger

	shutdownTracing func(context.Context) error
}

// InitRuntime initializes logging and tracing and opens the configured
// store adapter.
func InitRuntime(cfg *config.Config) (*Runtime, error) {
	logger := observability.InitLogging(cfg.Env)

	shutdown, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  "kindling",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: cfg.TracingSampler,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing initialization failed: %w", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("store initialization failed: %w", err)
	}
	logger.Info("store opened", "driver", cfg.StoreDriver)

	return &Runtime{
		Store:           st,
		Flags:           featureflags.NewManager(cfg.FeatureFlags),
		Logger:          logger,
		shutdownTracing: shutdown,
	}, nil
}

// Shutdown flushes pending traces. Call it on process exit.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r.shutdownTracing == nil {
		return nil
	}
	return r.shutdownTracing(ctx)
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "redis":
		return redisstore.Open(cfg.RedisURL), nil
	case "postgres":
		return gormstore.OpenPostgres(cfg.DatabaseDSN)
	default:
		return gormstore.OpenSQLite(cfg.DatabaseDSN)
	}
}
