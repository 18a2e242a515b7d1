package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medrex/clinic-portal/internal/cache"
	"github.com/medrex/clinic-portal/internal/gateway"
	"github.com/medrex/clinic-portal/internal/iam"
	"github.com/medrex/clinic-portal/internal/mockdata"
	rbacengine "github.com/medrex/clinic-portal/internal/rbac"
	"github.com/medrex/clinic-portal/pkg/config"
	"github.com/medrex/clinic-portal/pkg/database"
	"github.com/medrex/clinic-portal/pkg/encryption"
	"github.com/medrex/clinic-portal/pkg/logger"
	"github.com/medrex/clinic-portal/pkg/monitoring"
	"github.com/medrex/clinic-portal/pkg/rbac"
)

const serviceName = "portal-api"

var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	appLogger := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.WithError(err).Error("Portal API exited with error")
		os.Exit(1)
	}
	appLogger.Info("Portal API stopped")
}

func run(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) error {
	tracing, err := monitoring.NewTracingManager(ctx, monitoring.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       cfg.Tracing.Endpoint,
		Insecure:       cfg.Tracing.Insecure,
		Environment:    cfg.Tracing.Environment,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer shutdownTracing(tracing, appLogger)

	metrics := monitoring.NewMetricsCollector(serviceName)
	health := monitoring.NewHealthManager(serviceName, version)

	// Audit sinks
	audit, err := buildAuditSink(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	if audit.db != nil {
		defer audit.db.Close()
		health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(audit.db.DB))
	}

	// Cached request gateway
	store, err := buildStore(ctx, cfg, health)
	if err != nil {
		return err
	}

	data := cache.New(buildFetcher(cfg),
		cache.WithStore(store),
		cache.WithTTL(cfg.Cache.TTL()),
		cache.WithLogger(appLogger),
		cache.WithMetrics(metrics),
		cache.WithTracer(tracing.Tracer()),
	)
	defer data.Close()

	health.RegisterChecker("cache", monitoring.HealthCheckFunc(func(ctx context.Context) monitoring.HealthCheck {
		stats, err := data.Stats(ctx)
		if err != nil {
			return monitoring.HealthCheck{Status: monitoring.HealthStatusDegraded, Message: err.Error()}
		}
		return monitoring.HealthCheck{
			Status: monitoring.HealthStatusHealthy,
			Details: map[string]interface{}{
				"entries": stats.Entries,
				"hits":    stats.Hits,
				"misses":  stats.Misses,
				"fetches": stats.Fetches,
			},
		}
	}))

	// Identity and permission evaluation
	issuer := iam.NewTokenIssuer(cfg.JWT.SecretKey, cfg.JWT.Issuer, time.Duration(cfg.JWT.AccessTokenTTL)*time.Second, time.Now)
	authOpts := []iam.Option{
		iam.WithLogger(appLogger),
		iam.WithAuthRecorder(metrics),
	}
	if cfg.DataSource.Mode == config.DataSourceMock {
		authOpts = append(authOpts, iam.WithClinicResolver(mockdata.ClinicAssignments))
	}
	auth := iam.NewService(issuer, authOpts...)
	evaluator := rbacengine.NewEvaluator(
		rbacengine.WithAuditSink(audit.sink),
		rbacengine.WithDecisionRecorder(metrics),
		rbacengine.WithLogger(appLogger),
	)

	opts := []gateway.Option{
		gateway.WithLogger(appLogger),
		gateway.WithHealth(health),
		gateway.WithTracing(tracing),
	}
	if cfg.Monitoring.Enabled {
		opts = append(opts, gateway.WithMetrics(metrics))
	}
	if cfg.RateLimit.Enabled {
		limiter := gateway.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.BurstSize)
		limiter.StartCleanup(ctx, time.Minute, 10*time.Minute)
		opts = append(opts, gateway.WithRateLimiter(limiter))
	}
	if audit.trail != nil {
		opts = append(opts, gateway.WithAuditTrail(audit.trail))
	}

	service := gateway.NewService(gateway.Config{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		MetricsPath:  cfg.Monitoring.MetricsPath,
		HealthPath:   cfg.Monitoring.HealthPath,
	}, auth, evaluator, data, opts...)

	errCh := make(chan error, 1)
	go func() {
		errCh <- service.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	appLogger.Info("Shutting down portal API...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := service.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}
	return nil
}

// auditStack is the assembled audit sink plus the postgres pieces, which are
// nil unless the postgres sink is enabled
type auditStack struct {
	sink  rbac.AuditSink
	trail *rbacengine.PostgresAuditSink
	db    *database.DB
}

// buildAuditSink assembles the configured audit sinks. A non-nil db must be
// closed by the caller.
func buildAuditSink(ctx context.Context, cfg *config.Config, appLogger *logger.Logger) (*auditStack, error) {
	var sinks rbacengine.MultiAuditSink
	stack := &auditStack{}

	if cfg.Audit.HasSink(config.AuditSinkLog) {
		sinks = append(sinks, rbacengine.NewLogAuditSink(appLogger))
	}

	if cfg.Audit.HasSink(config.AuditSinkPostgres) {
		conn, err := database.NewConnection(ctx, &cfg.Database, appLogger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect audit database: %w", err)
		}

		pgSink := rbacengine.NewPostgresAuditSink(conn.DB, appLogger)
		if err := pgSink.EnsureSchema(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		sinks = append(sinks, pgSink)
		stack.trail = pgSink
		stack.db = conn
	}

	switch len(sinks) {
	case 0:
		stack.sink = rbacengine.NopAuditSink{}
	case 1:
		stack.sink = sinks[0]
	default:
		stack.sink = sinks
	}
	return stack, nil
}

func buildStore(ctx context.Context, cfg *config.Config, health *monitoring.HealthManager) (cache.Store, error) {
	// entries outlive the TTL by one window so stale keys are reclaimed lazily
	retention := 2 * cfg.Cache.TTL()

	switch cfg.Cache.Backend {
	case config.CacheBackendLRU:
		return cache.NewLRUStore(cfg.Cache.MaxEntries, retention)

	case config.CacheBackendRedis:
		client, err := cache.DialRedis(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize)
		if err != nil {
			return nil, err
		}
		var opts []cache.RedisOption
		if cfg.Cache.EncryptionKey != "" {
			cipher, err := encryption.NewAESEncryption(cfg.Cache.EncryptionKey)
			if err != nil {
				client.Close()
				return nil, err
			}
			opts = append(opts, cache.WithCipher(cipher))
		}

		store := cache.NewRedisStore(client, cfg.Cache.KeyPrefix, retention, opts...)
		health.RegisterChecker("redis", monitoring.NewPingHealthChecker(store, false))
		return store, nil

	default:
		return cache.NewMemoryStore(), nil
	}
}

func buildFetcher(cfg *config.Config) cache.Fetcher {
	if cfg.DataSource.Mode == config.DataSourceRemote {
		return cache.NewHTTPFetcher(cfg.DataSource.BaseURL, time.Duration(cfg.DataSource.TimeoutSeconds)*time.Second)
	}
	return mockdata.NewSource(time.Now)
}

func shutdownTracing(tracing *monitoring.TracingManager, appLogger *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Warn("Failed to flush traces")
	}
}
