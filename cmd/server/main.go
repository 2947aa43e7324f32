// Package main provides the entry point for the POS backend.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/TusharKoshti-1/Qr-System/internal/auth"
	"github.com/TusharKoshti-1/Qr-System/internal/broadcast"
	"github.com/TusharKoshti-1/Qr-System/internal/config"
	"github.com/TusharKoshti-1/Qr-System/internal/datastore"
	apperrors "github.com/TusharKoshti-1/Qr-System/internal/errors"
	"github.com/TusharKoshti-1/Qr-System/internal/handler"
	"github.com/TusharKoshti-1/Qr-System/internal/health"
	"github.com/TusharKoshti-1/Qr-System/internal/idempotency"
	"github.com/TusharKoshti-1/Qr-System/internal/metrics"
	"github.com/TusharKoshti-1/Qr-System/internal/server"
	"github.com/TusharKoshti-1/Qr-System/internal/store"
	"github.com/TusharKoshti-1/Qr-System/internal/tenant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "path to config file")
	printConfig := flag.Bool("print-config", false, "print the effective configuration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if *printConfig {
		out, err := cfg.YAML()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to render configuration: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(out)
		return
	}

	// Initialize logger
	logger := initLogger(cfg.Logging)
	defer logger.Sync()

	logger.Info("starting POS backend",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("control_plane", fmt.Sprintf("%s:%d/%s", cfg.ControlPlane.Host, cfg.ControlPlane.Port, cfg.ControlPlane.Database)),
		zap.Bool("redis_relay", cfg.Broadcast.Redis.Enabled),
	)

	// Initialize metrics
	m := metrics.NewMetrics()

	// Control plane
	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.ControlPlane.DialTimeout)
	db, err := store.OpenControlPlane(startCtx, cfg.ControlPlane)
	cancelStart()
	if err != nil {
		logger.Fatal("failed to connect to control plane", zap.Error(err))
	}

	registryStore := store.NewMySQLRegistryStore(db, logger)
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), cfg.ControlPlane.DialTimeout)
	err = registryStore.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		logger.Fatal("failed to migrate control plane", zap.Error(err))
	}

	cache := store.NewInMemoryCache(cfg.Registry.CacheMaxSize, cfg.Registry.CacheTTL, logger)
	registry := tenant.NewRegistry(
		registryStore,
		cache,
		tenant.NewSchemaProvisioner(db, logger),
		tenant.Options{CacheTTL: cfg.Registry.CacheTTL, BcryptCost: cfg.Registry.BcryptCost},
		m,
		logger,
	)

	// Per-restaurant connection pools
	router := datastore.NewRouter(store.MySQLConfig(cfg.ControlPlane, ""), datastore.Config{
		MaxOpenConns:    cfg.TenantPool.MaxOpenConns,
		MaxIdleConns:    cfg.TenantPool.MaxIdleConns,
		ConnMaxLifetime: cfg.TenantPool.ConnMaxLifetime,
		AcquireTimeout:  cfg.TenantPool.AcquireTimeout,
		IdleTTL:         cfg.TenantPool.IdleTTL,
	}, nil, m, logger)

	// Live events
	hub := broadcast.NewHub(broadcast.Options{
		SendTimeout:       cfg.Broadcast.SendTimeout,
		BufferSize:        cfg.Broadcast.BufferSize,
		HeartbeatInterval: cfg.Broadcast.HeartbeatInterval,
	}, m, logger)

	var publisher broadcast.Publisher = hub
	checks := map[string]health.Pinger{"control_plane": registry}

	var (
		relay   *broadcast.Relay
		replays handler.ResponseCache
	)
	if cfg.Broadcast.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Broadcast.Redis.Addr,
			Password: cfg.Broadcast.Redis.Password,
			DB:       cfg.Broadcast.Redis.DB,
		})
		defer redisClient.Close()

		relay = broadcast.NewRelay(redisClient, hub, broadcast.RelayOptions{
			ChannelPrefix: cfg.Broadcast.Redis.ChannelPrefix,
			QueueSize:     cfg.Broadcast.Redis.QueueSize,
		}, m, logger)

		relayCtx, cancelRelay := context.WithTimeout(context.Background(), cfg.ControlPlane.DialTimeout)
		err = relay.Start(relayCtx)
		cancelRelay()
		if err != nil {
			logger.Fatal("failed to start event relay", zap.Error(err))
		}
		publisher = relay
		checks["redis"] = relay

		if cfg.Idempotency.Enabled {
			replays = idempotency.NewStore(redisClient, idempotency.Options{
				KeyPrefix: cfg.Idempotency.KeyPrefix,
				TTL:       cfg.Idempotency.TTL,
			}, m, logger)
		}
	}

	healthCheck := health.NewHealthCheck(checks, m, logger)
	healthCheck.Start()

	handlers := handler.NewHandlers(registry, router, publisher, hub,
		apperrors.NewHandler(logger), logger,
		handler.Options{
			WriteTimeout:   cfg.Server.RequestTimeout,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			Replays:        replays,
			WebURL:         cfg.QR.WebURL,
			QRSize:         cfg.QR.Size,
		})
	tokens := auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)

	// Start metrics server if enabled
	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
		logger.Info("metrics server started",
			zap.Int("port", cfg.Metrics.Port),
			zap.String("path", cfg.Metrics.Path),
		)
	}

	// Initialize HTTP server
	httpServer := server.NewServer(cfg, handlers, healthCheck, tokens, m, logger)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- err
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errChan:
		logger.Error("server error", zap.Error(err))
	}

	// Graceful shutdown
	logger.Info("initiating graceful shutdown")
	healthCheck.MarkShuttingDown()
	healthCheck.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown HTTP server", zap.Error(err))
	}

	if err := hub.Close(ctx); err != nil {
		logger.Error("failed to close broadcast hub", zap.Error(err))
	}

	if relay != nil {
		if err := relay.Stop(cfg.Server.ShutdownTimeout); err != nil {
			logger.Error("failed to stop event relay", zap.Error(err))
		}
	}

	if err := router.Close(); err != nil {
		logger.Error("failed to close datastore pools", zap.Error(err))
	}

	cache.Close()
	if err := registryStore.Close(); err != nil {
		logger.Error("failed to close control plane", zap.Error(err))
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown metrics server", zap.Error(err))
		}
	}

	logger.Info("POS backend shutdown complete")
}

// initLogger initializes the zap logger.
func initLogger(cfg config.LoggingConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stdout"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		// Fallback to basic logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
