package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/querypad/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/querypad/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/querypad/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/querypad/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/querypad/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/querypad/pkg/auth"
	"github.com/ekaya-inc/querypad/pkg/config"
	"github.com/ekaya-inc/querypad/pkg/crypto"
	"github.com/ekaya-inc/querypad/pkg/database"
	"github.com/ekaya-inc/querypad/pkg/handlers"
	"github.com/ekaya-inc/querypad/pkg/logging"
	"github.com/ekaya-inc/querypad/pkg/middleware"
	"github.com/ekaya-inc/querypad/pkg/repositories"
	"github.com/ekaya-inc/querypad/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if flag.Arg(0) == "encrypt" {
		if err := encryptCommand(flag.Args()[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "encrypt: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configPath, Version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

// encryptCommand prints an "enc:" value for the connections file.
// Usage: querypad encrypt <plaintext>, with CREDENTIALS_KEY set.
func encryptCommand(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: querypad encrypt <plaintext>")
	}
	encryptor, err := crypto.NewCredentialEncryptor(os.Getenv("CREDENTIALS_KEY"))
	if err != nil {
		return fmt.Errorf("CREDENTIALS_KEY: %w", err)
	}
	value, err := encryptor.Encrypt(args[0])
	if err != nil {
		return err
	}
	fmt.Println(value)
	return nil
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("connections_file", cfg.ConnectionsFile))

	drivers := datasource.Default()

	conns, err := config.LoadConnections(cfg.ConnectionsFile)
	if err != nil {
		return err
	}
	var encryptor *crypto.CredentialEncryptor
	if cfg.CredentialsKey != "" {
		if encryptor, err = crypto.NewCredentialEncryptor(cfg.CredentialsKey); err != nil {
			return fmt.Errorf("invalid CREDENTIALS_KEY: %w", err)
		}
	}
	connections, err := repositories.NewConnectionRepository(conns, drivers, encryptor)
	if err != nil {
		return err
	}
	logger.Info("Connections loaded", zap.Int("count", len(conns)))

	var (
		schemaCache repositories.SchemaCacheRepository
		resultCache repositories.ResultCacheRepository
	)
	readiness := map[string]handlers.ReadinessCheck{
		"export_dir": handlers.DirCheck(cfg.Cache.Dir),
	}
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		redisClient, err := database.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		if redisClient == nil {
			return errors.New("cache.backend is redis but redis.host is empty")
		}
		defer redisClient.Close()
		schemaCache = repositories.NewRedisSchemaCacheRepository(redisClient)
		resultCache = repositories.NewRedisResultCacheRepository(redisClient)
		readiness["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		logger.Info("Using Redis cache", zap.String("addr", cfg.Redis.Addr()))
	default:
		schemaCache = repositories.NewMemorySchemaCacheRepository()
		resultCache = repositories.NewMemoryResultCacheRepository()
	}

	exporter, err := services.NewResultExporter(cfg.Cache.Dir, logger)
	if err != nil {
		return err
	}

	scheduler := services.NewScheduler()
	deps := services.ClientDeps{
		Drivers:           drivers,
		Scheduler:         scheduler,
		Logger:            logger,
		KeepAliveTimeout:  cfg.Clients.KeepAliveTimeout,
		CleanupInterval:   cfg.Clients.CleanupInterval,
		InactivityTimeout: cfg.Clients.InactivityTimeout,
	}
	registry := services.NewConnectionClientRegistry(deps)

	clientService := services.NewConnectionClientService(connections, registry, cfg.Query.MaxRows, logger)
	schemaService := services.NewSchemaInfoService(connections, schemaCache, deps, cfg.Cache.SchemaExpiry)
	resultService := services.NewQueryResultService(connections, registry, resultCache, exporter, deps, services.QueryResultOptions{
		DefaultMaxRows: cfg.Query.MaxRows,
		ResultTTL:      cfg.Cache.ResultTTL,
		AllowDownloads: cfg.Cache.AllowDownloads,
	})

	sweeper := services.NewResultCacheSweeper(resultCache, exporter, scheduler, cfg.Cache.SweepInterval, time.Now, logger)
	sweeper.Start()
	defer sweeper.Stop()

	var authService auth.AuthService
	if cfg.Auth.EnableVerification {
		authService = auth.NewAuthService(cfg.Auth.JWTSecret, logger)
	} else {
		logger.Warn("Auth verification disabled; every request runs as the local admin")
		authService = auth.NewLocalAuthService()
	}
	authMiddleware := auth.NewMiddleware(authService, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, func() int { return len(registry.FindAll()) }, readiness, logger).RegisterRoutes(mux)
	handlers.NewDriversHandler(drivers, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewConnectionClientsHandler(clientService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewSchemaInfoHandler(schemaService, logger).RegisterRoutes(mux, authMiddleware)
	handlers.NewQueryResultHandler(resultService, logger).RegisterRoutes(mux, authMiddleware)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting querypad",
			zap.String("addr", server.Addr),
			zap.Bool("tls", cfg.TLSCertPath != ""),
			zap.String("version", cfg.Version))
		if cfg.TLSCertPath != "" {
			serveErr <- server.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			serveErr <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", zap.Error(err))
	}
	registry.Close(shutdownCtx)
	logger.Info("Shutdown complete")
	return nil
}
