package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mstgnz/gomerchant/gateway"
	_ "github.com/mstgnz/gomerchant/gateway/all"
	"github.com/mstgnz/gomerchant/handler"
	"github.com/mstgnz/gomerchant/infra/config"
	"github.com/mstgnz/gomerchant/infra/logger"
	"github.com/mstgnz/gomerchant/infra/opensearch"
	"github.com/mstgnz/gomerchant/router"
	"github.com/spf13/cobra"
)

const cacheCleanupInterval = 15 * time.Minute

var (
	envFile string
	port    string
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  `Start the GoMerchant HTTP API. Configuration is read from the environment, optionally seeded from a .env file.`,
		RunE:  runServe,
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides APP_PORT)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load Env
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := config.GetAppConfig()
	if port != "" {
		cfg.Port = port
	}

	loggerConfig := logger.SystemLoggerConfig{
		EnableConsole: true,
		MinLevel:      logger.ParseLevel(cfg.LoggingLevel),
		Version:       version,
		Environment:   cfg.Environment,
	}
	sysLog := logger.InitGlobalLogger(nil, loggerConfig)

	// Initialize OpenSearch client and logger
	var (
		searchClient *opensearch.Client
		searchLogger *opensearch.Logger
	)
	if cfg.EnableOpenSearch {
		client, err := opensearch.NewClient(cfg, gateway.DefaultRegistry.Names())
		if err != nil {
			logger.Warn("Failed to initialize OpenSearch client, continuing without it", logger.LogContext{
				Fields: map[string]any{"error": err.Error()},
			})
		} else {
			searchClient = client
			searchLogger = opensearch.NewLogger(client)
			logger.Info("OpenSearch logging initialized")
		}
	}
	if searchLogger != nil && cfg.EnableSystemSink {
		sysLog = logger.InitGlobalLogger(searchLogger, loggerConfig)
	}
	defer func() { _ = sysLog.Sync() }()

	gateway.SetTransportDefaults(cfg.HTTPTimeout, cfg.HTTPRetryMax)

	box, err := config.NewSecretBox(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize encryption: %w", err)
	}
	if box == nil {
		logger.Warn("CONFIG_ENCRYPTION_KEY is not set, account credentials are stored unencrypted")
	}

	storage, err := config.NewSQLiteStorage(cfg.SQLitePath, box)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer storage.Close()

	accounts := config.NewAccountConfig(storage)
	cache := gateway.NewLRUCache(cfg.GatewayCacheSize, cfg.GatewayCacheTTL)

	txLoggers := []gateway.TransactionLogger{storage}
	if searchLogger != nil {
		txLoggers = append(txLoggers, searchLogger)
	}
	txlog := gateway.NewMultiLogger(txLoggers...)

	service := gateway.NewService(gateway.DefaultRegistry, accounts, cache, txlog)

	deps := router.Deps{
		Config:       cfg,
		Registry:     gateway.DefaultRegistry,
		Accounts:     accounts,
		Service:      service,
		Transactions: txlog,
		Health: handler.HealthOptions{
			Storage:     storage,
			Cache:       cache,
			DataPath:    storage.Path(),
			Version:     version,
			Environment: cfg.Environment,
		},
	}
	// interface fields stay nil unless OpenSearch is up
	if searchLogger != nil {
		deps.Stats = searchLogger
		deps.Health.Search = searchClient
	}

	if cfg.APIKey == "" {
		logger.Warn("API_KEY is not set, every /v1 request will be rejected")
	}

	h, stop := router.New(deps)
	defer stop()

	// Create a context that listens for interrupt and terminate signals
	ctx, cancelSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelSignals()

	go runCacheCleanup(ctx, cache)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           h,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      3 * time.Minute,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("API is running", logger.LogContext{Fields: map[string]any{
			"port":        cfg.Port,
			"environment": cfg.Environment,
			"gateways":    gateway.DefaultRegistry.Names(),
		}})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Block until a signal is received or the listener fails
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", err)
		return err
	}

	logger.Info("Server exited")
	return nil
}

func runCacheCleanup(ctx context.Context, cache *gateway.LRUCache) {
	ticker := time.NewTicker(cacheCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cache.Cleanup()
		}
	}
}
