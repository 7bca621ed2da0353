package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"sales_service/api"
	"sales_service/internal/config"
	"sales_service/internal/notify"
	"sales_service/internal/sales"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Errorf("error loading config: %v", err))
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		panic(fmt.Errorf("error building logger: %v", err))
	}
	os.Exit(finish(logger, run(cfg, logger)))
}

// finish logs the outcome of run, flushes the logger and returns the exit code.
func finish(logger *zap.Logger, err error) int {
	defer func() { _ = logger.Sync() }()
	if err != nil {
		logger.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}

func run(cfg *config.Config, logger *zap.Logger) error {
	storage, err := openStorage(cfg.Storage)
	if err != nil {
		return err
	}

	var dispatcherOpts []sales.DispatcherOption
	if cfg.Events.IsolateHandlerFailures {
		dispatcherOpts = append(dispatcherOpts, sales.WithHandlerIsolation())
	}
	dispatcher := sales.NewDispatcher(logger.Named("dispatcher"), dispatcherOpts...)
	notify.Subscribe(dispatcher, notify.NewLogHandler(logger))

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metricsHandler, err := notify.NewMetricsHandler(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	notify.Subscribe(dispatcher, metricsHandler)

	validator := sales.NewValidator(cfg.Validation.AllowZeroUnitPrice)
	salesService := sales.NewService(storage, dispatcher, validator, logger.Named("sales"))

	if cfg.Log.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	api.InitRoutes(r, salesService, logger.Named("http"))
	if cfg.Metrics.Enabled {
		api.InitMetrics(r, cfg.Metrics.Path, registry)
	}

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("error trying to start server: %w", err)
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zcfg zap.Config
	switch strings.ToLower(cfg.Mode) {
	case "prod", "production":
		zcfg = zap.NewProductionConfig()
	default:
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}

func openStorage(cfg config.StorageConfig) (sales.Storage, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverMemory:
		return sales.NewLocalStorage(), nil
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	storage := sales.NewGormStorage(db)
	if err := storage.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return storage, nil
}
