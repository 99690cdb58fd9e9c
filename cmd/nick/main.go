package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mpalomaki/nick/internal/cache"
	"github.com/mpalomaki/nick/internal/config"
	"github.com/mpalomaki/nick/internal/database"
	"github.com/mpalomaki/nick/internal/documents"
	"github.com/mpalomaki/nick/internal/events"
	"github.com/mpalomaki/nick/internal/identities"
	"github.com/mpalomaki/nick/internal/links"
	"github.com/mpalomaki/nick/internal/server"
	"github.com/mpalomaki/nick/internal/training"
	"github.com/mpalomaki/nick/internal/translations"
	"github.com/mpalomaki/nick/pkg/apiutil"
	"github.com/mpalomaki/nick/pkg/logger"
	"github.com/mpalomaki/nick/pkg/metrics"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Create logger
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := logger.NewLogger(logLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zapLogger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(os.Getenv("NICK_CONFIG"))
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Tracing: stdout exporter is enough for a single-binary deployment
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		zapLogger.Fatal("Failed to create trace exporter", zap.Error(err))
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			zapLogger.Error("Failed to shut down tracer provider", zap.Error(err))
		}
	}()

	// Connect to the relational store
	var db *gorm.DB
	switch cfg.Database.Driver {
	case "sqlite":
		db, err = database.NewSQLiteDB(cfg.Database.DSN)
	default:
		db, err = database.NewPostgresDB(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime)
	}
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zapLogger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Optional register-list cache
	var listCache *cache.Cache
	if cfg.Redis.Enabled {
		listCache, err = cache.New(context.Background(), cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, zapLogger)
		if err != nil {
			zapLogger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer listCache.Close()
	}

	// Optional transition-event publisher
	var publisher *events.Publisher
	if cfg.Kafka.Enabled {
		publisher = events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, zapLogger)
		defer publisher.Close()
	}

	apiutil.RegisterValidators()

	// Create services
	identitiesSvc, err := identities.NewService(zapLogger, db, cfg.JWT.Secret, time.Duration(cfg.JWT.ExpirationHours)*time.Hour, cfg.JWT.Issuer)
	if err != nil {
		zapLogger.Fatal("Failed to create identities service", zap.Error(err))
	}

	documentsSvc, err := documents.NewService(zapLogger, db, listCache, publisher, identitiesSvc)
	if err != nil {
		zapLogger.Fatal("Failed to create documents service", zap.Error(err))
	}

	trainingSvc, err := training.NewService(zapLogger, db)
	if err != nil {
		zapLogger.Fatal("Failed to create training service", zap.Error(err))
	}

	translationsSvc, err := translations.NewService(zapLogger, db)
	if err != nil {
		zapLogger.Fatal("Failed to create translations service", zap.Error(err))
	}

	linksSvc, err := links.NewService(zapLogger, db)
	if err != nil {
		zapLogger.Fatal("Failed to create links service", zap.Error(err))
	}

	// Schedule DB pool metrics collection every 30s
	tickerDB := time.NewTicker(30 * time.Second)
	defer tickerDB.Stop()
	go func() {
		for range tickerDB.C {
			if sqlDB, err := db.DB(); err == nil {
				stats := sqlDB.Stats()
				metrics.DBOpenConns.WithLabelValues(cfg.Database.Driver).Set(float64(stats.OpenConnections))
				metrics.DBIdleConns.WithLabelValues(cfg.Database.Driver).Set(float64(stats.Idle))
				metrics.DBInUseConns.WithLabelValues(cfg.Database.Driver).Set(float64(stats.InUse))
			}
		}
	}()

	// Create API server
	apiServer := server.NewServer(zapLogger, cfg, identitiesSvc, documentsSvc, trainingSvc, translationsSvc, linksSvc)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      apiServer.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zapLogger.Info("Starting API server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	// Wait for interrupt to shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Forced shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited properly")
}
