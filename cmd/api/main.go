package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"

	"github.com/harmonia-app/harmonia/config"
	"github.com/harmonia-app/harmonia/internal/handlers"
	"github.com/harmonia-app/harmonia/pkg/completion"
	"github.com/harmonia-app/harmonia/pkg/database"
	"github.com/harmonia-app/harmonia/pkg/health"
	"github.com/harmonia-app/harmonia/pkg/kafka"
	"github.com/harmonia-app/harmonia/pkg/mediation"
	"github.com/harmonia-app/harmonia/pkg/middleware"
	"github.com/harmonia-app/harmonia/pkg/repositories"
	"github.com/harmonia-app/harmonia/pkg/services"
	"github.com/harmonia-app/harmonia/pkg/startup"
	"github.com/harmonia-app/harmonia/pkg/storage"
	"github.com/harmonia-app/harmonia/pkg/tracing"
	"github.com/harmonia-app/harmonia/pkg/tracing/exporters"
)

// dependency adapts a pair of functions to startup.StartupDependency.
type dependency struct {
	name      string
	dependsOn []string
	start     func(ctx context.Context) error
	stop      func(ctx context.Context) error
}

func (d *dependency) GetName() string    { return d.name }
func (d *dependency) DependsOn() []string { return d.dependsOn }
func (d *dependency) Start(ctx context.Context) error {
	if d.start == nil {
		return nil
	}
	return d.start(ctx)
}
func (d *dependency) Stop(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	return d.stop(ctx)
}

func main() {
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLogger, err := newZapLogger(cfg)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck
	logger := zapadapter.NewZapEctoLogger(zapLogger, nil)

	ctx := context.Background()

	shutdownTracing, err := tracing.InitProvider(ctx, tracing.ProviderConfig{
		ServiceName: cfg.AppName,
		Enabled:     cfg.TracingEnabled,
		OTLP: exporters.OTLPConfig{
			Endpoint: cfg.TracingOTLPEndpoint,
			Protocol: cfg.TracingOTLPProtocol,
			Insecure: cfg.TracingOTLPInsecure,
			Timeout:  10 * time.Second,
		},
	})
	if err != nil {
		logger.WithError(err).Error("failed to initialize tracing")
		os.Exit(1)
	}

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DatabaseHost, cfg.DatabasePort, cfg.DatabaseUserName, cfg.DatabasePassword,
		cfg.DatabaseName, cfg.DatabaseSSLMode)

	sqlxDB, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		logger.WithError(err).Error("failed to connect to database")
		os.Exit(1)
	}
	sqlxDB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	sqlxDB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)

	db := database.NewDatabaseInstance(sqlxDB, logger)

	var avatarStore *storage.AvatarStore
	avatarStore, err = storage.NewAvatarStore(storage.Config{
		Endpoint:  cfg.StorageEndpoint,
		Region:    cfg.StorageRegion,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		UseSSL:    cfg.StorageUseSSL,
		PublicURL: cfg.StoragePublicURL,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to create avatar store")
		os.Exit(1)
	}

	var producer *kafka.Producer
	if cfg.KafkaEnabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      strings.Split(cfg.KafkaBrokers, ","),
			Topic:        cfg.KafkaAnalysisTopic,
			BatchSize:    cfg.KafkaBatchSize,
			BatchTimeout: cfg.KafkaBatchTimeout,
			RequiredAcks: cfg.KafkaRequiredAcks,
			Compression:  cfg.KafkaCompression,
		}, logger)
	}

	characterRepo := repositories.NewCharacterRepository(db, logger)
	eventRepo := repositories.NewEventRepository(db, logger)
	analysisRepo := repositories.NewAnalysisRepository(db, logger)

	completionClient := completion.NewClient(completion.Config{
		BaseURL: cfg.CompletionBaseURL,
		APIKey:  cfg.CompletionAPIKey,
		Timeout: cfg.CompletionTimeout,
	}, logger)

	var publisher mediation.Publisher
	if producer != nil {
		publisher = producer
	}

	orchestrator := mediation.NewOrchestrator(
		characterRepo,
		analysisRepo,
		eventRepo,
		mediation.NewCompletionGenerator(completionClient),
		publisher,
		mediation.Config{
			Model:   cfg.CompletionModel,
			Timeout: cfg.CompletionTimeout,
		},
		logger,
	)

	eventService := services.NewEventService(eventRepo, characterRepo, analysisRepo, orchestrator, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker := health.NewChecker(db, cfg.Version)
	checker.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	if cfg.AuthEnabled {
		auth, err := middleware.Authentication(logger, cfg.AuthIssuerURL, cfg.AuthClientID)
		if err != nil {
			logger.WithError(err).Error("failed to configure authentication")
			os.Exit(1)
		}
		api.Use(auth)
	} else {
		logger.Warn("authentication is disabled, using X-User-ID test auth")
		api.Use(middleware.TestAuth())
	}

	handlers.NewCharacterHandler(characterRepo).RegisterRoutes(api)
	handlers.NewProfileHandler(characterRepo).RegisterRoutes(api)
	handlers.NewEventHandler(eventService).RegisterRoutes(api)
	handlers.NewUploadHandler(characterRepo, avatarStore).RegisterRoutes(api)

	boot := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(&dependency{
		name:  "database",
		start: db.PingContext,
		stop: func(context.Context) error {
			return db.Close()
		},
	})
	boot.AddDependency(&dependency{
		name:      "migrations",
		dependsOn: []string{"database"},
		start: func(context.Context) error {
			driver, err := migratepg.WithInstance(sqlxDB.DB, &migratepg.Config{})
			if err != nil {
				return err
			}
			return database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			}).Migrate(cfg.DatabaseName, driver)
		},
	})
	boot.AddDependency(&dependency{
		name:      "storage",
		dependsOn: []string{"database"},
		start:     avatarStore.EnsureBucket,
	})

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("startup failed")
		os.Exit(1)
	}
	checker.SetReady(true)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.Infof("Starting %s on %s", cfg.AppName, addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server stopped unexpectedly")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("failed to shut down server cleanly")
	}

	// let in-flight analysis runs finish before closing their collaborators
	if err := orchestrator.Drain(shutdownCtx); err != nil {
		logger.WithError(err).Warn("timed out waiting for analysis runs to drain")
	}

	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		}
	}

	if err := boot.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("failed to stop dependencies cleanly")
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.WithError(err).Warn("failed to shut down tracing")
	}
}

func newZapLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.PrettyLogs {
		return zap.NewDevelopment()
	}

	zapCfg := zap.NewProductionConfig()
	if err := zapCfg.Level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return zapCfg.Build()
}
