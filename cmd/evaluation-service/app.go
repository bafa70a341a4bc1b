package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"compass/internal/config"
	"compass/internal/constants"
	"compass/internal/evaluation"
	"compass/internal/folder"
	"compass/internal/logger"
	"compass/internal/rules"
	"compass/internal/ruleset"
	"compass/internal/scheduler"
	"compass/pkg/bootstrap"
	"compass/pkg/cel"
	"compass/pkg/circuitbreaker"
	"compass/pkg/health"
	"compass/pkg/logging"
	"compass/pkg/metrics"
	"compass/pkg/middleware"
	"compass/pkg/ratelimit"
	"compass/pkg/tracing"
)

type App struct {
	config         *config.Config
	logger         logger.Logger
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	mongoClient    *mongo.Client
	store          *ruleset.Store
	server         *http.Server
	router         *gin.Engine
	tracerProvider *tracing.TracerProvider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceEvaluation)
	}
	return &App{
		config:      cfg,
		logger:      log,
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.RegisterEvaluationMetrics()
	if a.config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	tp, err := tracing.Init(a.config.Tracing, constants.ServiceEvaluation)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	loader, err := a.initDatabases(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	var cb *circuitbreaker.Wrapper
	if a.config.CircuitBreaker.Enabled {
		cb = circuitbreaker.NewWrapper(circuitbreaker.FromConfig("evaluation-rules", a.config.CircuitBreaker))
	}
	a.store = ruleset.NewStore(loader, a.config.Scheduler.Reload, cb, a.logger,
		rules.CategoryReminder, rules.CategoryRetention, rules.CategoryFolder)
	if err := a.store.ReloadRules(ctx, true); err != nil {
		a.logger.WarnwCtx(logging.WithServiceName(ctx, constants.ServiceEvaluation), "Failed to load initial rules",
			"error", err,
		)
	}

	if err := a.initRouter(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Server.Port),
		Handler: a.router,
	}
	if a.config.Server.ReadTimeoutSeconds > 0 {
		a.server.ReadTimeout = a.config.Server.ReadTimeoutSeconds * time.Second
	}
	if a.config.Server.WriteTimeoutSeconds > 0 {
		a.server.WriteTimeout = a.config.Server.WriteTimeoutSeconds * time.Second
	}
	return nil
}

// initDatabases connects whichever rule stores are configured. Reminder and
// retention rules live in Postgres, folder rules in MongoDB.
func (a *App) initDatabases(ctx context.Context) (ruleset.Loader, error) {
	var loaders []ruleset.Loader

	if a.config.Database.Postgres.Host != "" {
		db, err := a.dbConnector.InitPostgreSQL(ctx)
		if err != nil {
			return nil, err
		}
		a.db = db
		loaders = append(loaders, scheduler.NewRepository(db, a.logger))
	}

	if a.config.Database.MongoDB.URI != "" {
		initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		client, mongoDB, err := a.dbConnector.InitMongoDB(initCtx)
		if err != nil {
			return nil, err
		}
		a.mongoClient = client
		loaders = append(loaders, folder.NewRepository(mongoDB, a.logger))
	}

	if len(loaders) == 0 {
		return nil, fmt.Errorf("no rule store configured: set database.postgres.host or database.mongodb.uri")
	}
	return ruleset.Combine(loaders...), nil
}

func (a *App) initRouter(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceEvaluation))
	}

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RecoveryMiddleware(a.logger))
	router.Use(middleware.LoggerMiddleware(a.logger))
	router.Use(middleware.MetricsMiddleware())

	if a.config.Evaluation.RateLimit.Enabled {
		rateLimitConfig := ratelimit.FromConfig(a.config.Evaluation.RateLimit)
		router.Use(ratelimit.RateLimitMiddleware(ctx, rateLimitConfig))
		a.logger.InfowCtx(ctx, "Rate limiting enabled", "rps", rateLimitConfig.RPS, "burst", rateLimitConfig.Burst)
	}

	ev, err := cel.NewEvaluator()
	if err != nil {
		return err
	}
	loc, err := config.Location(a.config.Folder.Timezone)
	if err != nil {
		return fmt.Errorf("invalid folder timezone %q: %w", a.config.Folder.Timezone, err)
	}

	svc := evaluation.NewService(a.store, ev, evaluation.WithLocation(loc))
	evaluation.NewHandler(svc, a.logger).RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewFuncChecker("rules", a.store.Ready))
	if a.db != nil {
		healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}

	router.GET("/health", health.Handler(healthRegistry))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.router = router
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.InfowCtx(ctx, "Server listening", "port", a.config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.store.StartReloader(gCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.InfowCtx(ctx, "Shutting down server")

	var errs []error

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
		}
	}

	errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, nil, a.db, a.mongoClient)...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	a.logger.InfowCtx(ctx, "Server exited successfully")
	return nil
}
