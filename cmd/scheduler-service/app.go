package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"compass/internal/config"
	"compass/internal/constants"
	"compass/internal/dedup"
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
	"compass/pkg/models"
	"compass/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redis          *redis.Client
	store          *ruleset.Store
	service        *scheduler.Service
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceScheduler)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log, constants.ServiceScheduler),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.RegisterSchedulerMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.InitBroker(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	if err := a.initService(ctx); err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceScheduler)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	a.initHTTPServer()
	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		if a.Config.Dedup.OnRedisError == constants.FallbackFail {
			return err
		}
		a.Logger.WarnwCtx(ctx, "Redis unavailable, publishing without deduplication", "error", err)
		metrics.FallbackUsageTotal.WithLabelValues(constants.ServiceScheduler, constants.FallbackAllow, "redis_connect").Inc()
	}
	a.redis = rdb
	return nil
}

func (a *App) breaker(name string) *circuitbreaker.Wrapper {
	if !a.Config.CircuitBreaker.Enabled {
		return nil
	}
	return circuitbreaker.NewWrapper(circuitbreaker.FromConfig(name, a.Config.CircuitBreaker))
}

func (a *App) initService(ctx context.Context) error {
	repo := scheduler.NewRepository(a.db, a.Logger)
	a.store = ruleset.NewStore(repo, a.Config.Scheduler.Reload, a.breaker("scheduler-rules"), a.Logger,
		rules.CategoryReminder, rules.CategoryRetention)

	if err := a.store.ReloadRules(ctx, true); err != nil {
		initCtx := logging.WithServiceName(ctx, constants.ServiceScheduler)
		a.Logger.WarnwCtx(initCtx, "Failed to load initial rules",
			"error", err,
		)
	}

	opts := []scheduler.Option{}
	if a.redis != nil {
		store := dedup.NewRedisStore(a.redis, a.breaker("scheduler-dedup"))
		opts = append(opts, scheduler.WithGuard(dedup.NewGuard(store, a.Config.Dedup, constants.ServiceScheduler, a.Logger)))
	}

	ev, err := cel.NewEvaluator()
	if err != nil {
		return err
	}
	opts = append(opts, scheduler.WithConditions(ev))

	svc, err := scheduler.NewService(repo, a.store, a.Producer, a.Config.Scheduler, a.Config.Broker.Kafka.Topics, a.Logger, opts...)
	if err != nil {
		return err
	}
	a.service = svc
	return nil
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(a.Logger))

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewPostgreSQLChecker(a.db))
	healthRegistry.Register(health.NewFuncChecker("rules", a.store.Ready))
	if a.redis != nil {
		redisCheck := health.NewRedisChecker(a.redis)
		if a.Config.Dedup.OnRedisError != constants.FallbackFail {
			redisCheck.AsOptional()
		}
		healthRegistry.Register(redisCheck)
	}

	router.GET("/health", health.Handler(healthRegistry))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: router,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
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

	g.Go(func() error {
		return a.service.StartSweeper(gCtx)
	})

	topics := a.Config.Broker.Kafka.Topics
	g.Go(func() error {
		reportsCtx := logging.WithServiceName(gCtx, constants.ServiceScheduler)
		a.Logger.InfowCtx(reportsCtx, "Starting execution report consumer", "topic", topics.ExecutionReports)
		return a.Consumer.Consume(gCtx, topics.ExecutionReports, a.service.HandleExecutionReport)
	})

	a.ConsumeConfigUpdates(gCtx, g, models.EventTypeScheduleRulesUpdated, models.ServiceTypeScheduler, a.store)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceScheduler)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down scheduler service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.db, nil)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
