package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"compass/internal/config"
	"compass/internal/constants"
	"compass/internal/dedup"
	"compass/internal/folder"
	"compass/internal/logger"
	"compass/internal/rules"
	"compass/internal/ruleset"
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
	mongoClient    *mongo.Client
	mongoDB        *mongo.Database
	redis          *redis.Client
	store          *ruleset.Store
	service        *folder.Service
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceFolder)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log, constants.ServiceFolder),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.RegisterFolderMetrics()
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

	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceFolder)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	a.initHTTPServer()
	return nil
}

func (a *App) initDatabase(ctx context.Context) error {
	client, db, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = client
	a.mongoDB = db

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		if a.Config.Dedup.OnRedisError == constants.FallbackFail {
			return err
		}
		a.Logger.WarnwCtx(ctx, "Redis unavailable, publishing without deduplication", "error", err)
		metrics.FallbackUsageTotal.WithLabelValues(constants.ServiceFolder, constants.FallbackAllow, "redis_connect").Inc()
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
	loc, err := config.Location(a.Config.Folder.Timezone)
	if err != nil {
		return fmt.Errorf("invalid folder timezone %q: %w", a.Config.Folder.Timezone, err)
	}

	repo := folder.NewRepository(a.mongoDB, a.Logger)
	a.store = ruleset.NewStore(repo, a.Config.Folder.Reload, a.breaker("folder-rules"), a.Logger, rules.CategoryFolder)

	if err := a.store.ReloadRules(ctx, true); err != nil {
		initCtx := logging.WithServiceName(ctx, constants.ServiceFolder)
		a.Logger.WarnwCtx(initCtx, "Failed to load initial rules",
			"error", err,
		)
	}

	ev, err := cel.NewEvaluator()
	if err != nil {
		return err
	}
	engine := folder.NewEngine(
		folder.WithConditions(ev),
		folder.WithClock(func() time.Time { return time.Now().In(loc) }),
	)

	var guard *dedup.Guard
	if a.redis != nil {
		store := dedup.NewRedisStore(a.redis, a.breaker("folder-dedup"))
		guard = dedup.NewGuard(store, a.Config.Dedup, constants.ServiceFolder, a.Logger)
	}

	a.service = folder.NewService(engine, a.store, a.Producer, guard, a.Config.Broker.Kafka.Topics.FolderRequests, a.Logger)
	return nil
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(a.Logger))

	healthRegistry := health.NewCheckerRegistry()
	healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
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

	topics := a.Config.Broker.Kafka.Topics
	g.Go(func() error {
		eventsCtx := logging.WithServiceName(gCtx, constants.ServiceFolder)
		a.Logger.InfowCtx(eventsCtx, "Starting taxonomy event consumer", "topic", topics.TaxonomyEvents)
		return a.Consumer.Consume(gCtx, topics.TaxonomyEvents, a.service.HandleTaxonomyEvent)
	})

	a.ConsumeConfigUpdates(gCtx, g, models.EventTypeFolderRulesUpdated, models.ServiceTypeFolder, a.store)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, constants.ServiceFolder)
	a.Logger.InfowCtx(shutdownCtx, "Shutting down folder service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, nil, a.mongoClient)...)
		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
