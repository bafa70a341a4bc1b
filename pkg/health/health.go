package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

const checkTimeout = 5 * time.Second

type Checker interface {
	Check(ctx context.Context) error
	Name() string
}

// OptionalChecker marks a dependency whose failure degrades the service
// instead of making it unhealthy.
type OptionalChecker interface {
	Checker
	Optional() bool
}

type Health struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status    Status    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
}

type CheckerRegistry struct {
	checkers []Checker
}

func NewCheckerRegistry() *CheckerRegistry {
	return &CheckerRegistry{}
}

func (r *CheckerRegistry) Register(checker Checker) {
	r.checkers = append(r.checkers, checker)
}

// Check runs every checker concurrently, each bounded by checkTimeout.
func (r *CheckerRegistry) Check(ctx context.Context) Health {
	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(r.checkers))
		g       errgroup.Group
	)

	for _, checker := range r.checkers {
		g.Go(func() error {
			res := run(ctx, checker)
			mu.Lock()
			results[checker.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	for _, res := range results {
		switch {
		case res.Status == StatusUnhealthy:
			overall = StatusUnhealthy
		case res.Status == StatusDegraded && overall == StatusHealthy:
			overall = StatusDegraded
		}
	}

	return Health{Status: overall, Timestamp: time.Now(), Checks: results}
}

func run(ctx context.Context, checker Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := checker.Check(ctx)
	res := CheckResult{
		Status:    StatusHealthy,
		LatencyMS: time.Since(start).Milliseconds(),
		Timestamp: time.Now(),
	}
	if err == nil {
		return res
	}

	res.Message = err.Error()
	res.Status = StatusUnhealthy
	if opt, ok := checker.(OptionalChecker); ok && opt.Optional() {
		res.Status = StatusDegraded
	}
	return res
}

// FuncChecker adapts a function, e.g. "rule snapshot loaded", to Checker.
type FuncChecker struct {
	name     string
	fn       func(ctx context.Context) error
	optional bool
}

func NewFuncChecker(name string, fn func(ctx context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) AsOptional() *FuncChecker {
	c.optional = true
	return c
}

func (c *FuncChecker) Name() string {
	return c.name
}

func (c *FuncChecker) Check(ctx context.Context) error {
	return c.fn(ctx)
}

func (c *FuncChecker) Optional() bool {
	return c.optional
}

func pingChecker(name string, ping func(ctx context.Context) error) *FuncChecker {
	return NewFuncChecker(name, func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
		return nil
	})
}

func NewPostgreSQLChecker(db *sql.DB) *FuncChecker {
	return pingChecker("postgresql", db.PingContext)
}

func NewRedisChecker(client *redis.Client) *FuncChecker {
	return pingChecker("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
}

func NewMongoDBChecker(client *mongo.Client) *FuncChecker {
	return pingChecker("mongodb", func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	})
}

// Handler serves the registry as JSON: 200 unless unhealthy, then 503.
func Handler(registry *CheckerRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := registry.Check(c.Request.Context())
		status := http.StatusOK
		if h.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	}
}
