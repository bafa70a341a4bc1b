package config

import (
	"errors"
	"fmt"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// checker accumulates every violation instead of stopping at the first.
type checker struct {
	errs []error
}

func (c *checker) require(ok bool, field, format string, args ...interface{}) {
	if !ok {
		c.errs = append(c.errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}
}

func (c *checker) port(field string, port int) {
	c.require(port >= 1 && port <= 65535, field, "port must be between 1 and 65535, got %d", port)
}

func (c *checker) oneOf(field, value string, allowed ...string) {
	if value == "" {
		return
	}
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return
		}
	}
	c.require(false, field, "invalid value %q (valid: %s)", value, strings.Join(allowed, ", "))
}

// ValidateStatic checks the parts of cfg that can be verified without
// connecting to anything.
func ValidateStatic(cfg *Config) error {
	c := &checker{}

	c.port("server.port", cfg.Server.Port)
	c.require(cfg.Server.ReadTimeoutSeconds > 0, "server.read_timeout_seconds", "read timeout must be positive")
	c.require(cfg.Server.WriteTimeoutSeconds > 0, "server.write_timeout_seconds", "write timeout must be positive")

	c.broker(cfg.Broker)
	c.database(cfg.Database)

	c.reload("scheduler", cfg.Scheduler.Reload)
	c.require(cfg.Scheduler.SweepIntervalSeconds > 0, "scheduler.sweep_interval_seconds", "sweep interval must be positive")
	c.require(cfg.Scheduler.HorizonDays >= 0, "scheduler.horizon_days", "horizon must be non-negative")
	c.require(cfg.Scheduler.Workers >= 1, "scheduler.workers", "at least one worker is required, got %d", cfg.Scheduler.Workers)
	c.timezone("scheduler.timezone", cfg.Scheduler.Timezone)

	c.reload("folder", cfg.Folder.Reload)
	c.timezone("folder.timezone", cfg.Folder.Timezone)

	c.require(cfg.Dedup.TTLSeconds >= 0, "dedup.ttl_seconds", "TTL must be non-negative")
	c.oneOf("dedup.on_redis_error", cfg.Dedup.OnRedisError, "allow", "fail")

	if rl := cfg.Evaluation.RateLimit; rl.Enabled {
		c.require(rl.RPS > 0, "evaluation.rate_limit.rps", "rps must be positive when rate limiting is enabled")
		c.require(rl.Burst >= 1, "evaluation.rate_limit.burst", "burst must be at least 1 when rate limiting is enabled")
	}

	if len(c.errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(c.errs...))
	}
	return nil
}

func (c *checker) broker(cfg BrokerConfig) {
	if cfg.Type != "kafka" {
		c.require(false, "broker.type", "unknown broker type %q (supported: kafka)", cfg.Type)
		return
	}

	k := cfg.Kafka
	c.require(len(k.Brokers) > 0, "broker.kafka.brokers", "at least one Kafka broker is required")
	for i, b := range k.Brokers {
		c.require(b != "", fmt.Sprintf("broker.kafka.brokers[%d]", i), "broker address cannot be empty")
	}
	c.require(k.GroupID != "", "broker.kafka.group_id", "Kafka consumer group ID is required")

	r := k.Retry
	c.require(r.MaxAttempts >= 0, "broker.kafka.retry.max_attempts", "max_attempts must be non-negative")
	c.require(r.InitialInterval >= 0, "broker.kafka.retry.initial_interval", "initial_interval must be non-negative")
	c.require(r.MaxInterval >= 0, "broker.kafka.retry.max_interval", "max_interval must be non-negative")
	c.require(r.MaxInterval == 0 || r.InitialInterval == 0 || r.MaxInterval >= r.InitialInterval,
		"broker.kafka.retry.max_interval", "max_interval must be greater than or equal to initial_interval")
	c.require(r.Multiplier > 0, "broker.kafka.retry.multiplier", "multiplier must be positive")
}

// database only checks stores that are configured; each service needs a
// different subset.
func (c *checker) database(cfg DatabaseConfig) {
	if pg := cfg.Postgres; pg.Host != "" || pg.Port > 0 {
		c.require(pg.Host != "", "database.postgres.host", "PostgreSQL host is required")
		c.port("database.postgres.port", pg.Port)
		c.require(pg.User != "", "database.postgres.user", "PostgreSQL user is required")
		c.require(pg.DBName != "", "database.postgres.dbname", "PostgreSQL database name is required")
		c.oneOf("database.postgres.sslmode", pg.SSLMode, "disable", "allow", "prefer", "require", "verify-ca", "verify-full")
	}

	if rd := cfg.Redis; rd.Host != "" || rd.Port > 0 {
		c.require(rd.Host != "", "database.redis.host", "Redis host is required")
		c.port("database.redis.port", rd.Port)
	}

	if m := cfg.MongoDB; m.URI != "" {
		c.require(strings.HasPrefix(m.URI, "mongodb://") || strings.HasPrefix(m.URI, "mongodb+srv://"),
			"database.mongodb.uri", "MongoDB URI must start with mongodb:// or mongodb+srv://")
		c.require(m.Database != "", "database.mongodb.database", "MongoDB database name is required")
	}
}

func (c *checker) reload(prefix string, cfg ReloadConfig) {
	c.require(cfg.IntervalSeconds > 0, prefix+".reload.interval_seconds", "reload interval must be positive")
	c.require(cfg.JitterMaxMilliseconds >= 0, prefix+".reload.jitter_max_milliseconds", "jitter must be non-negative")
}

func (c *checker) timezone(field, name string) {
	_, err := Location(name)
	c.require(err == nil, field, "unknown timezone %q", name)
}
