package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_sweep_runs_total",
			Help: "Total number of scheduler sweeps (count)",
		},
		[]string{"status"},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_sweep_duration_ms",
			Help:    "Duration of a full scheduler sweep in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
	)

	ScheduledEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_events_total",
			Help: "Total number of scheduled events computed by the sweep (count)",
		},
		[]string{"kind", "status"},
	)

	SweepTargetFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_target_failures_total",
			Help: "Total number of targets whose evaluation failed during a sweep (count)",
		},
		[]string{"kind", "reason"},
	)

	RuleTiesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rule_resolution_ties_total",
			Help: "Total number of resolutions where several rules shared the winning scope (count)",
		},
		[]string{"category"},
	)

	ActiveRules = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_rules",
			Help: "Number of active rules in the current snapshot (count)",
		},
		[]string{"category"},
	)

	RetentionExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_executions_recorded_total",
			Help: "Total number of retention execution reports recorded (count)",
		},
		[]string{"action", "status"},
	)

	FolderEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folder_events_total",
			Help: "Total number of taxonomy events processed by the folder service (count)",
		},
		[]string{"event_type", "status"},
	)

	FolderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "folder_requests_total",
			Help: "Total number of folder creation requests by outcome (count)",
		},
		[]string{"status"},
	)

	FolderProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "folder_processing_duration_ms",
			Help:    "Processing duration of one taxonomy event in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"event_type"},
	)

	DedupChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dedup_checks_total",
			Help: "Total number of publication dedup checks (count)",
		},
		[]string{"result"},
	)

	EvaluationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluation_requests_total",
			Help: "Total number of evaluation API requests (count)",
		},
		[]string{"endpoint", "status"},
	)

	EvaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "evaluation_duration_ms",
			Help:    "Evaluation API handler duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"endpoint"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)

	SkippedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skipped_records_total",
			Help: "Total number of stored rows left out of a load because they could not be decoded (count)",
		},
		[]string{"service", "kind"},
	)

	DatabaseQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "database_query_duration_ms",
			Help:    "Duration of database queries in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"service", "database", "operation"},
	)
)

var (
	fallbackOnce sync.Once
	databaseOnce sync.Once
)

func RegisterSchedulerMetrics() {
	prometheus.MustRegister(SweepRunsTotal)
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(ScheduledEventsTotal)
	prometheus.MustRegister(SweepTargetFailuresTotal)
	prometheus.MustRegister(RuleTiesTotal)
	prometheus.MustRegister(ActiveRules)
	prometheus.MustRegister(RetentionExecutionsTotal)
	prometheus.MustRegister(DedupChecksTotal)
	registerFallbackUsageTotalOnce()
	registerDatabaseMetricsOnce()
}

func RegisterFolderMetrics() {
	prometheus.MustRegister(FolderEventsTotal)
	prometheus.MustRegister(FolderRequestsTotal)
	prometheus.MustRegister(FolderProcessingDuration)
	prometheus.MustRegister(RuleTiesTotal)
	prometheus.MustRegister(ActiveRules)
	prometheus.MustRegister(DedupChecksTotal)
	registerFallbackUsageTotalOnce()
	registerDatabaseMetricsOnce()
}

func RegisterEvaluationMetrics() {
	prometheus.MustRegister(EvaluationRequestsTotal)
	prometheus.MustRegister(EvaluationDuration)
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(ActiveRules)
	registerDatabaseMetricsOnce()
}

func registerFallbackUsageTotalOnce() {
	fallbackOnce.Do(func() {
		prometheus.MustRegister(FallbackUsageTotal)
	})
}

func registerDatabaseMetricsOnce() {
	databaseOnce.Do(func() {
		prometheus.MustRegister(DatabaseQueriesTotal)
		prometheus.MustRegister(DatabaseQueryDuration)
		prometheus.MustRegister(SkippedRecordsTotal)
	})
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveSweepDuration(duration time.Duration) {
	SweepDuration.Observe(float64(duration.Milliseconds()))
}

func ObserveFolderDuration(eventType string, duration time.Duration) {
	FolderProcessingDuration.WithLabelValues(eventType).Observe(float64(duration.Milliseconds()))
}

func ObserveEvaluationDuration(endpoint string, duration time.Duration) {
	EvaluationDuration.WithLabelValues(endpoint).Observe(float64(duration.Milliseconds()))
}

func SetActiveRules(category string, count int) {
	ActiveRules.WithLabelValues(category).Set(float64(count))
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func IncSkippedRecord(service, kind string) {
	SkippedRecordsTotal.WithLabelValues(service, kind).Inc()
}

func ObserveDatabaseQueryDuration(service, database, operation string, duration time.Duration) {
	DatabaseQueryDuration.WithLabelValues(service, database, operation).Observe(float64(duration.Milliseconds()))
}
