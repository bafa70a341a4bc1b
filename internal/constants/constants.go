package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	ServiceScheduler  = "scheduler-service"
	ServiceFolder     = "folder-service"
	ServiceEvaluation = "evaluation-service"
)

// Event types carried in envelope metadata.
const (
	EventReminderScheduled  = "reminder.scheduled"
	EventRetentionScheduled = "retention.scheduled"
	EventFolderRequested    = "folder.create_requested"
	EventRetentionExecuted  = "retention.executed"
)

const (
	FallbackAllow = "allow"
	FallbackFail  = "fail"
)

const (
	DefaultMongoDBName = "compass"
)

const (
	// MaxPreviewOccurrences caps how many retention executions the
	// evaluation API chains in one request.
	MaxPreviewOccurrences = 50
	MaxBatchTargets       = 500
)
