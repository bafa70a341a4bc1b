package scheduler

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"compass/internal/broker"
	"compass/internal/config"
	"compass/internal/constants"
	"compass/internal/dedup"
	"compass/internal/logger"
	"compass/internal/retention"
	"compass/internal/rules"
	"compass/internal/ruleset"
	"compass/pkg/metrics"
	"compass/pkg/models"
	"compass/pkg/retry"
	"compass/pkg/tracing"
)

type Service struct {
	repo     Repository
	rules    *ruleset.Store
	resolver *rules.Resolver
	producer broker.Producer
	guard    *dedup.Guard
	cfg      config.SchedulerConfig
	topics   config.TopicsConfig
	loc      *time.Location
	now      func() time.Time
	logger   logger.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithConditions(ev rules.ConditionEvaluator) Option {
	return func(s *Service) {
		s.resolver = rules.NewResolver(rules.WithConditions(ev))
	}
}

func WithGuard(g *dedup.Guard) Option {
	return func(s *Service) {
		s.guard = g
	}
}

func NewService(repo Repository, store *ruleset.Store, producer broker.Producer, cfg config.SchedulerConfig, topics config.TopicsConfig, log logger.Logger, opts ...Option) (*Service, error) {
	loc, err := config.Location(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Timezone, err)
	}

	s := &Service{
		repo:     repo,
		rules:    store,
		resolver: rules.NewResolver(),
		producer: producer,
		cfg:      cfg,
		topics:   topics,
		loc:      loc,
		now:      time.Now,
		logger:   log,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.Workers <= 0 {
		s.cfg.Workers = 1
	}
	return s, nil
}

// Today is the current calendar date in the scheduler's timezone.
func (s *Service) Today() civil.Date {
	return civil.DateOf(s.now().In(s.loc))
}

// publish claims ev in the dedup guard and writes it to topic. It reports
// false when the event was already published inside the dedup window.
func (s *Service) publish(ctx context.Context, topic, eventType string, ev models.ScheduledEvent) (bool, error) {
	ok, err := s.guard.Claim(ctx, ev.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		metrics.ScheduledEventsTotal.WithLabelValues(string(ev.Kind), "duplicate").Inc()
		return false, nil
	}

	if _, err := broker.Publish(ctx, s.producer, topic, constants.ServiceScheduler, eventType, ev.ID, ev); err != nil {
		s.guard.Release(ctx, ev.ID)
		metrics.ScheduledEventsTotal.WithLabelValues(string(ev.Kind), "failed").Inc()
		return false, err
	}

	metrics.ScheduledEventsTotal.WithLabelValues(string(ev.Kind), "published").Inc()
	return true, nil
}

// HandleExecutionReport records a retention execution so the next sweep
// anchors that rule's recurrence on the execution date. Malformed reports
// are fatal and go to the DLQ without retries.
func (s *Service) HandleExecutionReport(ctx context.Context, msg models.MessageEnvelope) error {
	ctx, span := tracing.StartSpan(ctx, constants.ServiceScheduler, "scheduler.execution_report")
	defer span.End()

	var report models.RetentionExecutionReport
	if err := models.DecodePayload(msg, &report); err != nil {
		return retry.NewFatalError(err)
	}
	if err := validateReport(report); err != nil {
		metrics.RetentionExecutionsTotal.WithLabelValues(report.Action, "invalid").Inc()
		return retry.NewFatalError(err)
	}

	inserted, err := s.repo.RecordExecution(ctx, report)
	if err != nil {
		metrics.RetentionExecutionsTotal.WithLabelValues(report.Action, "failed").Inc()
		return retry.NewRetryableError(err)
	}

	status := "recorded"
	if !inserted {
		status = "duplicate"
	}
	metrics.RetentionExecutionsTotal.WithLabelValues(report.Action, status).Inc()
	fields := []interface{}{
		"rule_id", report.RuleID,
		"document_id", report.DocumentID,
		"executed_on", report.ExecutedOn.String(),
		"status", status,
	}
	if next, ok := s.nextExecution(report); ok {
		fields = append(fields, "next_execution", next.String())
	}
	s.logger.InfowCtx(ctx, "Retention execution recorded", fields...)
	return nil
}

// nextExecution is the date the reported rule fires next for the document,
// when the rule is still active in the current snapshot.
func (s *Service) nextExecution(report models.RetentionExecutionReport) (civil.Date, bool) {
	rule, ok := s.rules.Snapshot().Lookup(rules.CategoryRetention, report.RuleID)
	if !ok || !rule.IsActive {
		return civil.Date{}, false
	}
	sched, err := retention.NewSchedule(rule, report.DocumentID)
	if err != nil {
		return civil.Date{}, false
	}
	ev, err := sched.AfterExecution(report.ExecutedOn)
	if err != nil {
		return civil.Date{}, false
	}
	return ev.FiringDate, true
}

func validateReport(r models.RetentionExecutionReport) error {
	switch {
	case r.RuleID == "":
		return &models.ValidationError{Field: "rule_id", Message: "rule ID is required"}
	case r.DocumentID == "":
		return &models.ValidationError{Field: "document_id", Message: "document ID is required"}
	case !r.ExecutedOn.IsValid():
		return &models.ValidationError{Field: "executed_on", Message: "a valid execution date is required"}
	}
	switch rules.Action(r.Action) {
	case rules.ActionArchive, rules.ActionDelete:
		return nil
	}
	return &models.ValidationError{Field: "action", Message: fmt.Sprintf("unknown action %q", r.Action)}
}
