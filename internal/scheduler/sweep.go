package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"compass/internal/constants"
	"compass/internal/interval"
	"compass/internal/reminder"
	"compass/internal/retention"
	"compass/internal/rules"
	"compass/internal/ruleset"
	"compass/pkg/logging"
	"compass/pkg/metrics"
	"compass/pkg/models"
	"compass/pkg/tracing"
)

// TargetFailure is one task or document the sweep could not schedule.
type TargetFailure struct {
	Kind     models.EventKind `json:"kind"`
	TargetID string           `json:"target_id"`
	RuleID   string           `json:"rule_id,omitempty"`
	Reason   string           `json:"reason"`
	Err      string           `json:"error"`
}

// TieWarning reports a rule table that holds several active rules at the
// winning specificity for one target.
type TieWarning struct {
	Category rules.Category `json:"category"`
	TargetID string         `json:"target_id"`
	Chosen   string         `json:"chosen"`
	Tied     []string       `json:"tied"`
}

type SweepReport struct {
	ID         string          `json:"id"`
	Date       civil.Date      `json:"date"`
	Horizon    civil.Date      `json:"horizon"`
	Targets    int             `json:"targets"`
	Published  int             `json:"published"`
	Duplicates int             `json:"duplicates"`
	Failures   []TargetFailure `json:"failures,omitempty"`
	Ties       []TieWarning    `json:"ties,omitempty"`
}

type collector struct {
	mu     sync.Mutex
	report *SweepReport
}

func (c *collector) published(fresh bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fresh {
		c.report.Published++
	} else {
		c.report.Duplicates++
	}
}

func (c *collector) fail(f TargetFailure) {
	metrics.SweepTargetFailuresTotal.WithLabelValues(string(f.Kind), f.Reason).Inc()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Failures = append(c.report.Failures, f)
}

func (c *collector) tie(category rules.Category, targetID string, res rules.Resolution) {
	if len(res.Tied) == 0 {
		return
	}
	metrics.RuleTiesTotal.WithLabelValues(string(category)).Inc()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report.Ties = append(c.report.Ties, TieWarning{
		Category: category,
		TargetID: targetID,
		Chosen:   res.Rule.ID,
		Tied:     res.Tied,
	})
}

func failureReason(err error) string {
	var tokenErr *interval.InvalidTokenError
	var periodErr *retention.InvalidPeriodError
	switch {
	case errors.As(err, &tokenErr):
		return "invalid_token"
	case errors.As(err, &periodErr):
		return "invalid_period"
	}
	return "publish"
}

// Sweep evaluates every open task and stored document against the current
// rule snapshot and publishes the events that fall due between today and
// today+horizon_days. Failures are collected per target; only a missing
// snapshot, a repository failure or cancellation fails the sweep itself.
func (s *Service) Sweep(ctx context.Context) (*SweepReport, error) {
	snap := s.rules.Snapshot()
	if snap == nil {
		metrics.SweepRunsTotal.WithLabelValues("skipped").Inc()
		return nil, ruleset.ErrNotLoaded
	}

	today := s.Today()
	report := &SweepReport{
		ID:      uuid.NewString(),
		Date:    today,
		Horizon: today.AddDays(s.cfg.HorizonDays),
	}

	ctx = logging.WithSweepID(ctx, report.ID)
	ctx, span := tracing.StartSpan(ctx, constants.ServiceScheduler, "scheduler.sweep", attribute.String("sweep_id", report.ID))
	defer span.End()

	start := time.Now()
	err := s.sweep(ctx, snap, report)
	metrics.ObserveSweepDuration(time.Since(start))

	if err != nil {
		metrics.SweepRunsTotal.WithLabelValues("failed").Inc()
		s.logger.ErrorwCtx(ctx, "Sweep failed", "error", err)
		return report, err
	}

	metrics.SweepRunsTotal.WithLabelValues("completed").Inc()
	for _, tie := range report.Ties {
		s.logger.WarnwCtx(ctx, "Several rules tie at the winning scope",
			"category", tie.Category,
			"target_id", tie.TargetID,
			"chosen_rule_id", tie.Chosen,
			"tied_rule_ids", tie.Tied,
		)
	}
	s.logger.InfowCtx(ctx, "Sweep completed",
		"date", report.Date.String(),
		"horizon", report.Horizon.String(),
		"targets", report.Targets,
		"published", report.Published,
		"duplicates", report.Duplicates,
		"failures", len(report.Failures),
		"ties", len(report.Ties),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func (s *Service) sweep(ctx context.Context, snap *rules.Snapshot, report *SweepReport) error {
	tasks, err := s.repo.OpenTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load open tasks: %w", err)
	}
	docs, err := s.repo.Documents(ctx)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}

	c := &collector{report: report}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for _, task := range tasks {
		if gctx.Err() != nil {
			break
		}
		report.Targets++
		g.Go(func() error {
			s.sweepTask(gctx, snap, task, report.Date, report.Horizon, c)
			return nil
		})
	}
	for _, doc := range docs {
		if gctx.Err() != nil {
			break
		}
		report.Targets++
		g.Go(func() error {
			s.sweepDocument(gctx, snap, doc, report.Horizon, c)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (s *Service) sweepTask(ctx context.Context, snap *rules.Snapshot, task Task, from, to civil.Date, c *collector) {
	if ctx.Err() != nil {
		return
	}
	if task.Err != nil {
		c.fail(TargetFailure{Kind: models.KindReminder, TargetID: task.Target.ID, Reason: "invalid_target", Err: task.Err.Error()})
		return
	}

	res := s.resolver.Resolve(rules.CategoryReminder, snap, task.Target)
	s.logConditionErrors(ctx, task.Target.ID, res)
	if !res.Found {
		return
	}
	c.tie(rules.CategoryReminder, task.Target.ID, res)

	events, err := reminder.Generate(task.DueDate, res.Rule, task.Target.ID)
	if err != nil {
		c.fail(TargetFailure{Kind: models.KindReminder, TargetID: task.Target.ID, RuleID: res.Rule.ID, Reason: failureReason(err), Err: err.Error()})
		return
	}

	for _, ev := range reminder.Window(events, from, to) {
		fresh, err := s.publish(ctx, s.topics.Reminders, constants.EventReminderScheduled, ev)
		if err != nil {
			c.fail(TargetFailure{Kind: models.KindReminder, TargetID: task.Target.ID, RuleID: res.Rule.ID, Reason: "publish", Err: err.Error()})
			return
		}
		c.published(fresh)
	}
}

// sweepDocument publishes the document's next retention execution when it
// falls on or before the horizon. Overdue executions are published too.
func (s *Service) sweepDocument(ctx context.Context, snap *rules.Snapshot, doc Document, horizon civil.Date, c *collector) {
	if ctx.Err() != nil {
		return
	}
	if doc.Err != nil {
		c.fail(TargetFailure{Kind: models.KindRetention, TargetID: doc.Target.ID, Reason: "invalid_target", Err: doc.Err.Error()})
		return
	}

	res := s.resolver.Resolve(rules.CategoryRetention, snap, doc.Target)
	s.logConditionErrors(ctx, doc.Target.ID, res)
	if !res.Found {
		return
	}
	c.tie(rules.CategoryRetention, doc.Target.ID, res)

	sched, err := retention.NewSchedule(res.Rule, doc.Target.ID)
	if err == nil {
		var ev models.ScheduledEvent
		ev, err = sched.Next(doc.Anchor(res.Rule.ID))
		if err == nil {
			if ev.FiringDate.After(horizon) {
				return
			}
			var fresh bool
			fresh, err = s.publish(ctx, s.topics.Retention, constants.EventRetentionScheduled, ev)
			if err == nil {
				c.published(fresh)
				return
			}
		}
	}
	c.fail(TargetFailure{Kind: models.KindRetention, TargetID: doc.Target.ID, RuleID: res.Rule.ID, Reason: failureReason(err), Err: err.Error()})
}

func (s *Service) logConditionErrors(ctx context.Context, targetID string, res rules.Resolution) {
	for ruleID, err := range res.ConditionErrors {
		s.logger.WarnwCtx(ctx, "Rule condition failed to evaluate",
			"rule_id", ruleID,
			"target_id", targetID,
			"error", err,
		)
	}
}

// StartSweeper runs a sweep immediately, then every sweep interval until ctx
// is done. A failed sweep is logged and retried on the next tick.
func (s *Service) StartSweeper(ctx context.Context) error {
	interval := time.Duration(s.cfg.SweepIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.ErrorwCtx(ctx, "Scheduled sweep failed", "error", err)
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
