package folder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"compass/internal/broker"
	"compass/internal/constants"
	"compass/internal/dedup"
	"compass/internal/logger"
	"compass/internal/rules"
	"compass/internal/ruleset"
	"compass/pkg/metrics"
	"compass/pkg/models"
	"compass/pkg/retry"
	"compass/pkg/tracing"
)

// Service turns taxonomy events into folder creation requests.
type Service struct {
	engine   *Engine
	rules    *ruleset.Store
	producer broker.Producer
	guard    *dedup.Guard
	topic    string
	logger   logger.Logger
}

func NewService(engine *Engine, store *ruleset.Store, producer broker.Producer, guard *dedup.Guard, topic string, log logger.Logger) *Service {
	return &Service{
		engine:   engine,
		rules:    store,
		producer: producer,
		guard:    guard,
		topic:    topic,
		logger:   log,
	}
}

// Result summarises one handled taxonomy event.
type Result struct {
	Published  int
	Duplicates int
	Failed     int
}

func (s *Service) HandleTaxonomyEvent(ctx context.Context, msg models.MessageEnvelope) error {
	_, err := s.Process(ctx, msg)
	return err
}

// Process runs the engine for one taxonomy event. Template failures are
// logged per rule and never block sibling requests. A publish failure is
// returned as retryable; requests already published are deduplicated on
// redelivery.
func (s *Service) Process(ctx context.Context, msg models.MessageEnvelope) (Result, error) {
	ctx, span := tracing.StartSpan(ctx, constants.ServiceFolder, "folder.process")
	defer span.End()

	var res Result

	var event models.TaxonomyEvent
	if err := models.DecodePayload(msg, &event); err != nil {
		return res, retry.NewFatalError(err)
	}
	if event.ID == "" {
		event.ID = msg.ID
	}
	if err := models.ValidateTaxonomyEvent(&event); err != nil {
		metrics.FolderEventsTotal.WithLabelValues(event.EventType, "invalid").Inc()
		return res, retry.NewFatalError(err)
	}

	eventType := rules.EventType(event.EventType)
	if !eventType.Valid() {
		metrics.FolderEventsTotal.WithLabelValues("unknown", "ignored").Inc()
		s.logger.WarnwCtx(ctx, "Ignoring unknown taxonomy event type",
			"event_id", event.ID,
			"event_type", event.EventType,
		)
		return res, nil
	}

	snap := s.rules.Snapshot()
	if snap == nil {
		return res, retry.NewRetryableError(ruleset.ErrNotLoaded)
	}

	start := time.Now()
	outcomes := s.engine.OnEvent(snap, eventType, event.Context)

	var publishErrs []error
	for _, out := range outcomes {
		if out.Err != nil {
			res.Failed++
			metrics.FolderRequestsTotal.WithLabelValues("failed").Inc()
			s.logger.ErrorwCtx(ctx, "Folder rule failed to render",
				"event_id", event.ID,
				"rule_id", out.RuleID,
				"key", out.Key,
				"error", out.Err,
			)
			continue
		}

		out.Request.EventID = event.ID
		fresh, err := s.publish(ctx, *out.Request)
		switch {
		case err != nil:
			publishErrs = append(publishErrs, fmt.Errorf("rule %s: %w", out.RuleID, err))
			metrics.FolderRequestsTotal.WithLabelValues("publish_failed").Inc()
		case fresh:
			res.Published++
			metrics.FolderRequestsTotal.WithLabelValues("published").Inc()
		default:
			res.Duplicates++
			metrics.FolderRequestsTotal.WithLabelValues("duplicate").Inc()
		}
	}

	metrics.ObserveFolderDuration(event.EventType, time.Since(start))

	status := "processed"
	if len(publishErrs) > 0 {
		status = "publish_failed"
	}
	metrics.FolderEventsTotal.WithLabelValues(event.EventType, status).Inc()

	s.logger.InfowCtx(ctx, "Taxonomy event processed",
		"event_id", event.ID,
		"event_type", event.EventType,
		"rules_fired", len(outcomes),
		"published", res.Published,
		"duplicates", res.Duplicates,
		"failed", res.Failed,
	)

	if len(publishErrs) > 0 {
		return res, retry.NewRetryableError(errors.Join(publishErrs...))
	}
	return res, nil
}

func (s *Service) publish(ctx context.Context, req models.FolderCreationRequest) (bool, error) {
	id := models.FolderRequestID(req.EventID, req.TriggerRuleID, req.Path)

	ok, err := s.guard.Claim(ctx, id)
	if err != nil || !ok {
		return false, err
	}

	if _, err := broker.Publish(ctx, s.producer, s.topic, constants.ServiceFolder, constants.EventFolderRequested, id, req); err != nil {
		s.guard.Release(ctx, id)
		return false, err
	}
	return true, nil
}
