package config_handler

import (
	"context"

	"compass/internal/logger"
	"compass/pkg/models"
)

type ConfigReloader interface {
	ReloadRules(ctx context.Context, skipJitter ...bool) error
}

// Handler reloads a service's rule snapshot when the rule administration
// side announces a change for that service.
type Handler struct {
	expectedEventType   string
	expectedServiceType string
	reloader            ConfigReloader
	logger              logger.Logger
}

func NewHandler(expectedEventType, expectedServiceType string, reloader ConfigReloader, log logger.Logger) *Handler {
	return &Handler{
		expectedEventType:   expectedEventType,
		expectedServiceType: expectedServiceType,
		reloader:            reloader,
		logger:              log,
	}
}

func (h *Handler) HandleConfigUpdateEvent(ctx context.Context, envelope models.MessageEnvelope) error {
	var event models.ConfigUpdateEvent
	if err := models.DecodePayload(envelope, &event); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to decode config event", "error", err, "id", envelope.ID)
		return nil
	}

	if event.EventType == "" {
		event.EventType = envelope.Metadata.EventType
	}
	if event.EventType == "" {
		h.logger.WarnwCtx(ctx, "Config event missing event_type", "id", envelope.ID)
		return nil
	}

	if event.EventType != h.expectedEventType {
		return nil
	}

	if event.ServiceType != "" && event.ServiceType != h.expectedServiceType {
		return nil
	}

	h.logger.InfowCtx(ctx, "Received config update event",
		"event_type", event.EventType,
		"action", event.Action,
		"rule_id", event.RuleID,
	)

	if h.reloader == nil {
		return nil
	}

	if err := h.reloader.ReloadRules(ctx, true); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to reload rules after config update", "error", err)
		return err
	}
	h.logger.InfowCtx(ctx, "Rules reloaded successfully after config update", "action", event.Action)
	return nil
}
