package evaluation

import (
	"time"

	"cloud.google.com/go/civil"

	"compass/internal/rules"
	"compass/pkg/models"
)

type ResolveRequest struct {
	Category rules.Category `json:"category" binding:"required"`
	Target   rules.Target   `json:"target"`
}

type ResolveResponse struct {
	Found           bool              `json:"found"`
	Rule            *rules.Rule       `json:"rule,omitempty"`
	Tied            []string          `json:"tied,omitempty"`
	ConditionErrors map[string]string `json:"condition_errors,omitempty"`
}

// ReminderPreviewRequest previews the reminders of a task. With Tokens set
// the tokens are evaluated directly instead of resolving a rule.
type ReminderPreviewRequest struct {
	Target  rules.Target `json:"target"`
	DueDate civil.Date   `json:"due_date" swaggertype:"string" example:"2025-06-20"`
	Tokens  []string     `json:"tokens,omitempty"`
	From    *civil.Date  `json:"from,omitempty" swaggertype:"string"`
	To      *civil.Date  `json:"to,omitempty" swaggertype:"string"`
}

type ScheduleResponse struct {
	RuleID string                  `json:"rule_id,omitempty"`
	Tied   []string                `json:"tied,omitempty"`
	Events []models.ScheduledEvent `json:"events"`
}

// RetentionNextRequest previews retention executions for a document. A
// non-nil Retention is evaluated directly instead of resolving a rule.
type RetentionNextRequest struct {
	Target      rules.Target            `json:"target"`
	Anchor      civil.Date              `json:"anchor" swaggertype:"string" example:"2024-01-31"`
	Occurrences int                     `json:"occurrences,omitempty"`
	Retention   *rules.RetentionPayload `json:"retention,omitempty"`
}

type FolderPreviewRequest struct {
	EventType rules.EventType   `json:"event_type" binding:"required"`
	Context   map[string]string `json:"context"`
	At        *time.Time        `json:"at,omitempty"`
}

type FolderOutcome struct {
	RuleID  string                        `json:"rule_id"`
	Key     string                        `json:"key,omitempty"`
	Request *models.FolderCreationRequest `json:"request,omitempty"`
	Error   map[string]interface{}        `json:"error,omitempty"`
}

type FolderPreviewResponse struct {
	Variables map[string]string `json:"variables"`
	Outcomes  []FolderOutcome   `json:"outcomes"`
}

type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidateRuleResponse struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors,omitempty"`
}
