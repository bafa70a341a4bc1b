package models

import "time"

type ConfigUpdateEvent struct {
	EventType   string                 `json:"event_type"`   // "schedule_rules_updated", "folder_rules_updated"
	ServiceType string                 `json:"service_type"` // "scheduler", "folder"
	RuleID      string                 `json:"rule_id,omitempty"`
	Action      string                 `json:"action"` // "create", "update", "delete", "toggle", "reload"
	Timestamp   time.Time              `json:"timestamp"`
	ChangedBy   string                 `json:"changed_by,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

const (
	EventTypeScheduleRulesUpdated = "schedule_rules_updated"
	EventTypeFolderRulesUpdated   = "folder_rules_updated"
)

const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionToggle = "toggle"
	ActionReload = "reload"
)

const (
	ServiceTypeScheduler = "scheduler"
	ServiceTypeFolder    = "folder"
)
