package models

import (
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
)

type EventKind string

const (
	KindReminder  EventKind = "reminder"
	KindRetention EventKind = "retention"
)

// eventNamespace seeds deterministic event IDs so that re-running a sweep
// over the same inputs yields the same IDs.
var eventNamespace = uuid.MustParse("0f6c1a52-7a0e-4b8e-9a53-6f4f0c1d2e3b")

// ScheduledEvent is a concrete dated output of the reminder or retention
// scheduler. Values are never mutated after creation.
type ScheduledEvent struct {
	ID           string     `json:"id"`
	Kind         EventKind  `json:"kind"`
	FiringDate   civil.Date `json:"firing_date"`
	SourceRuleID string     `json:"source_rule_id"`
	TargetID     string     `json:"target_id,omitempty"`
	Token        string     `json:"token,omitempty"`
	Action       string     `json:"action,omitempty"`
}

func NewScheduledEvent(kind EventKind, firing civil.Date, ruleID, targetID, detail string) ScheduledEvent {
	key := fmt.Sprintf("%s|%s|%s|%s|%s", kind, ruleID, targetID, detail, firing)
	return ScheduledEvent{
		ID:           uuid.NewSHA1(eventNamespace, []byte(key)).String(),
		Kind:         kind,
		FiringDate:   firing,
		SourceRuleID: ruleID,
		TargetID:     targetID,
	}
}

// FolderRequestID derives the ID under which a folder request is published,
// so a redelivered taxonomy event maps to the same request.
func FolderRequestID(eventID, ruleID, path string) string {
	return uuid.NewSHA1(eventNamespace, []byte("folder|"+eventID+"|"+ruleID+"|"+path)).String()
}

// FolderCreationRequest asks the vault service to create one folder.
type FolderCreationRequest struct {
	Path             string   `json:"path"`
	AccessLevel      string   `json:"access_level"`
	DefaultAssignees []string `json:"default_assignees"`
	TriggerRuleID    string   `json:"trigger_rule_id"`
	EventType        string   `json:"event_type"`
	EventID          string   `json:"event_id,omitempty"`
}

// RetentionExecutionReport is sent back by the archival collaborator after
// it performed a retention action; the execution date becomes the next anchor.
type RetentionExecutionReport struct {
	RuleID     string     `json:"rule_id"`
	DocumentID string     `json:"document_id"`
	ExecutedOn civil.Date `json:"executed_on"`
	Action     string     `json:"action"`
}
