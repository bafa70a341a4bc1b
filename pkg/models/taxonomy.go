package models

import "time"

// TaxonomyEvent announces that a compliance head, sub-head, entity or
// document type was created.
type TaxonomyEvent struct {
	ID         string            `json:"id"`
	EventType  string            `json:"event_type"`
	Context    map[string]string `json:"context"`
	OccurredAt time.Time         `json:"occurred_at"`
}

const (
	ContextComplianceHead = "compliance_head"
	ContextSubHead        = "sub_head"
	ContextEntity         = "entity"
	ContextDocumentType   = "document_type"
)
