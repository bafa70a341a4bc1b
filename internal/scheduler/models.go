package scheduler

import (
	"cloud.google.com/go/civil"

	"compass/internal/rules"
)

// Task is an open compliance task with a due date. Err is set when the
// stored row could not be decoded; the sweep reports it as a failure.
type Task struct {
	Target  rules.Target
	DueDate civil.Date
	Err     error
}

// Document is a stored document subject to retention. LastExecuted maps a
// retention rule ID to the date that rule last ran on the document.
type Document struct {
	Target       rules.Target
	UploadedOn   civil.Date
	LastExecuted map[string]civil.Date
	Err          error
}

// Anchor returns the date the next execution of ruleID is computed from.
func (d Document) Anchor(ruleID string) civil.Date {
	if executed, ok := d.LastExecuted[ruleID]; ok {
		return executed
	}
	return d.UploadedOn
}
