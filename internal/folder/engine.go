package folder

import (
	"fmt"
	"time"

	"compass/internal/pathtemplate"
	"compass/internal/rules"
	"compass/pkg/models"
)

// Implicit template variables derived from the engine clock.
const (
	VarYear          = "year"
	VarMonth         = "month"
	VarQuarter       = "quarter"
	VarFinancialYear = "financial_year"
)

// Outcome is the result of one fired folder rule. Exactly one of Request and
// Err is set.
type Outcome struct {
	RuleID  string
	Key     string
	Request *models.FolderCreationRequest
	Err     error
}

type Engine struct {
	resolver *rules.Resolver
	now      func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func WithConditions(ev rules.ConditionEvaluator) Option {
	return func(e *Engine) {
		e.resolver = rules.NewResolver(rules.WithConditions(ev))
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		resolver: rules.NewResolver(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OnEvent resolves the folder rules triggered by eventType against the event
// context and renders one FolderCreationRequest per winning rule. A failed
// template only fails its own outcome. Outcomes are ordered by rule key.
func (e *Engine) OnEvent(snap *rules.Snapshot, eventType rules.EventType, eventCtx map[string]string) []Outcome {
	if !eventType.Valid() {
		return nil
	}

	target := TargetFromContext(eventCtx)
	triggered := func(r rules.Rule) bool {
		return r.Folder != nil && r.Folder.Trigger == eventType
	}

	resolutions := e.resolver.ResolveByKey(rules.CategoryFolder, snap, target, triggered)
	if len(resolutions) == 0 {
		return nil
	}

	vars := e.Variables(eventCtx)
	outcomes := make([]Outcome, 0, len(resolutions))
	for _, res := range resolutions {
		outcomes = append(outcomes, render(res.Rule, eventType, vars))
	}
	return outcomes
}

func render(rule rules.Rule, eventType rules.EventType, vars map[string]string) Outcome {
	out := Outcome{RuleID: rule.ID, Key: rule.Key}

	path, err := pathtemplate.Resolve(rule.Folder.PathTemplate, vars)
	if err != nil {
		out.Err = fmt.Errorf("rule %s: %w", rule.ID, err)
		return out
	}

	assignees := rule.Folder.DefaultAssignees
	if assignees == nil {
		assignees = []string{}
	}

	out.Request = &models.FolderCreationRequest{
		Path:             path,
		AccessLevel:      string(rule.Folder.AccessLevel),
		DefaultAssignees: assignees,
		TriggerRuleID:    rule.ID,
		EventType:        string(eventType),
	}
	return out
}

// Variables merges the event context with the implicit date variables.
// Implicit values win over event keys of the same name.
func (e *Engine) Variables(eventCtx map[string]string) map[string]string {
	vars := make(map[string]string, len(eventCtx)+4)
	for k, v := range eventCtx {
		vars[k] = v
	}
	for k, v := range ImplicitVariables(e.now()) {
		vars[k] = v
	}
	return vars
}

// ImplicitVariables returns year, month, quarter and financial_year for now.
// The financial year starts in April: June 2025 is 2025-26, February 2025 is
// 2024-25.
func ImplicitVariables(now time.Time) map[string]string {
	year := now.Year()
	month := int(now.Month())

	fyStart := year
	if month < 4 {
		fyStart = year - 1
	}

	return map[string]string{
		VarYear:          fmt.Sprintf("%04d", year),
		VarMonth:         fmt.Sprintf("%02d", month),
		VarQuarter:       fmt.Sprintf("Q%d", (month-1)/3+1),
		VarFinancialYear: fmt.Sprintf("%04d-%02d", fyStart, (fyStart+1)%100),
	}
}

// TargetFromContext maps taxonomy event context onto a resolution target.
func TargetFromContext(eventCtx map[string]string) rules.Target {
	attrs := make(map[string]string, len(eventCtx))
	for k, v := range eventCtx {
		attrs[k] = v
	}
	return rules.Target{
		CategoryName:     eventCtx[models.ContextComplianceHead],
		SubcategoryName:  eventCtx[models.ContextSubHead],
		EntityName:       eventCtx[models.ContextEntity],
		DocumentTypeName: eventCtx[models.ContextDocumentType],
		Attributes:       attrs,
	}
}
