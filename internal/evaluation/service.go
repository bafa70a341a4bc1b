package evaluation

import (
	"context"
	"fmt"
	"time"

	"compass/internal/constants"
	"compass/internal/folder"
	"compass/internal/reminder"
	"compass/internal/retention"
	"compass/internal/rules"
	"compass/internal/ruleset"
	apperrors "compass/pkg/errors"
	"compass/pkg/models"
)

type Conditions interface {
	rules.ConditionEvaluator
	ConditionValidator
}

// Service answers read-only questions against the current rule snapshot.
// Nothing it does publishes or persists.
type Service struct {
	rules      *ruleset.Store
	resolver   *rules.Resolver
	conditions Conditions
	now        func() time.Time
	loc        *time.Location
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		s.loc = loc
	}
}

func NewService(store *ruleset.Store, conditions Conditions, opts ...Option) *Service {
	s := &Service{
		rules:      store,
		resolver:   rules.NewResolver(),
		conditions: conditions,
		now:        time.Now,
		loc:        time.UTC,
	}
	if conditions != nil {
		s.resolver = rules.NewResolver(rules.WithConditions(conditions))
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) snapshot() (*rules.Snapshot, error) {
	snap := s.rules.Snapshot()
	if snap == nil {
		return nil, apperrors.ErrServiceUnavailable.WithCause(ruleset.ErrNotLoaded).
			WithDetail("message", ruleset.ErrNotLoaded.Error())
	}
	return snap, nil
}

func (s *Service) Resolve(_ context.Context, req ResolveRequest) (ResolveResponse, error) {
	if !req.Category.Valid() {
		return ResolveResponse{}, apperrors.ErrValidation.WithDetail("message", fmt.Sprintf("unknown category %q", req.Category))
	}
	snap, err := s.snapshot()
	if err != nil {
		return ResolveResponse{}, err
	}

	res := s.resolver.Resolve(req.Category, snap, req.Target)
	out := ResolveResponse{Found: res.Found, Tied: res.Tied}
	if res.Found {
		rule := res.Rule
		out.Rule = &rule
	}
	if len(res.ConditionErrors) > 0 {
		out.ConditionErrors = make(map[string]string, len(res.ConditionErrors))
		for id, err := range res.ConditionErrors {
			out.ConditionErrors[id] = err.Error()
		}
	}
	return out, nil
}

func notFound(category rules.Category) *apperrors.Error {
	return apperrors.ErrNotFound.WithDetail("message", fmt.Sprintf("no active %s rule applies to the target", category))
}

func (s *Service) PreviewReminders(_ context.Context, req ReminderPreviewRequest) (ScheduleResponse, error) {
	if !req.DueDate.IsValid() {
		return ScheduleResponse{}, apperrors.ErrValidation.WithDetail("message", "due_date is required")
	}

	var out ScheduleResponse
	rule := rules.Rule{
		ID:       "adhoc",
		Category: rules.CategoryReminder,
		Reminder: &rules.ReminderPayload{Tokens: req.Tokens},
	}
	if req.Tokens == nil {
		snap, err := s.snapshot()
		if err != nil {
			return out, err
		}
		res := s.resolver.Resolve(rules.CategoryReminder, snap, req.Target)
		if !res.Found {
			return out, notFound(rules.CategoryReminder)
		}
		rule = res.Rule
		out.Tied = res.Tied
	}
	out.RuleID = rule.ID

	events, err := reminder.Generate(req.DueDate, rule, req.Target.ID)
	if err != nil {
		return out, apperrors.FromDomain(err)
	}
	if len(events) > 0 && (req.From != nil || req.To != nil) {
		from, to := events[0].FiringDate, events[len(events)-1].FiringDate
		if req.From != nil {
			from = *req.From
		}
		if req.To != nil {
			to = *req.To
		}
		events = reminder.Window(events, from, to)
	}
	if events == nil {
		events = []models.ScheduledEvent{}
	}
	out.Events = events
	return out, nil
}

func (s *Service) NextRetention(_ context.Context, req RetentionNextRequest) (ScheduleResponse, error) {
	if !req.Anchor.IsValid() {
		return ScheduleResponse{}, apperrors.ErrValidation.WithDetail("message", "anchor is required")
	}
	n := req.Occurrences
	if n <= 0 {
		n = 1
	}
	if n > constants.MaxPreviewOccurrences {
		return ScheduleResponse{}, apperrors.ErrValidation.WithDetail("message",
			fmt.Sprintf("occurrences must not exceed %d", constants.MaxPreviewOccurrences))
	}

	var out ScheduleResponse
	rule := rules.Rule{ID: "adhoc", Category: rules.CategoryRetention, Retention: req.Retention}
	if req.Retention == nil {
		snap, err := s.snapshot()
		if err != nil {
			return out, err
		}
		res := s.resolver.Resolve(rules.CategoryRetention, snap, req.Target)
		if !res.Found {
			return out, notFound(rules.CategoryRetention)
		}
		rule = res.Rule
		out.Tied = res.Tied
	}
	out.RuleID = rule.ID

	sched, err := retention.NewSchedule(rule, req.Target.ID)
	if err != nil {
		return out, apperrors.FromDomain(err)
	}
	events, err := sched.Occurrences(req.Anchor, n)
	if err != nil {
		return out, apperrors.FromDomain(err)
	}
	out.Events = events
	return out, nil
}

func (s *Service) PreviewFolders(_ context.Context, req FolderPreviewRequest) (FolderPreviewResponse, error) {
	if !req.EventType.Valid() {
		return FolderPreviewResponse{}, apperrors.ErrValidation.WithDetail("message", fmt.Sprintf("unknown event type %q", req.EventType))
	}
	snap, err := s.snapshot()
	if err != nil {
		return FolderPreviewResponse{}, err
	}

	at := s.now()
	if req.At != nil {
		at = *req.At
	}
	at = at.In(s.loc)

	opts := []folder.Option{folder.WithClock(func() time.Time { return at })}
	if s.conditions != nil {
		opts = append(opts, folder.WithConditions(s.conditions))
	}
	engine := folder.NewEngine(opts...)

	out := FolderPreviewResponse{
		Variables: engine.Variables(req.Context),
		Outcomes:  []FolderOutcome{},
	}
	for _, o := range engine.OnEvent(snap, req.EventType, req.Context) {
		fo := FolderOutcome{RuleID: o.RuleID, Key: o.Key, Request: o.Request}
		if o.Err != nil {
			fo.Error = apperrors.ToErrorResponse(apperrors.FromDomain(o.Err))
		}
		out.Outcomes = append(out.Outcomes, fo)
	}
	return out, nil
}

func (s *Service) ValidateRule(_ context.Context, rule rules.Rule) ValidateRuleResponse {
	errs := ValidateRule(rule, s.conditions)
	return ValidateRuleResponse{Valid: len(errs) == 0, Errors: errs}
}
