package retention

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"compass/internal/rules"
	"compass/pkg/models"
)

type InvalidPeriodError struct {
	Period int
	Unit   rules.Unit
	Reason string
}

func (e *InvalidPeriodError) Error() string {
	return fmt.Sprintf("invalid retention period %d %s: %s", e.Period, e.Unit, e.Reason)
}

// NextExecution advances anchor by period units. Month and year steps clamp
// to the last valid day of the target month: 2025-01-31 + 1 month is
// 2025-02-28 and 2024-02-29 + 1 year is 2025-02-28.
func NextExecution(anchor civil.Date, period int, unit rules.Unit) (civil.Date, error) {
	if period <= 0 {
		return civil.Date{}, &InvalidPeriodError{Period: period, Unit: unit, Reason: "period must be positive"}
	}
	if !anchor.IsValid() {
		return civil.Date{}, &InvalidPeriodError{Period: period, Unit: unit, Reason: fmt.Sprintf("anchor %s is not a valid date", anchor)}
	}

	switch unit {
	case rules.UnitDays:
		return anchor.AddDays(period), nil
	case rules.UnitMonths:
		return addMonthsClamped(anchor, period), nil
	case rules.UnitYears:
		return addMonthsClamped(anchor, period*12), nil
	default:
		return civil.Date{}, &InvalidPeriodError{Period: period, Unit: unit, Reason: "unit must be days, months or years"}
	}
}

func addMonthsClamped(d civil.Date, months int) civil.Date {
	total := int(d.Month) - 1 + months
	year := d.Year + total/12
	month := total%12 + 1
	if month <= 0 {
		month += 12
		year--
	}

	day := d.Day
	if last := daysIn(year, time.Month(month)); day > last {
		day = last
	}
	return civil.Date{Year: year, Month: time.Month(month), Day: day}
}

func daysIn(year int, month time.Month) int {
	// Day 0 of the following month is the last day of month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Schedule is the perpetual recurrence of one retention rule for one
// document. Each execution re-anchors the next computation on the execution
// date itself, never on the rule's creation date.
type Schedule struct {
	Rule     rules.Rule
	TargetID string
}

func NewSchedule(rule rules.Rule, targetID string) (Schedule, error) {
	if rule.Retention == nil {
		return Schedule{}, fmt.Errorf("rule %s has no retention payload", rule.ID)
	}
	return Schedule{Rule: rule, TargetID: targetID}, nil
}

// Next returns the event for the next execution after anchor.
func (s Schedule) Next(anchor civil.Date) (models.ScheduledEvent, error) {
	p := s.Rule.Retention
	date, err := NextExecution(anchor, p.Period, p.Unit)
	if err != nil {
		return models.ScheduledEvent{}, err
	}

	ev := models.NewScheduledEvent(models.KindRetention, date, s.Rule.ID, s.TargetID, string(p.Action))
	ev.Action = string(p.Action)
	return ev, nil
}

// AfterExecution computes the event that follows an execution performed on
// executedOn.
func (s Schedule) AfterExecution(executedOn civil.Date) (models.ScheduledEvent, error) {
	return s.Next(executedOn)
}

// Occurrences chains n executions starting from anchor, assuming each one
// runs exactly on its scheduled date.
func (s Schedule) Occurrences(anchor civil.Date, n int) ([]models.ScheduledEvent, error) {
	out := make([]models.ScheduledEvent, 0, n)
	current := anchor
	for i := 0; i < n; i++ {
		ev, err := s.Next(current)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
		current = ev.FiringDate
	}
	return out, nil
}
