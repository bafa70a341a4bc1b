package reminder

import (
	"fmt"
	"sort"

	"cloud.google.com/go/civil"

	"compass/internal/interval"
	"compass/internal/rules"
	"compass/pkg/models"
)

// Generate turns a resolved reminder rule into firing events for one target,
// ordered by firing date with ties kept in token order. An invalid token
// fails the whole rule; no partial schedule is returned.
func Generate(dueDate civil.Date, rule rules.Rule, targetID string) ([]models.ScheduledEvent, error) {
	if rule.Reminder == nil {
		return nil, fmt.Errorf("rule %s has no reminder payload", rule.ID)
	}

	tokens, err := interval.ParseAll(rule.Reminder.Tokens)
	if err != nil {
		return nil, err
	}

	events := make([]models.ScheduledEvent, 0, len(tokens))
	for _, tok := range tokens {
		text := tok.String()
		ev := models.NewScheduledEvent(models.KindReminder, tok.Apply(dueDate), rule.ID, targetID, text)
		ev.Token = text
		events = append(events, ev)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].FiringDate.Before(events[j].FiringDate)
	})
	return events, nil
}

// Window keeps the events firing within [from, to], inclusive.
func Window(events []models.ScheduledEvent, from, to civil.Date) []models.ScheduledEvent {
	var out []models.ScheduledEvent
	for _, ev := range events {
		if ev.FiringDate.Before(from) || ev.FiringDate.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}
