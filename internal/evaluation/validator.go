package evaluation

import (
	"fmt"

	"cloud.google.com/go/civil"

	"compass/internal/interval"
	"compass/internal/pathtemplate"
	"compass/internal/retention"
	"compass/internal/rules"
)

type ConditionValidator interface {
	ValidateCondition(expression string) error
}

var sampleAnchor = civil.Date{Year: 2024, Month: 1, Day: 31}

// ValidateRule checks a rule definition before it is stored. It reports
// every problem found rather than stopping at the first.
func ValidateRule(rule rules.Rule, conditions ConditionValidator) []FieldError {
	var errs []FieldError
	add := func(field, code, msg string) {
		errs = append(errs, FieldError{Field: field, Code: code, Message: msg})
	}

	if err := rule.CheckShape(); err != nil {
		add("category", "INVALID_SHAPE", err.Error())
	}

	switch {
	case rule.TargetMatcher == "":
		add("target_matcher", "REQUIRED", "target_matcher is required; use * for any")
	case rule.Scope == rules.ScopeGlobal && !rule.IsWildcard():
		add("target_matcher", "GLOBAL_NOT_WILDCARD", "global rules must use the * matcher")
	}

	if rule.Condition != "" {
		if conditions == nil {
			add("condition", "UNSUPPORTED", "conditions are not available")
		} else if err := conditions.ValidateCondition(rule.Condition); err != nil {
			add("condition", "INVALID_CONDITION", err.Error())
		}
	}

	if rule.Reminder != nil {
		seen := make(map[string]int, len(rule.Reminder.Tokens))
		for i, tok := range rule.Reminder.Tokens {
			field := fmt.Sprintf("reminder.tokens[%d]", i)
			if first, ok := seen[tok]; ok {
				add(field, "DUPLICATE_TOKEN", fmt.Sprintf("token %q already given at index %d", tok, first))
				continue
			}
			seen[tok] = i
			if _, err := interval.Parse(tok); err != nil {
				add(field, "INVALID_TOKEN", err.Error())
			}
		}
	}

	if p := rule.Retention; p != nil {
		if _, err := retention.NextExecution(sampleAnchor, p.Period, p.Unit); err != nil {
			field := "retention.unit"
			if p.Period <= 0 {
				field = "retention.period"
			}
			add(field, "INVALID_PERIOD", err.Error())
		}
		switch p.Action {
		case rules.ActionArchive, rules.ActionDelete:
		default:
			add("retention.action", "INVALID_ACTION", fmt.Sprintf("unknown action %q", p.Action))
		}
	}

	if p := rule.Folder; p != nil {
		if rule.Key == "" {
			add("key", "REQUIRED", "folder rules need a key naming their folder slot")
		}
		if !p.Trigger.Valid() {
			add("folder.trigger", "INVALID_TRIGGER", fmt.Sprintf("unknown trigger %q", p.Trigger))
		}
		if _, err := pathtemplate.Variables(p.PathTemplate); err != nil {
			add("folder.path_template", "MALFORMED_TEMPLATE", err.Error())
		}
		switch p.AccessLevel {
		case rules.AccessPublic, rules.AccessRestricted, rules.AccessPrivate:
		default:
			add("folder.access_level", "INVALID_ACCESS_LEVEL", fmt.Sprintf("unknown access level %q", p.AccessLevel))
		}
	}

	return errs
}
