package ruleset

import (
	"context"

	"compass/internal/rules"
)

type combined []Loader

// Combine loads from every loader in order; the first failure aborts.
func Combine(loaders ...Loader) Loader {
	return combined(loaders)
}

func (c combined) LoadRules(ctx context.Context) ([]rules.Rule, error) {
	var out []rules.Rule
	for _, l := range c {
		loaded, err := l.LoadRules(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, loaded...)
	}
	return out, nil
}
