package rules

import "sort"

// ConditionEvaluator decides whether a rule's optional guard expression
// holds for a target.
type ConditionEvaluator interface {
	EvaluateCondition(expression string, vars map[string]string) (bool, error)
}

// Resolution is the outcome of resolving one category (or one folder slot)
// for a target. Found=false is the "no rule applies" outcome and is not an
// error.
type Resolution struct {
	Rule  Rule
	Found bool
	// Tied holds the IDs of other candidates at the winning specificity.
	// Non-empty means the rule table violates the one-rule-per-scope
	// invariant; the lowest ID was chosen.
	Tied            []string
	ConditionErrors map[string]error
}

type Resolver struct {
	conditions ConditionEvaluator
}

type ResolverOption func(*Resolver)

func WithConditions(ev ConditionEvaluator) ResolverOption {
	return func(r *Resolver) {
		r.conditions = ev
	}
}

func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultResolver = NewResolver()

// Resolve picks the effective rule of category for target using the default
// resolver. Rules carrying a condition never match without an evaluator.
func Resolve(category Category, snap *Snapshot, target Target) Resolution {
	return defaultResolver.Resolve(category, snap, target)
}

func (r *Resolver) Resolve(category Category, snap *Snapshot, target Target) Resolution {
	candidates, condErrs := r.candidates(snap.rules(category), target, nil)
	res := pick(candidates)
	res.ConditionErrors = condErrs
	return res
}

// ResolveByKey resolves independently for every distinct rule Key among the
// rules accepted by keep (nil keeps all). Results are ordered by key.
func (r *Resolver) ResolveByKey(category Category, snap *Snapshot, target Target, keep func(Rule) bool) []Resolution {
	candidates, condErrs := r.candidates(snap.rules(category), target, keep)

	groups := make(map[string][]Rule)
	for _, c := range candidates {
		groups[c.Key] = append(groups[c.Key], c)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Resolution, 0, len(keys))
	for _, k := range keys {
		res := pick(groups[k])
		res.ConditionErrors = condErrs
		out = append(out, res)
	}
	return out
}

// Matches reports whether rule applies to target at the rule's own scope,
// ignoring activity and conditions.
func Matches(rule Rule, target Target) bool {
	if rule.Scope.Specificity() < 0 {
		return false
	}
	if rule.Scope == ScopeGlobal || rule.IsWildcard() {
		return true
	}
	field, ok := target.FieldFor(rule.Scope)
	return ok && field == rule.TargetMatcher
}

func (r *Resolver) candidates(all []Rule, target Target, keep func(Rule) bool) ([]Rule, map[string]error) {
	var out []Rule
	var condErrs map[string]error
	var vars map[string]string

	for _, rule := range all {
		if !rule.IsActive {
			continue
		}
		if keep != nil && !keep(rule) {
			continue
		}
		if !Matches(rule, target) {
			continue
		}
		if rule.Condition != "" {
			if r.conditions == nil {
				continue
			}
			if vars == nil {
				vars = target.Vars()
			}
			ok, err := r.conditions.EvaluateCondition(rule.Condition, vars)
			if err != nil {
				if condErrs == nil {
					condErrs = make(map[string]error)
				}
				condErrs[rule.ID] = err
				continue
			}
			if !ok {
				continue
			}
		}
		out = append(out, rule)
	}
	return out, condErrs
}

// pick expects candidates in ascending ID order, as snapshots store them.
func pick(candidates []Rule) Resolution {
	best := -1
	var winner Rule
	var tied []string

	for _, c := range candidates {
		spec := c.Scope.Specificity()
		switch {
		case spec > best:
			best = spec
			winner = c
			tied = nil
		case spec == best:
			if LessID(c.ID, winner.ID) {
				tied = append(tied, winner.ID)
				winner = c
			} else {
				tied = append(tied, c.ID)
			}
		}
	}

	if best < 0 {
		return Resolution{}
	}
	sort.Slice(tied, func(i, j int) bool { return LessID(tied[i], tied[j]) })
	return Resolution{Rule: winner.Clone(), Found: true, Tied: tied}
}
