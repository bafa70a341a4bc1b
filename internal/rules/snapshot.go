package rules

import (
	"sort"
	"strings"
)

// Snapshot is an immutable view of the rule table. It is built once per
// evaluation pass and shared read-only between workers.
type Snapshot struct {
	byCategory map[Category][]Rule
	size       int
}

func NewSnapshot(rules []Rule) *Snapshot {
	s := &Snapshot{byCategory: make(map[Category][]Rule)}
	for _, r := range rules {
		s.byCategory[r.Category] = append(s.byCategory[r.Category], r.Clone())
	}
	for cat := range s.byCategory {
		sortByID(s.byCategory[cat])
	}
	s.size = len(rules)
	return s
}

// Lookup returns a copy of the rule with the given category and ID.
func (s *Snapshot) Lookup(category Category, id string) (Rule, bool) {
	for _, r := range s.rules(category) {
		if r.ID == id {
			return r.Clone(), true
		}
	}
	return Rule{}, false
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return s.size
}

func (s *Snapshot) ActiveCount(category Category) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, r := range s.byCategory[category] {
		if r.IsActive {
			n++
		}
	}
	return n
}

// rules returns the backing slice without copying; callers must not mutate it.
func (s *Snapshot) rules(category Category) []Rule {
	if s == nil {
		return nil
	}
	return s.byCategory[category]
}

func sortByID(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		return LessID(rules[i].ID, rules[j].ID)
	})
}

// LessID is a total order over rule IDs. Decimal IDs sort before all
// others and compare by value; the rest compare byte-wise.
func LessID(a, b string) bool {
	ad, bd := isDecimal(a), isDecimal(b)
	if ad != bd {
		return ad
	}
	if ad {
		av, bv := strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(av) != len(bv) {
			return len(av) < len(bv)
		}
		if av != bv {
			return av < bv
		}
	}
	return a < b
}

func isDecimal(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}
