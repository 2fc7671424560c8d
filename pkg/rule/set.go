package rule

import (
	"context"
)

// Set is an ordered collection of rules watching the same input queue.
type Set struct {
	rules []*Rule
}

// Match is a rule selected for a task, together with the results it produced.
type Match struct {
	Rule    *Rule
	Results []Result
}

// NewSet creates a new [Set] with the given rules. Declaration order is
// preserved.
func NewSet(rules ...*Rule) *Set {
	return &Set{rules: rules}
}

// Rules returns the rules of the set, in declaration order.
func (s *Set) Rules() []*Rule {
	return s.rules
}

// Len returns the number of rules in the set.
func (s *Set) Len() int {
	return len(s.rules)
}

// Select returns every rule matching the task, in declaration order.
func (s *Set) Select(task string) []*Rule {
	var matched []*Rule
	for _, r := range s.rules {
		if r.Match(task) {
			matched = append(matched, r)
		}
	}

	return matched
}

// Expand selects the rules matching the task and expands each of them.
// It stops at the first rule that fails, returning the matches gathered so
// far alongside the error.
func (s *Set) Expand(ctx context.Context, task string) ([]Match, error) {
	var matches []Match
	for _, r := range s.Select(task) {
		results, err := r.Expand(ctx, task)
		if err != nil {
			return matches, err
		}

		matches = append(matches, Match{Rule: r, Results: results})
	}

	return matches, nil
}
