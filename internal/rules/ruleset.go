package rules

import "fmt"

// #region ruleset
// RuleSet is an ordered, immutable collection of rules. It is safe for
// concurrent use by any number of evaluators.
type RuleSet struct {
	rules    []Rule
	required int
}

// NewRuleSet validates every rule and freezes the order given.
func NewRuleSet(rules ...Rule) (*RuleSet, error) {
	if len(rules) == 0 {
		return nil, ErrEmptyRuleSet
	}
	seen := make(map[string]bool, len(rules))
	required := 0
	for _, r := range rules {
		if r == nil {
			return nil, fmt.Errorf("%w: nil rule", ErrMissingField)
		}
		if err := r.validate(); err != nil {
			return nil, err
		}
		if seen[r.Name()] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateRule, r.Name())
		}
		seen[r.Name()] = true
		for _, i := range r.Indices() {
			if i+1 > required {
				required = i + 1
			}
		}
	}
	frozen := make([]Rule, len(rules))
	copy(frozen, rules)
	return &RuleSet{rules: frozen, required: required}, nil
}

// Rules returns the rules in evaluation order. The slice is a copy.
func (s *RuleSet) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Len returns the number of rules.
func (s *RuleSet) Len() int { return len(s.rules) }

// RequiredKeypoints is the minimum keypoint count: highest referenced index + 1.
func (s *RuleSet) RequiredKeypoints() int { return s.required }

// Names returns rule names in evaluation order.
func (s *RuleSet) Names() []string {
	names := make([]string, len(s.rules))
	for i, r := range s.rules {
		names[i] = r.Name()
	}
	return names
}

// Each calls fn for every rule in order.
func (s *RuleSet) Each(fn func(Rule)) {
	for _, r := range s.rules {
		fn(r)
	}
}

// #endregion ruleset
