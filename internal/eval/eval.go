package eval

import (
	"github.com/danielpatrickdp/posture-check/internal/geometry"
	"github.com/danielpatrickdp/posture-check/internal/rules"
)

// #region evaluator
// Evaluator checks poses against a fixed rule set. It holds no mutable state,
// so one Evaluator may serve any number of goroutines.
type Evaluator struct {
	rules  *rules.RuleSet
	config Config
}

// NewEvaluator creates an evaluator over an already validated rule set.
func NewEvaluator(set *rules.RuleSet, config Config) *Evaluator {
	return &Evaluator{rules: set, config: config}
}

// RuleSet returns the rule set the evaluator was built with.
func (e *Evaluator) RuleSet() *rules.RuleSet { return e.rules }

// Evaluate runs every rule against one person's keypoints. It never stops at
// the first failure: all violations are reported in rule order.
func (e *Evaluator) Evaluate(kp geometry.Keypoints) Verdict {
	if !e.complete(kp) {
		return Verdict{Status: StatusIncomplete}
	}

	var violations []string
	metrics := make([]RuleMetric, 0, e.rules.Len())

	e.rules.Each(func(r rules.Rule) {
		value, ok := r.Measure(kp)
		pass := ok && r.Threshold().Satisfies(value)
		metrics = append(metrics, RuleMetric{
			Name:  r.Name(),
			Kind:  r.Kind(),
			Value: value,
			Unit:  r.Unit(),
			Pass:  pass,
		})
		if !pass {
			violations = append(violations, r.Violation(value))
		}
	})

	if len(violations) == 0 {
		return Verdict{Status: StatusCorrect, Metrics: metrics}
	}
	return Verdict{Status: StatusIncorrect, Violations: violations, Metrics: metrics}
}

// EvaluateAll evaluates each detected person in order.
func (e *Evaluator) EvaluateAll(people []geometry.Keypoints) []Verdict {
	out := make([]Verdict, len(people))
	for i, kp := range people {
		out[i] = e.Evaluate(kp)
	}
	return out
}

// #endregion evaluator

// #region helpers
// complete reports whether kp covers every index the rule set reads.
func (e *Evaluator) complete(kp geometry.Keypoints) bool {
	if len(kp) < e.rules.RequiredKeypoints() {
		return false
	}
	if !e.config.TreatOriginAsMissing {
		return true
	}
	ok := true
	e.rules.Each(func(r rules.Rule) {
		for _, i := range r.Indices() {
			if kp[i].IsOrigin() {
				ok = false
			}
		}
	})
	return ok
}

// #endregion helpers
