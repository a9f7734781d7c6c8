package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/posture-check/internal/eval"
	"github.com/danielpatrickdp/posture-check/internal/geometry"
	"github.com/danielpatrickdp/posture-check/internal/rules"
	"github.com/danielpatrickdp/posture-check/internal/state"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string            `json:"description"`
	Rules       *rules.Config     `json:"rules,omitempty"` // default rule set when absent
	Config      FixtureEvalConfig `json:"config"`
	Cases       []FixtureCase     `json:"cases"`
}

// FixtureEvalConfig mirrors eval.Config with JSON tags.
type FixtureEvalConfig struct {
	TreatOriginAsMissing bool `json:"treat_origin_as_missing"`
}

// FixtureCase is one pose with its expected verdict. A nil ExpectedViolations
// only checks the status; an empty list asserts there are none.
type FixtureCase struct {
	CaseID             string      `json:"case_id"`
	Keypoints          [][]float64 `json:"keypoints"`
	ExpectedStatus     eval.Status `json:"expected_status"`
	ExpectedViolations []string    `json:"expected_violations"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture writes f as indented JSON.
func WriteFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// Evaluator builds the evaluator the fixture's cases are checked against.
func (f *Fixture) Evaluator() (*eval.Evaluator, error) {
	set := rules.DefaultRuleSet()
	if f.Rules != nil {
		var err error
		if set, err = f.Rules.Build(); err != nil {
			return nil, fmt.Errorf("fixture rules: %w", err)
		}
	}
	return eval.NewEvaluator(set, eval.Config{TreatOriginAsMissing: f.Config.TreatOriginAsMissing}), nil
}

// ToCases converts every fixture case to a domain Case.
func (f *Fixture) ToCases() ([]Case, error) {
	cases := make([]Case, len(f.Cases))
	for i := range f.Cases {
		c, err := f.Cases[i].ToCase()
		if err != nil {
			return nil, err
		}
		cases[i] = c
	}
	return cases, nil
}

// ToCase converts a FixtureCase to a domain Case.
func (fc *FixtureCase) ToCase() (Case, error) {
	kp := make(geometry.Keypoints, len(fc.Keypoints))
	for i, xy := range fc.Keypoints {
		if len(xy) != 2 {
			return Case{}, fmt.Errorf("case %s: keypoint %d: want [x, y], got %d values", fc.CaseID, i, len(xy))
		}
		kp[i] = geometry.Point{X: xy[0], Y: xy[1]}
	}
	return Case{
		CaseID:             fc.CaseID,
		Keypoints:          kp,
		ExpectedStatus:     fc.ExpectedStatus,
		ExpectedViolations: fc.ExpectedViolations,
	}, nil
}

// #endregion fixture-loader

// #region fixture-export

// CaseFromRecord turns a stored evaluation into a case expecting the stored verdict.
func CaseFromRecord(rec state.EvaluationRecord) Case {
	violations := rec.Violations
	if violations == nil {
		violations = []string{}
	}
	return Case{
		CaseID:             rec.EvalID,
		Keypoints:          rec.Keypoints,
		ExpectedStatus:     rec.Status,
		ExpectedViolations: violations,
	}
}

// ExportFixture builds a fixture from stored evaluations. Records are taken in
// the order given.
func ExportFixture(description string, set *rules.RuleSet, cfg eval.Config, records []state.EvaluationRecord) *Fixture {
	f := &Fixture{
		Description: description,
		Config:      FixtureEvalConfig{TreatOriginAsMissing: cfg.TreatOriginAsMissing},
		Cases:       make([]FixtureCase, len(records)),
	}
	if set != nil {
		rc := rules.ConfigFor(set)
		f.Rules = &rc
	}
	for i, rec := range records {
		c := CaseFromRecord(rec)
		kp := make([][]float64, len(c.Keypoints))
		for j, p := range c.Keypoints {
			kp[j] = []float64{p.X, p.Y}
		}
		f.Cases[i] = FixtureCase{
			CaseID:             c.CaseID,
			Keypoints:          kp,
			ExpectedStatus:     c.ExpectedStatus,
			ExpectedViolations: c.ExpectedViolations,
		}
	}
	return f
}

// #endregion fixture-export
