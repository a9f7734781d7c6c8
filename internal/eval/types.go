package eval

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/posture-check/internal/rules"
)

// #region eval-config
// Config tunes input handling for the evaluator.
type Config struct {
	// TreatOriginAsMissing counts a referenced keypoint at exactly (0,0) as
	// undetected. YOLO-pose reports missing joints this way.
	TreatOriginAsMissing bool
}

// DefaultConfig returns the evaluator defaults.
func DefaultConfig() Config {
	return Config{TreatOriginAsMissing: false}
}

// #endregion eval-config

// #region status
// Status is the headline outcome for one pose.
type Status string

const (
	StatusCorrect    Status = "Correct"
	StatusIncorrect  Status = "Incorrect"
	StatusIncomplete Status = "Incorrect (incomplete keypoints)"
)

// #endregion status

// #region rule-metric
// RuleMetric captures a single rule's measured value.
type RuleMetric struct {
	Name  string     `json:"name"`
	Kind  rules.Kind `json:"kind"`
	Value float64    `json:"value"`
	Unit  string     `json:"unit"`
	Pass  bool       `json:"pass"`
}

// MarshalJSON writes non-finite values (a +Inf ratio) as strings, since JSON
// numbers cannot hold them.
func (m RuleMetric) MarshalJSON() ([]byte, error) {
	type plain RuleMetric
	var value any = m.Value
	if math.IsInf(m.Value, 0) || math.IsNaN(m.Value) {
		value = strconv.FormatFloat(m.Value, 'g', -1, 64)
	}
	return json.Marshal(struct {
		plain
		Value any `json:"value"`
	}{plain(m), value})
}

// UnmarshalJSON accepts the value as a number or as a string such as "+Inf".
func (m *RuleMetric) UnmarshalJSON(data []byte) error {
	type plain RuleMetric
	aux := struct {
		*plain
		Value json.RawMessage `json:"value"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Value) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(aux.Value, &s); err == nil {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("metric %s: %w", m.Name, err)
		}
		m.Value = v
		return nil
	}
	return json.Unmarshal(aux.Value, &m.Value)
}

// #endregion rule-metric

// #region verdict
// Verdict is the evaluator output for one pose. Violations are in rule-set
// order and non-empty exactly when Status is StatusIncorrect.
type Verdict struct {
	Status     Status       `json:"status"`
	Violations []string     `json:"violations,omitempty"`
	Metrics    []RuleMetric `json:"metrics,omitempty"`
}

// Correct reports whether every rule passed.
func (v Verdict) Correct() bool { return v.Status == StatusCorrect }

// String renders the verdict as a display label.
func (v Verdict) String() string {
	if v.Status == StatusIncorrect && len(v.Violations) > 0 {
		return string(StatusIncorrect) + ": " + strings.Join(v.Violations, ", ")
	}
	return string(v.Status)
}

// FailedRules returns the names of rules whose metric failed.
func (v Verdict) FailedRules() []string {
	var names []string
	for _, m := range v.Metrics {
		if !m.Pass {
			names = append(names, m.Name)
		}
	}
	return names
}

// #endregion verdict
