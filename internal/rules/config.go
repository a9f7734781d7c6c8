package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// #region config-types
// Config is the on-disk form of a rule set.
type Config struct {
	Rules []RuleConfig `json:"rules" yaml:"rules"`
}

// RuleConfig is one rule entry. Which of Keypoints, Vectors or Pairs is read
// depends on Type.
type RuleConfig struct {
	Name           string           `json:"name" yaml:"name"`
	Type           string           `json:"type" yaml:"type"`
	Keypoints      []any            `json:"keypoints,omitempty" yaml:"keypoints,omitempty"`
	Vectors        [][]int          `json:"vectors,omitempty" yaml:"vectors,omitempty"`
	Pairs          [][]int          `json:"pairs,omitempty" yaml:"pairs,omitempty"`
	Threshold      *ThresholdConfig `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	VerticalOffset *float64         `json:"vertical_offset,omitempty" yaml:"vertical_offset,omitempty"`
}

// ThresholdConfig holds optional bounds.
type ThresholdConfig struct {
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// VerticalMarker stands in for a third keypoint index in angle rules.
const VerticalMarker = "vertical"

// #endregion config-types

// #region loaders
// LoadFile reads a rule config from path. .yaml and .yml files are parsed as
// YAML, everything else as JSON.
func LoadFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	var set *RuleSet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		set, err = ParseYAML(data)
	default:
		set, err = ParseJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("load rules %s: %w", path, err)
	}
	return set, nil
}

// ParseJSON decodes and builds a rule set from JSON.
func ParseJSON(data []byte) (*RuleSet, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return cfg.Build()
}

// ParseYAML decodes and builds a rule set from YAML.
func ParseYAML(data []byte) (*RuleSet, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg.Build()
}

// #endregion loaders

// #region build
// Build validates every entry and returns the frozen rule set. All
// configuration errors surface here, never during evaluation.
func (c Config) Build() (*RuleSet, error) {
	if len(c.Rules) == 0 {
		return nil, ErrEmptyRuleSet
	}
	built := make([]Rule, 0, len(c.Rules))
	for i, rc := range c.Rules {
		r, err := rc.build()
		if err != nil {
			label := rc.Name
			if label == "" {
				label = fmt.Sprintf("#%d", i)
			}
			return nil, fmt.Errorf("rule %s: %w", label, err)
		}
		built = append(built, r)
	}
	return NewRuleSet(built...)
}

func (rc RuleConfig) build() (Rule, error) {
	if rc.Name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingField)
	}
	if rc.Type == "" {
		return nil, fmt.Errorf("%w: type", ErrMissingField)
	}
	kind := Kind(rc.Type)
	switch kind {
	case KindAngle, KindDistance, KindDistanceRatio, KindVectorAngle:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleType, rc.Type)
	}
	if rc.Threshold == nil {
		return nil, fmt.Errorf("%w: threshold", ErrMissingField)
	}
	th, err := NewThreshold(rc.Threshold.Min, rc.Threshold.Max)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindAngle:
		return rc.buildAngle(th)
	case KindDistance:
		if len(rc.Keypoints) != 2 {
			return nil, fmt.Errorf("%w: keypoints needs 2 entries, got %d", ErrMissingField, len(rc.Keypoints))
		}
		a, err := toIndex(rc.Keypoints[0])
		if err != nil {
			return nil, err
		}
		b, err := toIndex(rc.Keypoints[1])
		if err != nil {
			return nil, err
		}
		return DistanceRule{RuleName: rc.Name, A: a, B: b, Limit: th}, nil
	case KindDistanceRatio:
		num, den, err := twoPairs("pairs", rc.Pairs)
		if err != nil {
			return nil, err
		}
		return DistanceRatioRule{RuleName: rc.Name, Num: num, Den: den, Limit: th}, nil
	default:
		v1, v2, err := twoPairs("vectors", rc.Vectors)
		if err != nil {
			return nil, err
		}
		return VectorAngleRule{RuleName: rc.Name, V1: v1, V2: v2, Limit: th}, nil
	}
}

func (rc RuleConfig) buildAngle(th Threshold) (Rule, error) {
	if len(rc.Keypoints) != 3 {
		return nil, fmt.Errorf("%w: keypoints needs 3 entries, got %d", ErrMissingField, len(rc.Keypoints))
	}
	a, err := toIndex(rc.Keypoints[0])
	if err != nil {
		return nil, err
	}
	b, err := toIndex(rc.Keypoints[1])
	if err != nil {
		return nil, err
	}
	r := AngleRule{RuleName: rc.Name, A: a, B: b, Limit: th, VerticalOffset: DefaultVerticalOffset}
	if s, ok := rc.Keypoints[2].(string); ok && strings.EqualFold(s, VerticalMarker) {
		r.Vertical = true
		if rc.VerticalOffset != nil {
			r.VerticalOffset = *rc.VerticalOffset
		}
		return r, nil
	}
	if r.C, err = toIndex(rc.Keypoints[2]); err != nil {
		return nil, err
	}
	return r, nil
}

// #endregion build

// #region helpers
// toIndex accepts the numeric shapes produced by encoding/json and yaml.v3.
func toIndex(v any) (int, error) {
	switch n := v.(type) {
	case int:
		if n < 0 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidIndex, n)
		}
		return n, nil
	case int64:
		return toIndex(int(n))
	case uint64:
		return toIndex(int(n))
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%w: %v", ErrInvalidIndex, n)
		}
		return toIndex(int(n))
	default:
		return 0, fmt.Errorf("%w: %v", ErrInvalidIndex, v)
	}
}

func twoPairs(field string, pairs [][]int) ([2]int, [2]int, error) {
	if len(pairs) != 2 || len(pairs[0]) != 2 || len(pairs[1]) != 2 {
		return [2]int{}, [2]int{}, fmt.Errorf("%w: %s needs two index pairs", ErrMissingField, field)
	}
	return [2]int{pairs[0][0], pairs[0][1]}, [2]int{pairs[1][0], pairs[1][1]}, nil
}

// #endregion helpers

// #region export
// ConfigFor renders a rule set back into its config form.
func ConfigFor(set *RuleSet) Config {
	cfg := Config{Rules: make([]RuleConfig, 0, set.Len())}
	set.Each(func(r Rule) {
		rc := RuleConfig{Name: r.Name(), Type: string(r.Kind()), Threshold: thresholdConfig(r.Threshold())}
		switch v := r.(type) {
		case AngleRule:
			if v.Vertical {
				off := v.VerticalOffset
				rc.Keypoints = []any{v.A, v.B, VerticalMarker}
				rc.VerticalOffset = &off
			} else {
				rc.Keypoints = []any{v.A, v.B, v.C}
			}
		case DistanceRule:
			rc.Keypoints = []any{v.A, v.B}
		case DistanceRatioRule:
			rc.Pairs = [][]int{{v.Num[0], v.Num[1]}, {v.Den[0], v.Den[1]}}
		case VectorAngleRule:
			rc.Vectors = [][]int{{v.V1[0], v.V1[1]}, {v.V2[0], v.V2[1]}}
		}
		cfg.Rules = append(cfg.Rules, rc)
	})
	return cfg
}

func thresholdConfig(t Threshold) *ThresholdConfig {
	tc := &ThresholdConfig{}
	if v, ok := t.Min(); ok {
		tc.Min = &v
	}
	if v, ok := t.Max(); ok {
		tc.Max = &v
	}
	return tc
}

// #endregion export
