package rules

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/posture-check/internal/geometry"
)

// #region kind
// Kind names a rule variant. Values match the "type" field of rule configs.
type Kind string

const (
	KindAngle         Kind = "angle"
	KindDistance      Kind = "distance"
	KindDistanceRatio Kind = "distance_ratio"
	KindVectorAngle   Kind = "angle_between_vectors"
)

// DefaultVerticalOffset is how far above the vertex the synthetic vertical point sits.
const DefaultVerticalOffset = 100.0

// #endregion kind

// #region rule
// Rule is one geometric check plus its acceptance threshold.
// The set of implementations is closed: AngleRule, DistanceRule,
// DistanceRatioRule and VectorAngleRule.
type Rule interface {
	Name() string
	Kind() Kind
	Threshold() Threshold
	// Indices lists every keypoint index the rule reads.
	Indices() []int
	// Measure computes the rule's metric. ok is false when a referenced keypoint is absent.
	Measure(kp geometry.Keypoints) (value float64, ok bool)
	// Unit labels the metric in violation messages.
	Unit() string
	// Violation formats the message reported when value fails the threshold.
	Violation(value float64) string

	validate() error
}

// #endregion rule

// #region angle-rule
// AngleRule measures the angle at B between A and C. When Vertical is set, C is
// ignored and replaced by a point VerticalOffset pixels above B. VerticalOffset
// must then be positive; configs default it to DefaultVerticalOffset.
type AngleRule struct {
	RuleName       string
	A, B, C        int
	Vertical       bool
	VerticalOffset float64
	Limit          Threshold
}

func (r AngleRule) Name() string         { return r.RuleName }
func (r AngleRule) Kind() Kind           { return KindAngle }
func (r AngleRule) Threshold() Threshold { return r.Limit }
func (r AngleRule) Unit() string         { return "degrees" }

func (r AngleRule) Indices() []int {
	if r.Vertical {
		return []int{r.A, r.B}
	}
	return []int{r.A, r.B, r.C}
}

func (r AngleRule) Measure(kp geometry.Keypoints) (float64, bool) {
	a, okA := kp.At(r.A)
	b, okB := kp.At(r.B)
	if !okA || !okB {
		return 0, false
	}
	var c geometry.Point
	if r.Vertical {
		// image y grows downward, so "above" is smaller y
		c = geometry.Point{X: b.X, Y: b.Y - r.VerticalOffset}
	} else {
		var ok bool
		if c, ok = kp.At(r.C); !ok {
			return 0, false
		}
	}
	return geometry.AngleAtVertex(a, b, c), true
}

func (r AngleRule) Violation(v float64) string {
	return fmt.Sprintf("%s incorrect (%.1f degrees)", r.RuleName, v)
}

func (r AngleRule) validate() error {
	if r.Vertical && !(r.VerticalOffset > 0 && !math.IsInf(r.VerticalOffset, 1)) {
		return fmt.Errorf("%w: got %g", ErrInvalidOffset, r.VerticalOffset)
	}
	return validateCommon(r)
}

// #endregion angle-rule

// #region distance-rule
// DistanceRule measures the Euclidean distance between A and B in pixels.
type DistanceRule struct {
	RuleName string
	A, B     int
	Limit    Threshold
}

func (r DistanceRule) Name() string         { return r.RuleName }
func (r DistanceRule) Kind() Kind           { return KindDistance }
func (r DistanceRule) Threshold() Threshold { return r.Limit }
func (r DistanceRule) Unit() string         { return "units" }
func (r DistanceRule) Indices() []int       { return []int{r.A, r.B} }

func (r DistanceRule) Measure(kp geometry.Keypoints) (float64, bool) {
	a, okA := kp.At(r.A)
	b, okB := kp.At(r.B)
	if !okA || !okB {
		return 0, false
	}
	return geometry.Distance(a, b), true
}

func (r DistanceRule) Violation(v float64) string {
	return fmt.Sprintf("%s incorrect (%.1f units)", r.RuleName, v)
}

func (r DistanceRule) validate() error { return validateCommon(r) }

// #endregion distance-rule

// #region distance-ratio-rule
// DistanceRatioRule measures |Num[0]Num[1]| / |Den[0]Den[1]|. A zero denominator
// gives +Inf.
type DistanceRatioRule struct {
	RuleName string
	Num, Den [2]int
	Limit    Threshold
}

func (r DistanceRatioRule) Name() string         { return r.RuleName }
func (r DistanceRatioRule) Kind() Kind           { return KindDistanceRatio }
func (r DistanceRatioRule) Threshold() Threshold { return r.Limit }
func (r DistanceRatioRule) Unit() string         { return "ratio" }

func (r DistanceRatioRule) Indices() []int {
	return []int{r.Num[0], r.Num[1], r.Den[0], r.Den[1]}
}

func (r DistanceRatioRule) Measure(kp geometry.Keypoints) (float64, bool) {
	pts, ok := resolve(kp, r.Indices())
	if !ok {
		return 0, false
	}
	return geometry.Ratio(geometry.Distance(pts[0], pts[1]), geometry.Distance(pts[2], pts[3])), true
}

func (r DistanceRatioRule) Violation(v float64) string {
	return fmt.Sprintf("%s incorrect (ratio %.2f)", r.RuleName, v)
}

func (r DistanceRatioRule) validate() error { return validateCommon(r) }

// #endregion distance-ratio-rule

// #region vector-angle-rule
// VectorAngleRule measures the angle between V1[0]->V1[1] and V2[0]->V2[1].
type VectorAngleRule struct {
	RuleName string
	V1, V2   [2]int
	Limit    Threshold
}

func (r VectorAngleRule) Name() string         { return r.RuleName }
func (r VectorAngleRule) Kind() Kind           { return KindVectorAngle }
func (r VectorAngleRule) Threshold() Threshold { return r.Limit }
func (r VectorAngleRule) Unit() string         { return "degrees" }

func (r VectorAngleRule) Indices() []int {
	return []int{r.V1[0], r.V1[1], r.V2[0], r.V2[1]}
}

func (r VectorAngleRule) Measure(kp geometry.Keypoints) (float64, bool) {
	pts, ok := resolve(kp, r.Indices())
	if !ok {
		return 0, false
	}
	return geometry.AngleBetweenVectors(pts[0], pts[1], pts[2], pts[3]), true
}

func (r VectorAngleRule) Violation(v float64) string {
	return fmt.Sprintf("%s incorrect (%.1f degrees)", r.RuleName, v)
}

func (r VectorAngleRule) validate() error { return validateCommon(r) }

// #endregion vector-angle-rule

// #region helpers
func validateCommon(r Rule) error {
	if r.Name() == "" {
		return fmt.Errorf("%w: name", ErrMissingField)
	}
	if !r.Threshold().Valid() {
		return fmt.Errorf("rule %q: %w", r.Name(), ErrInvalidThreshold)
	}
	for _, i := range r.Indices() {
		if i < 0 {
			return fmt.Errorf("rule %q: %w: %d", r.Name(), ErrInvalidIndex, i)
		}
	}
	return nil
}

func resolve(kp geometry.Keypoints, idx []int) ([]geometry.Point, bool) {
	pts := make([]geometry.Point, len(idx))
	for i, k := range idx {
		p, ok := kp.At(k)
		if !ok {
			return nil, false
		}
		pts[i] = p
	}
	return pts, true
}

// #endregion helpers
