package rules

import (
	"fmt"
	"math"
)

// #region threshold
// Threshold is an acceptable range with an optional lower and upper bound.
// The zero value is invalid; build one with NewThreshold or the helpers.
type Threshold struct {
	min, max       float64
	hasMin, hasMax bool
}

// NewThreshold builds a threshold from optional bounds.
func NewThreshold(min, max *float64) (Threshold, error) {
	if min == nil && max == nil {
		return Threshold{}, ErrInvalidThreshold
	}
	var t Threshold
	if min != nil {
		if !finite(*min) {
			return Threshold{}, fmt.Errorf("%w: min is %g", ErrInvalidThreshold, *min)
		}
		t.min, t.hasMin = *min, true
	}
	if max != nil {
		if !finite(*max) {
			return Threshold{}, fmt.Errorf("%w: max is %g", ErrInvalidThreshold, *max)
		}
		t.max, t.hasMax = *max, true
	}
	if t.hasMin && t.hasMax && t.min > t.max {
		return Threshold{}, fmt.Errorf("%w: min %g > max %g", ErrInvalidThreshold, t.min, t.max)
	}
	return t, nil
}

// AtMost returns a threshold with only an upper bound.
func AtMost(max float64) Threshold {
	return Threshold{max: max, hasMax: true}
}

// AtLeast returns a threshold with only a lower bound.
func AtLeast(min float64) Threshold {
	return Threshold{min: min, hasMin: true}
}

// Between returns an inclusive range. It panics when min > max; use NewThreshold for
// untrusted input.
func Between(min, max float64) Threshold {
	t, err := NewThreshold(&min, &max)
	if err != nil {
		panic(err)
	}
	return t
}

// Min returns the lower bound and whether it is set.
func (t Threshold) Min() (float64, bool) { return t.min, t.hasMin }

// Max returns the upper bound and whether it is set.
func (t Threshold) Max() (float64, bool) { return t.max, t.hasMax }

// Valid reports whether at least one bound is set.
func (t Threshold) Valid() bool { return t.hasMin || t.hasMax }

// Satisfies reports whether v lies within the threshold. NaN never satisfies.
func (t Threshold) Satisfies(v float64) bool {
	switch {
	case t.hasMin && t.hasMax:
		return t.min <= v && v <= t.max
	case t.hasMin:
		return v >= t.min
	case t.hasMax:
		return v <= t.max
	default:
		return false
	}
}

// String renders the threshold in interval notation.
func (t Threshold) String() string {
	switch {
	case t.hasMin && t.hasMax:
		return fmt.Sprintf("[%g, %g]", t.min, t.max)
	case t.hasMin:
		return fmt.Sprintf(">= %g", t.min)
	case t.hasMax:
		return fmt.Sprintf("<= %g", t.max)
	default:
		return "invalid"
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// #endregion threshold
