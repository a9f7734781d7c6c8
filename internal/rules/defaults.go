package rules

import g "github.com/danielpatrickdp/posture-check/internal/geometry"

// #region default-rules
// DefaultRules returns the built-in upright stance checks:
//   - back_angle: shoulder-hip line within 30 degrees of vertical
//   - left/right_knee_angle: legs close to straight
//   - stance_width: ankle spacing between 0.8x and 1.5x shoulder width
//   - hip_shoulder_alignment: shoulder line roughly parallel to hip line
//
// Indices referenced: 5, 6, 11-16 (COCO-17).
func DefaultRules() []Rule {
	return []Rule{
		AngleRule{
			RuleName:       "back_angle",
			A:              g.LeftShoulder,
			B:              g.LeftHip,
			Vertical:       true,
			VerticalOffset: DefaultVerticalOffset,
			Limit:          AtMost(30),
		},
		AngleRule{RuleName: "left_knee_angle", A: g.LeftHip, B: g.LeftKnee, C: g.LeftAnkle, Limit: AtLeast(160)},
		AngleRule{RuleName: "right_knee_angle", A: g.RightHip, B: g.RightKnee, C: g.RightAnkle, Limit: AtLeast(160)},
		DistanceRatioRule{
			RuleName: "stance_width",
			Num:      [2]int{g.LeftAnkle, g.RightAnkle},
			Den:      [2]int{g.LeftShoulder, g.RightShoulder},
			Limit:    Between(0.8, 1.5),
		},
		VectorAngleRule{
			RuleName: "hip_shoulder_alignment",
			V1:       [2]int{g.LeftShoulder, g.RightShoulder},
			V2:       [2]int{g.LeftHip, g.RightHip},
			Limit:    AtMost(15),
		},
	}
}

// DefaultRuleSet builds DefaultRules into a rule set.
func DefaultRuleSet() *RuleSet {
	set, err := NewRuleSet(DefaultRules()...)
	if err != nil {
		panic("rules: default rule set invalid: " + err.Error())
	}
	return set
}

// #endregion default-rules
