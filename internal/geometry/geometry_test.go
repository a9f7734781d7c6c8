package geometry_test

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/posture-check/internal/geometry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-6

// TestAngleAtVertex_KnownShapes checks straight, right and coincident-arm angles.
func TestAngleAtVertex_KnownShapes(t *testing.T) {
	cases := []struct {
		name    string
		a, b, c geometry.Point
		want    float64
	}{
		{"Straight", geometry.Point{X: 0, Y: 0}, geometry.Point{X: 1, Y: 1}, geometry.Point{X: 2, Y: 2}, 180},
		{"Right", geometry.Point{X: 1, Y: 0}, geometry.Point{X: 0, Y: 0}, geometry.Point{X: 0, Y: 5}, 90},
		{"SameArm", geometry.Point{X: 3, Y: 4}, geometry.Point{X: 0, Y: 0}, geometry.Point{X: 3, Y: 4}, 0},
		{"FortyFive", geometry.Point{X: 1, Y: 0}, geometry.Point{X: 0, Y: 0}, geometry.Point{X: 1, Y: 1}, 45},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := geometry.AngleAtVertex(tc.a, tc.b, tc.c)
			assert.InDelta(t, tc.want, got, tol)
		})
	}
}

// TestAngleAtVertex_ZeroLengthArm verifies the degenerate policy returns 0, not NaN.
func TestAngleAtVertex_ZeroLengthArm(t *testing.T) {
	b := geometry.Point{X: 10, Y: 10}
	got := geometry.AngleAtVertex(b, b, geometry.Point{X: 20, Y: 10})
	assert.False(t, math.IsNaN(got), "zero-length arm must not produce NaN")
	assert.Equal(t, 0.0, got)

	got = geometry.AngleAtVertex(geometry.Point{X: 0, Y: 10}, b, b)
	assert.Equal(t, 0.0, got)
}

// TestAngleAtVertex_RangeAndSymmetry sweeps a set of points and checks [0,180] and a/c symmetry.
func TestAngleAtVertex_RangeAndSymmetry(t *testing.T) {
	pts := []geometry.Point{
		{X: 0, Y: 0}, {X: 1, Y: 0}, {X: -3, Y: 2}, {X: 5, Y: -7},
		{X: 0.1, Y: 0.2}, {X: 100, Y: 100}, {X: -1e3, Y: 1e-3},
	}
	for _, a := range pts {
		for _, b := range pts {
			for _, c := range pts {
				if a == b || c == b {
					continue
				}
				ang := geometry.AngleAtVertex(a, b, c)
				require.GreaterOrEqual(t, ang, 0.0)
				require.LessOrEqual(t, ang, 180.0)
				require.InDelta(t, ang, geometry.AngleAtVertex(c, b, a), tol)
			}
		}
	}
}

// TestAngleAtVertex_ClipsRoundingDrift uses nearly parallel long vectors whose
// cosine can round above 1.
func TestAngleAtVertex_ClipsRoundingDrift(t *testing.T) {
	a := geometry.Point{X: 1e8, Y: 1e8 + 1e-7}
	b := geometry.Point{X: 0, Y: 0}
	c := geometry.Point{X: 3e8, Y: 3e8}
	got := geometry.AngleAtVertex(a, b, c)
	assert.False(t, math.IsNaN(got))
	assert.InDelta(t, 0.0, got, 1e-3)
}

// TestAngleBetweenVectors covers parallel, opposite, orthogonal and degenerate vectors.
func TestAngleBetweenVectors(t *testing.T) {
	o := geometry.Point{}
	right := geometry.Point{X: 1, Y: 0}
	up := geometry.Point{X: 0, Y: -1}
	left := geometry.Point{X: -4, Y: 0}

	assert.InDelta(t, 0.0, geometry.AngleBetweenVectors(o, right, geometry.Point{X: 5, Y: 5}, geometry.Point{X: 9, Y: 5}), tol)
	assert.InDelta(t, 180.0, geometry.AngleBetweenVectors(o, right, o, left), tol)
	assert.InDelta(t, 90.0, geometry.AngleBetweenVectors(o, right, o, up), tol)
	assert.Equal(t, 0.0, geometry.AngleBetweenVectors(right, right, o, up), "zero-length first vector")
	assert.Equal(t, 0.0, geometry.AngleBetweenVectors(o, up, left, left), "zero-length second vector")
}

// TestDistanceAndRatio checks Euclidean distance and the zero-denominator policy.
func TestDistanceAndRatio(t *testing.T) {
	assert.InDelta(t, 5.0, geometry.Distance(geometry.Point{X: 0, Y: 0}, geometry.Point{X: 3, Y: 4}), tol)
	assert.InDelta(t, 2.0, geometry.Ratio(10, 5), tol)
	assert.True(t, math.IsInf(geometry.Ratio(10, 0), 1))
	assert.True(t, math.IsInf(geometry.Ratio(0, 0), 1))
}

// TestKeypointsAt verifies bounds handling.
func TestKeypointsAt(t *testing.T) {
	kp := geometry.Keypoints{{X: 1, Y: 2}, {X: 3, Y: 4}}
	p, ok := kp.At(1)
	require.True(t, ok)
	assert.Equal(t, geometry.Point{X: 3, Y: 4}, p)

	_, ok = kp.At(2)
	assert.False(t, ok)
	_, ok = kp.At(-1)
	assert.False(t, ok)
}

// TestKeypointName covers the COCO table edges.
func TestKeypointName(t *testing.T) {
	assert.Equal(t, "nose", geometry.KeypointName(geometry.Nose))
	assert.Equal(t, "right_ankle", geometry.KeypointName(geometry.RightAnkle))
	assert.Equal(t, "", geometry.KeypointName(geometry.COCOKeypointCount))
	assert.Equal(t, 17, geometry.COCOKeypointCount)
}
