package geometry

import "math"

// #region point
// Point is a 2D image coordinate. Y grows downward.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Dot returns the dot product of p and q taken as vectors.
func (p Point) Dot(q Point) float64 {
	return p.X*q.X + p.Y*q.Y
}

// Norm returns the length of p taken as a vector.
func (p Point) Norm() float64 {
	return math.Hypot(p.X, p.Y)
}

// IsOrigin reports whether p is exactly (0, 0).
func (p Point) IsOrigin() bool {
	return p.X == 0 && p.Y == 0
}

// #endregion point

// #region keypoints
// Keypoints is one person's landmarks indexed by anatomical position.
type Keypoints []Point

// At returns the point at index i and whether it exists.
func (k Keypoints) At(i int) (Point, bool) {
	if i < 0 || i >= len(k) {
		return Point{}, false
	}
	return k[i], true
}

// #endregion keypoints

// #region primitives
// AngleAtVertex returns the angle in degrees subtended at b by a and c, in [0, 180].
// A zero-length arm has no direction and yields 0.
func AngleAtVertex(a, b, c Point) float64 {
	return vectorAngle(a.Sub(b), c.Sub(b))
}

// AngleBetweenVectors returns the angle in degrees between s1->e1 and s2->e2.
// A zero-length vector yields 0.
func AngleBetweenVectors(s1, e1, s2, e2 Point) float64 {
	return vectorAngle(e1.Sub(s1), e2.Sub(s2))
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return a.Sub(b).Norm()
}

// Ratio returns num/den, or +Inf when den is zero.
func Ratio(num, den float64) float64 {
	if den == 0 {
		return math.Inf(1)
	}
	return num / den
}

// vectorAngle computes the clipped-arccosine angle between v1 and v2 in degrees.
func vectorAngle(v1, v2 Point) float64 {
	n1, n2 := v1.Norm(), v2.Norm()
	if n1 == 0 || n2 == 0 {
		return 0
	}
	cos := v1.Dot(v2) / (n1 * n2)
	cos = math.Max(-1, math.Min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// #endregion primitives
