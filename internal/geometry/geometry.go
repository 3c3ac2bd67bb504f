// Package geometry implements the exact-arithmetic geometry kernel (spec C2):
// points, lines, circles, and the three pairwise intersection predicates, plus
// the canonical point fingerprint that the dedup cache keys on.
package geometry

import (
	"github.com/rawblock/constructible-engine/internal/scalar"
)

// Point is an ordered pair of scalars plus its canonical fingerprint and
// optional persistence metadata (spec.md §3).
type Point struct {
	X, Y        scalar.Scalar
	Fingerprint string
	ID          *int64
	InStore     bool
}

// Line is the unordered, infinite line through two distinct points.
type Line struct {
	A, B Point
}

// Circle is a center point plus non-negative radius.
type Circle struct {
	Center Point
	Radius scalar.Scalar
}

// NewPoint builds a Point and computes its fingerprint immediately, per
// spec.md §4.2's fingerprint contract: any point that will participate in
// identity tests must carry an up-to-date fingerprint.
func NewPoint(env *scalar.Env, x, y scalar.Scalar, fingerprintDigits int) Point {
	p := Point{X: x, Y: y}
	p.Refingerprint(env, fingerprintDigits)
	return p
}

// Refingerprint recomputes p's fingerprint after a coordinate mutation. Both
// coordinates are snapped to exact zero first when IsZero, then rendered to
// a fixed digit count, concatenated.
func (p *Point) Refingerprint(env *scalar.Env, digits int) {
	xs := env.Snap(p.X)
	ys := env.Snap(p.Y)
	p.Fingerprint = env.Render(xs, digits) + "|" + env.Render(ys, digits)
}

// Dist returns the Euclidean distance between a and b.
func Dist(env *scalar.Env, a, b Point) scalar.Scalar {
	dx := env.Sub(b.X, a.X)
	dy := env.Sub(b.Y, a.Y)
	sq := env.Add(env.Mul(dx, dx), env.Mul(dy, dy))
	return env.Sqrt(sq)
}

// NewLine builds the unordered infinite line through two distinct points.
func NewLine(a, b Point) Line { return Line{A: a, B: b} }

// NewCircle builds a circle with the given center and radius.
func NewCircle(center Point, radius scalar.Scalar) Circle { return Circle{Center: center, Radius: radius} }

// IntersectLineLine implements spec.md §4.2 "Line × Line": returns 0 or 1
// freshly allocated points.
func IntersectLineLine(env *scalar.Env, l1, l2 Line, fpDigits int) []Point {
	p1, p2 := l1.A, l1.B
	p3, p4 := l2.A, l2.B

	a1 := env.Sub(p2.Y, p1.Y)
	a2 := env.Sub(p4.Y, p3.Y)
	b1 := env.Sub(p1.X, p2.X)
	b2 := env.Sub(p3.X, p4.X)
	c1 := env.Add(env.Mul(a1, p1.X), env.Mul(b1, p1.Y))
	c2 := env.Add(env.Mul(a2, p3.X), env.Mul(b2, p3.Y))
	det := env.Sub(env.Mul(a1, b2), env.Mul(a2, b1))

	if env.IsZero(det) {
		return nil
	}

	x := env.Quo(env.Sub(env.Mul(b2, c1), env.Mul(b1, c2)), det)
	y := env.Quo(env.Sub(env.Mul(a1, c2), env.Mul(a2, c1)), det)
	return []Point{NewPoint(env, x, y, fpDigits)}
}

// IntersectCircleLine implements spec.md §4.2 "Circle × Line": returns 0, 1,
// or 2 freshly allocated points.
func IntersectCircleLine(env *scalar.Env, c Circle, l Line, fpDigits int) []Point {
	o := c.Center
	p1, p2 := l.A, l.B

	dx := env.Sub(p2.X, p1.X)
	dy := env.Sub(p2.Y, p1.Y)
	a := env.Add(env.Mul(dx, dx), env.Mul(dy, dy))

	bTerm1 := env.Mul(dx, env.Sub(p1.X, o.X))
	bTerm2 := env.Mul(dy, env.Sub(p1.Y, o.Y))
	b := env.Mul(env.FromInt64(2), env.Add(bTerm1, bTerm2))

	r2 := env.Mul(c.Radius, c.Radius)
	c0 := env.Add(env.Mul(o.X, o.X), env.Mul(o.Y, o.Y))
	c0 = env.Add(c0, env.Add(env.Mul(p1.X, p1.X), env.Mul(p1.Y, p1.Y)))
	cross := env.Mul(env.FromInt64(2), env.Add(env.Mul(o.X, p1.X), env.Mul(o.Y, p1.Y)))
	c0 = env.Sub(c0, cross)
	c0 = env.Sub(c0, r2)

	disc := env.Sub(env.Mul(b, b), env.Mul(env.FromInt64(4), env.Mul(a, c0)))

	pointAt := func(mu scalar.Scalar) Point {
		x := env.Add(p1.X, env.Mul(mu, dx))
		y := env.Add(p1.Y, env.Mul(mu, dy))
		return NewPoint(env, x, y, fpDigits)
	}

	twoA := env.Mul(env.FromInt64(2), a)
	switch env.CmpZero(disc) {
	case -1:
		return nil
	case 0:
		mu := env.Neg(env.Quo(b, twoA))
		return []Point{pointAt(mu)}
	default:
		sq := env.Sqrt(disc)
		mu1 := env.Quo(env.Add(env.Neg(b), sq), twoA)
		mu2 := env.Quo(env.Sub(env.Neg(b), sq), twoA)
		return []Point{pointAt(mu1), pointAt(mu2)}
	}
}

// IntersectCircleCircle implements spec.md §4.2 "Circle × Circle": returns 0,
// 1, or 2 freshly allocated points.
func IntersectCircleCircle(env *scalar.Env, c1, c2 Circle, fpDigits int) []Point {
	o1, o2 := c1.Center, c2.Center
	r1, r2 := c1.Radius, c2.Radius

	dx := env.Sub(o2.X, o1.X)
	dy := env.Sub(o2.Y, o1.Y)
	d := env.Sqrt(env.Add(env.Mul(dx, dx), env.Mul(dy, dy)))

	if env.IsZero(d) {
		return nil
	}

	s := env.Add(r1, r2)
	diff := env.Abs(env.Sub(r1, r2))

	sCmp := env.Cmp(d, s)
	deltaCmp := env.Cmp(d, diff)
	if sCmp > 0 || deltaCmp < 0 {
		return nil
	}

	r1sq := env.Mul(r1, r1)
	r2sq := env.Mul(r2, r2)
	dsq := env.Mul(d, d)
	a := env.Quo(env.Add(env.Sub(r1sq, r2sq), dsq), env.Mul(env.FromInt64(2), d))

	ratio := env.Quo(a, d)
	p0x := env.Add(o1.X, env.Mul(ratio, dx))
	p0y := env.Add(o1.Y, env.Mul(ratio, dy))

	if sCmp == 0 || deltaCmp == 0 {
		return []Point{NewPoint(env, p0x, p0y, fpDigits)}
	}

	h := env.Sqrt(env.Sub(r1sq, env.Mul(a, a)))
	offX := env.Quo(env.Mul(env.Neg(dy), h), d)
	offY := env.Quo(env.Mul(dx, h), d)

	pa := NewPoint(env, env.Add(p0x, offX), env.Add(p0y, offY), fpDigits)
	pb := NewPoint(env, env.Sub(p0x, offX), env.Sub(p0y, offY), fpDigits)
	return []Point{pa, pb}
}
