package geometry

import (
	"sort"
	"testing"

	"github.com/rawblock/constructible-engine/internal/scalar"
)

const testFPDigits = 10

func testEnv(t *testing.T) *scalar.Env {
	t.Helper()
	env, err := scalar.Init(200, "1e-20")
	if err != nil {
		t.Fatalf("scalar.Init() error = %v", err)
	}
	return env
}

func pt(t *testing.T, env *scalar.Env, x, y string) Point {
	t.Helper()
	xs, err := env.FromString(x)
	if err != nil {
		t.Fatalf("FromString(%q): %v", x, err)
	}
	ys, err := env.FromString(y)
	if err != nil {
		t.Fatalf("FromString(%q): %v", y, err)
	}
	return NewPoint(env, xs, ys, testFPDigits)
}

// sortedCoords renders every point's (x,y) to fixed digits and sorts the
// result, so assertions don't depend on a specific intersection's return
// order.
func sortedCoords(env *scalar.Env, pts []Point) []string {
	out := make([]string, len(pts))
	for i, p := range pts {
		out[i] = env.Render(p.X, testFPDigits) + "," + env.Render(p.Y, testFPDigits)
	}
	sort.Strings(out)
	return out
}

func assertPoints(t *testing.T, env *scalar.Env, got []Point, wantXY [][2]string) {
	t.Helper()
	if len(got) != len(wantXY) {
		t.Fatalf("got %d points, want %d: %v", len(got), len(wantXY), sortedCoords(env, got))
	}
	want := make([]Point, len(wantXY))
	for i, xy := range wantXY {
		want[i] = pt(t, env, xy[0], xy[1])
	}
	gotSorted := sortedCoords(env, got)
	wantSorted := sortedCoords(env, want)
	for i := range gotSorted {
		if gotSorted[i] != wantSorted[i] {
			t.Errorf("point set mismatch: got %v, want %v", gotSorted, wantSorted)
			return
		}
	}
}

// S2: line (0,0)-(1,1) x line (0,10)-(10,0) -> single point (5,5).
func TestIntersectLineLine_S2(t *testing.T) {
	env := testEnv(t)
	l1 := NewLine(pt(t, env, "0", "0"), pt(t, env, "1", "1"))
	l2 := NewLine(pt(t, env, "0", "10"), pt(t, env, "10", "0"))

	got := IntersectLineLine(env, l1, l2, testFPDigits)
	assertPoints(t, env, got, [][2]string{{"5", "5"}})
}

func TestIntersectLineLine_Parallel(t *testing.T) {
	env := testEnv(t)
	l1 := NewLine(pt(t, env, "0", "0"), pt(t, env, "1", "0"))
	l2 := NewLine(pt(t, env, "0", "1"), pt(t, env, "1", "1"))

	got := IntersectLineLine(env, l1, l2, testFPDigits)
	if len(got) != 0 {
		t.Errorf("parallel lines: got %d points, want 0", len(got))
	}
}

// S3: circle centre (0,0) radius 1 x line (0,0)-(0,10) -> {(0,1),(0,-1)}.
func TestIntersectCircleLine_S3(t *testing.T) {
	env := testEnv(t)
	c := NewCircle(pt(t, env, "0", "0"), mustScalarStr(t, env, "1"))
	l := NewLine(pt(t, env, "0", "0"), pt(t, env, "0", "10"))

	got := IntersectCircleLine(env, c, l, testFPDigits)
	assertPoints(t, env, got, [][2]string{{"0", "1"}, {"0", "-1"}})
}

// S4: circle centre (0,0) radius 1 x circle centre (0,2) radius 1 -> tangent
// point (0,1).
func TestIntersectCircleCircle_S4_Tangent(t *testing.T) {
	env := testEnv(t)
	c1 := NewCircle(pt(t, env, "0", "0"), mustScalarStr(t, env, "1"))
	c2 := NewCircle(pt(t, env, "0", "2"), mustScalarStr(t, env, "1"))

	got := IntersectCircleCircle(env, c1, c2, testFPDigits)
	assertPoints(t, env, got, [][2]string{{"0", "1"}})
}

// S5: circle centre (0,0) radius 1 x circle centre (1,0) radius 1 ->
// {(1/2, sqrt(3)/2), (1/2, -sqrt(3)/2)}.
func TestIntersectCircleCircle_S5(t *testing.T) {
	env := testEnv(t)
	c1 := NewCircle(pt(t, env, "0", "0"), mustScalarStr(t, env, "1"))
	c2 := NewCircle(pt(t, env, "1", "0"), mustScalarStr(t, env, "1"))

	got := IntersectCircleCircle(env, c1, c2, testFPDigits)
	if len(got) != 2 {
		t.Fatalf("got %d points, want 2", len(got))
	}

	half := mustScalarStr(t, env, "0.5")
	three := mustScalarStr(t, env, "3")
	sqrt3over2 := env.Quo(env.Sqrt(three), mustScalarStr(t, env, "2"))

	for _, p := range got {
		if env.Cmp(p.X, half) != 0 {
			t.Errorf("point x = %s, want 0.5", p.X)
		}
		absY := env.Abs(p.Y)
		if env.Cmp(absY, sqrt3over2) != 0 {
			t.Errorf("|point y| = %s, want sqrt(3)/2 = %s", absY, sqrt3over2)
		}
	}
}

func TestIntersectCircleCircle_Disjoint(t *testing.T) {
	env := testEnv(t)
	c1 := NewCircle(pt(t, env, "0", "0"), mustScalarStr(t, env, "1"))
	c2 := NewCircle(pt(t, env, "10", "0"), mustScalarStr(t, env, "1"))

	got := IntersectCircleCircle(env, c1, c2, testFPDigits)
	if len(got) != 0 {
		t.Errorf("disjoint circles: got %d points, want 0", len(got))
	}
}

func TestIntersectCircleCircle_Concentric(t *testing.T) {
	env := testEnv(t)
	c1 := NewCircle(pt(t, env, "0", "0"), mustScalarStr(t, env, "1"))
	c2 := NewCircle(pt(t, env, "0", "0"), mustScalarStr(t, env, "2"))

	got := IntersectCircleCircle(env, c1, c2, testFPDigits)
	if len(got) != 0 {
		t.Errorf("concentric circles: got %d points, want 0", len(got))
	}
}

// Testable Property 2: intersect(A,B) == intersect(B,A) as a multiset.
func TestIntersectionSymmetry(t *testing.T) {
	env := testEnv(t)

	l1 := NewLine(pt(t, env, "0", "0"), pt(t, env, "1", "1"))
	l2 := NewLine(pt(t, env, "0", "10"), pt(t, env, "10", "0"))
	if a, b := sortedCoords(env, IntersectLineLine(env, l1, l2, testFPDigits)),
		sortedCoords(env, IntersectLineLine(env, l2, l1, testFPDigits)); !equalStrings(a, b) {
		t.Errorf("line/line not symmetric: %v vs %v", a, b)
	}

	c := NewCircle(pt(t, env, "0", "0"), mustScalarStr(t, env, "1"))
	ll := NewLine(pt(t, env, "-2", "0.5"), pt(t, env, "2", "0.5"))
	fwd := sortedCoords(env, IntersectCircleLine(env, c, ll, testFPDigits))
	back := sortedCoords(env, IntersectCircleLine(env, c, Line{A: ll.B, B: ll.A}, testFPDigits))
	if !equalStrings(fwd, back) {
		t.Errorf("circle/line not symmetric under line endpoint order: %v vs %v", fwd, back)
	}

	c1 := NewCircle(pt(t, env, "0", "0"), mustScalarStr(t, env, "1"))
	c2 := NewCircle(pt(t, env, "1", "0"), mustScalarStr(t, env, "1"))
	if a, b := sortedCoords(env, IntersectCircleCircle(env, c1, c2, testFPDigits)),
		sortedCoords(env, IntersectCircleCircle(env, c2, c1, testFPDigits)); !equalStrings(a, b) {
		t.Errorf("circle/circle not symmetric: %v vs %v", a, b)
	}
}

// Testable Property 6: for every point where is_zero(x), its fingerprint
// equals the fingerprint of exact zero.
func TestFingerprintZeroSnap(t *testing.T) {
	env := testEnv(t)
	tinyX, err := env.FromString("-0.000000000000000000001")
	if err != nil {
		t.Fatalf("FromString: %v", err)
	}
	p := NewPoint(env, tinyX, env.FromInt64(0), testFPDigits)
	zero := NewPoint(env, env.Zero(), env.Zero(), testFPDigits)
	if p.Fingerprint != zero.Fingerprint {
		t.Errorf("fingerprint of near-zero point = %q, want %q (same as exact zero)", p.Fingerprint, zero.Fingerprint)
	}
}

func mustScalarStr(t *testing.T, env *scalar.Env, s string) scalar.Scalar {
	t.Helper()
	v, err := env.FromString(s)
	if err != nil {
		t.Fatalf("FromString(%q): %v", s, err)
	}
	return v
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
