package kifmm

import (
	"math"
	"testing"
)

func TestBallContains(t *testing.T) {
	b := Ball{Center: []float64{0, 0, 0}, Radius: 1}
	if !b.Contains([]float64{0.5, 0.5, 0}) {
		t.Error("expected point inside unit ball to be contained")
	}
	if b.Contains([]float64{1, 1, 1}) {
		t.Error("expected point outside unit ball to not be contained")
	}
}

func TestMinEnclosingBall_ContainsAllPoints(t *testing.T) {
	pts := [][]float64{
		{0, 0, 0}, {10, 0, 0}, {0, 10, 0}, {0, 0, 10},
		{3, 4, 5}, {-2, -2, -2}, {1, 1, 1},
	}
	ball := minEnclosingBall(pts, 0, len(pts), 3)
	for i, p := range pts {
		d := dist(ball.Center, p)
		if d > ball.Radius+1e-9 {
			t.Errorf("point %d at distance %g from center, radius is only %g", i, d, ball.Radius)
		}
	}
}

func TestMinEnclosingBall_SinglePoint(t *testing.T) {
	pts := [][]float64{{1, 2, 3}}
	ball := minEnclosingBall(pts, 0, 1, 3)
	if dist(ball.Center, pts[0]) > 1e-12 {
		t.Errorf("single-point ball center = %v, want %v", ball.Center, pts[0])
	}
	if ball.Radius <= 0 {
		t.Errorf("single-point ball radius = %g, want > 0", ball.Radius)
	}
}

func TestMinEnclosingBall_CoincidentPoints(t *testing.T) {
	pts := [][]float64{{1, 1}, {1, 1}, {1, 1}}
	ball := minEnclosingBall(pts, 0, len(pts), 2)
	if ball.Radius <= 0 || ball.Radius > 1e-20 {
		t.Errorf("coincident-point ball radius = %g, want a tiny positive floor", ball.Radius)
	}
}

func TestMinEnclosingBall_Subrange(t *testing.T) {
	pts := [][]float64{{100, 100}, {0, 0}, {1, 0}, {0, 1}, {-100, -100}}
	ball := minEnclosingBall(pts, 1, 4, 2)
	for _, p := range pts[1:4] {
		if dist(ball.Center, p) > ball.Radius+1e-9 {
			t.Errorf("subrange point %v not covered by ball radius %g", p, ball.Radius)
		}
	}
	if dist(ball.Center, pts[0]) <= ball.Radius {
		t.Error("ball built over subrange should not need to cover points outside it")
	}
}

func TestDistSymmetric(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{4, 5, 6}
	if math.Abs(dist(a, b)-dist(b, a)) > 1e-12 {
		t.Error("dist should be symmetric")
	}
}
