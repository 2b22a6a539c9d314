package kifmm

import "math"

// minRadius floors ball radii to prevent infinite recursion on coincident
// points; see the Failure modes note in the tree builder spec.
const minRadius = 1e-30

// Ball is a d-dimensional bounding ball: a center and a radius. Every point
// assigned to a tree node lies inside its node's ball, with tolerance 0.
type Ball struct {
	Center []float64
	Radius float64
}

// Contains reports whether p lies within the ball.
func (b Ball) Contains(p []float64) bool {
	return math.Sqrt(sqDist(b.Center, p)) <= b.Radius
}

func sqDist(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func dist(a, b []float64) float64 {
	return math.Sqrt(sqDist(a, b))
}

// minEnclosingBall computes an approximate smallest enclosing ball for
// pts[start:end] using Ritter's two-pass algorithm: find an extreme pair
// to seed the ball, then grow it to cover every remaining point.
func minEnclosingBall(pts [][]float64, start, end, dims int) Ball {
	n := end - start
	if n <= 0 {
		return Ball{Center: make([]float64, dims), Radius: 0}
	}
	if n == 1 {
		c := make([]float64, dims)
		copy(c, pts[start])
		return Ball{Center: c, Radius: minRadius}
	}

	// Pass 1: pick an arbitrary point, find the farthest point y from it,
	// then the farthest point z from y. The seed ball is centered at the
	// midpoint of y and z.
	x := pts[start]
	y := x
	best := -1.0
	for i := start; i < end; i++ {
		if d := sqDist(x, pts[i]); d > best {
			best = d
			y = pts[i]
		}
	}
	z := y
	best = -1.0
	for i := start; i < end; i++ {
		if d := sqDist(y, pts[i]); d > best {
			best = d
			z = pts[i]
		}
	}

	center := make([]float64, dims)
	for d := 0; d < dims; d++ {
		center[d] = (y[d] + z[d]) / 2
	}
	radius := dist(y, z) / 2

	// Pass 2: grow the ball to cover any point left outside it.
	for i := start; i < end; i++ {
		p := pts[i]
		d := dist(center, p)
		if d > radius {
			grow := (d - radius) / 2
			radius += grow
			for k := 0; k < dims; k++ {
				center[k] += grow * (p[k] - center[k]) / d
			}
		}
	}

	if radius < minRadius {
		radius = minRadius
	}
	return Ball{Center: center, Radius: radius}
}
