package kifmm

import "math"

// MakeSurface returns S unit-sphere (dims==3) or unit-circle (dims==2)
// points used as the template for equivalent/check surfaces, where S is
// order-dependent: S = 6*order^2 - 12*order + 8 in 3D, S = 4*order - 4 in
// 2D. Points are deterministic given (order, dims) so operators keyed by
// radius alone can be cached and reused across nodes.
func MakeSurface(order, dims int) [][]float64 {
	if dims == 2 {
		return makeSurface2D(order)
	}
	return makeSurface3D(order)
}

// makeSurface2D places S = 4*order-4 points evenly around the unit
// circle.
func makeSurface2D(order int) [][]float64 {
	s := 4*order - 4
	if s < 4 {
		s = 4
	}
	pts := make([][]float64, s)
	for i := 0; i < s; i++ {
		theta := 2 * math.Pi * float64(i) / float64(s)
		pts[i] = []float64{math.Cos(theta), math.Sin(theta)}
	}
	return pts
}

// makeSurface3D places S = 6*order^2 - 12*order + 8 points on the unit
// sphere via a Fibonacci spiral, which distributes points near-uniformly
// without the pole clustering of a latitude/longitude grid.
func makeSurface3D(order int) [][]float64 {
	s := 6*order*order - 12*order + 8
	if s < 6 {
		s = 6
	}
	pts := make([][]float64, s)
	goldenAngle := math.Pi * (3 - math.Sqrt(5))
	for i := 0; i < s; i++ {
		z := 1 - 2*float64(i)/float64(s-1)
		r := math.Sqrt(math.Max(0, 1-z*z))
		theta := goldenAngle * float64(i)
		pts[i] = []float64{r * math.Cos(theta), r * math.Sin(theta), z}
	}
	return pts
}

// surfaceAt scales and translates a unit template surface to radius
// factor*node.Bounds.Radius centered at node.Bounds.Center.
func surfaceAt(template [][]float64, node *Node, factor float64) [][]float64 {
	return scaledSurface(template, node.Bounds.Center, node.Bounds.Radius*factor)
}

// scaledSurface scales and translates a unit template surface to radius
// r centered at c.
func scaledSurface(template [][]float64, c []float64, r float64) [][]float64 {
	out := make([][]float64, len(template))
	for i, p := range template {
		q := make([]float64, len(p))
		for d := range p {
			q[d] = c[d] + r*p[d]
		}
		out[i] = q
	}
	return out
}

// originSurface scales a unit template surface to radius r centered at
// the origin. U2E/D2E operators are built from origin-centered surfaces
// because the kernels in scope are translation-invariant: the
// check-to-equivalent kernel matrix for a node depends only on its
// radius, never its center, which is what makes per-radius operator
// caching correct (see operatorCache).
func originSurface(template [][]float64, dims int, r float64) [][]float64 {
	return scaledSurface(template, make([]float64, dims), r)
}

// zeroNormals returns n zero vectors of the given dimensionality, used
// as the normals argument for kernel evaluations against equivalent/check
// surface points, which have no physical normal.
func zeroNormals(n, dims int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, dims)
	}
	return out
}
