package kifmm

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
)

// bareInverseDistanceKernel is K(x,y) = 1/|x-y|, with no physical
// normalization constant. Registered only for TestFMM_Evaluate_S1, which
// checks FMM against a hand-computed value expressed in terms of this
// literal kernel rather than the 1/(4*pi*r) single-layer potential.
type bareInverseDistanceKernel struct{}

func (bareInverseDistanceKernel) Name() string   { return "test-invr" }
func (bareInverseDistanceKernel) TensorDim() int { return 1 }
func (bareInverseDistanceKernel) EvaluateBatch(obs, obsN, src, srcN [][]float64, params, out []float64) error {
	nObs, nSrc := len(obs), len(src)
	if len(out) != nObs*nSrc {
		return fmt.Errorf("%w: out has length %d, want %d", ErrShapeMismatch, len(out), nObs*nSrc)
	}
	for i := 0; i < nObs; i++ {
		for j := 0; j < nSrc; j++ {
			r := dist(obs[i], src[j])
			if r == 0 {
				out[i*nSrc+j] = 0
				continue
			}
			out[i*nSrc+j] = 1 / r
		}
	}
	return nil
}

func init() {
	RegisterKernel("test-invr", func(params []float64) (Kernel, error) {
		return bareInverseDistanceKernel{}, nil
	})
}

func randomCloud(rng *rand.Rand, n, dims int) ([][]float64, [][]float64) {
	pts := make([][]float64, n)
	normals := make([][]float64, n)
	for i := 0; i < n; i++ {
		p := make([]float64, dims)
		nv := make([]float64, dims)
		var norm float64
		for d := 0; d < dims; d++ {
			p[d] = rng.Float64()*2 - 1
			nv[d] = rng.Float64()*2 - 1
			norm += nv[d] * nv[d]
		}
		norm = math.Sqrt(norm)
		for d := 0; d < dims; d++ {
			nv[d] /= norm
		}
		pts[i] = p
		normals[i] = nv
	}
	return pts, normals
}

func maxRelErr(got, want []float64) float64 {
	var maxErr, maxWant float64
	for i := range want {
		if a := math.Abs(want[i]); a > maxWant {
			maxWant = a
		}
		if d := math.Abs(got[i] - want[i]); d > maxErr {
			maxErr = d
		}
	}
	if maxWant == 0 {
		return maxErr
	}
	return maxErr / maxWant
}

func TestBuildFMM_RejectsInvalidConfig(t *testing.T) {
	pts, normals := gridPoints(4, 3)
	tree, err := BuildTree(pts, normals, 4, Octree)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Order = 1
	if _, err := BuildFMM(tree, tree, cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("got %v, want ErrInvalidConfig", err)
	}
}

func TestBuildFMM_Evaluate_ShapeMismatch(t *testing.T) {
	pts, normals := gridPoints(4, 3)
	tree, err := BuildTree(pts, normals, 4, Octree)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	f, err := BuildFMM(tree, tree, DefaultConfig())
	if err != nil {
		t.Fatalf("BuildFMM: %v", err)
	}
	if _, err := f.Evaluate([]float64{1, 2, 3}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("got %v, want ErrShapeMismatch", err)
	}
}

func TestFMM_Evaluate_MatchesDirectSum_Laplace3D(t *testing.T) {
	rng := rand.New(rand.NewSource(1002))
	pts, normals := randomCloud(rng, 600, 3)
	tree, err := BuildTree(pts, normals, 32, Octree)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Order = 6
	f, err := BuildFMM(tree, tree, cfg)
	if err != nil {
		t.Fatalf("BuildFMM: %v", err)
	}

	q := make([]float64, tree.NumPoints())
	for i := range q {
		q[i] = rng.Float64()*2 - 1
	}

	u, err := f.Evaluate(q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	uExact, err := f.EvaluateP2POnly(q)
	if err != nil {
		t.Fatalf("EvaluateP2POnly: %v", err)
	}

	if relErr := maxRelErr(u, uExact); relErr > 1e-3 {
		t.Errorf("max relative error %.3e, want <= 1e-3", relErr)
	}
}

func TestFMM_Evaluate_MatchesDirectSum_Laplace2D(t *testing.T) {
	rng := rand.New(rand.NewSource(3004))
	pts, normals := randomCloud(rng, 500, 2)
	tree, err := BuildTree(pts, normals, 24, KDTree)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	cfg := DefaultConfig()
	cfg.KernelName = "laplace2d"
	cfg.Order = 8
	f, err := BuildFMM(tree, tree, cfg)
	if err != nil {
		t.Fatalf("BuildFMM: %v", err)
	}

	q := make([]float64, tree.NumPoints())
	for i := range q {
		q[i] = rng.Float64()*2 - 1
	}

	u, err := f.Evaluate(q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	uExact, err := f.EvaluateP2POnly(q)
	if err != nil {
		t.Fatalf("EvaluateP2POnly: %v", err)
	}
	if relErr := maxRelErr(u, uExact); relErr > 1e-2 {
		t.Errorf("max relative error %.3e, want <= 1e-2", relErr)
	}
}

func TestFMM_Evaluate_MatchesDirectSum_Elastic(t *testing.T) {
	rng := rand.New(rand.NewSource(5006))
	pts, normals := randomCloud(rng, 400, 3)
	tree, err := BuildTree(pts, normals, 32, Octree)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	cfg := DefaultConfig()
	cfg.KernelName = "elastic"
	cfg.Params = []float64{1.0, 0.3}
	cfg.Order = 6
	f, err := BuildFMM(tree, tree, cfg)
	if err != nil {
		t.Fatalf("BuildFMM: %v", err)
	}

	q := make([]float64, tree.NumPoints()*3)
	for i := range q {
		q[i] = rng.Float64()*2 - 1
	}

	u, err := f.Evaluate(q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	uExact, err := f.EvaluateP2POnly(q)
	if err != nil {
		t.Fatalf("EvaluateP2POnly: %v", err)
	}
	if relErr := maxRelErr(u, uExact); relErr > 1e-2 {
		t.Errorf("max relative error %.3e, want <= 1e-2", relErr)
	}
}

func TestFMM_Evaluate_DistinctObsSrcTrees(t *testing.T) {
	rng := rand.New(rand.NewSource(7008))
	obsPts, obsNormals := randomCloud(rng, 200, 3)
	srcPts, srcNormals := randomCloud(rng, 300, 3)

	// Separate the two clouds so the MAC can actually find well-separated
	// pairs between them.
	for _, p := range obsPts {
		p[0] += 20
	}

	obsTree, err := BuildTree(obsPts, obsNormals, 20, Octree)
	if err != nil {
		t.Fatalf("BuildTree(obs): %v", err)
	}
	srcTree, err := BuildTree(srcPts, srcNormals, 20, Octree)
	if err != nil {
		t.Fatalf("BuildTree(src): %v", err)
	}

	f, err := BuildFMM(obsTree, srcTree, DefaultConfig())
	if err != nil {
		t.Fatalf("BuildFMM: %v", err)
	}

	q := make([]float64, srcTree.NumPoints())
	for i := range q {
		q[i] = rng.Float64()*2 - 1
	}

	u, err := f.Evaluate(q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	uExact, err := f.EvaluateP2POnly(q)
	if err != nil {
		t.Fatalf("EvaluateP2POnly: %v", err)
	}
	if relErr := maxRelErr(u, uExact); relErr > 1e-3 {
		t.Errorf("max relative error %.3e, want <= 1e-3", relErr)
	}
}

func TestFMM_Evaluate_EmptyTrees(t *testing.T) {
	empty, err := BuildTree(nil, nil, 4, Octree)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	f, err := BuildFMM(empty, empty, DefaultConfig())
	if err != nil {
		t.Fatalf("BuildFMM: %v", err)
	}
	u, err := f.Evaluate(nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(u) != 0 {
		t.Errorf("u = %v, want empty", u)
	}
}

// TestFMM_Evaluate_S1_ExactTwoSourceOneObs is the 1D-embedded-in-2D seed
// scenario: two sources of opposite unit density, one observer, kernel
// 1/|x-y|. u[0] has a closed form, 1/10 - 1/9.
func TestFMM_Evaluate_S1_ExactTwoSourceOneObs(t *testing.T) {
	srcPts := [][]float64{{0, 0}, {1, 0}}
	srcTree, err := BuildTree(srcPts, zeroNormals(2, 2), 1, KDTree)
	if err != nil {
		t.Fatalf("BuildTree(src): %v", err)
	}
	obsPts := [][]float64{{10, 0}}
	obsTree, err := BuildTree(obsPts, zeroNormals(1, 2), 1, KDTree)
	if err != nil {
		t.Fatalf("BuildTree(obs): %v", err)
	}

	cfg := DefaultConfig()
	cfg.KernelName = "test-invr"
	cfg.Order = 8
	cfg.MAC = 0.4
	f, err := BuildFMM(obsTree, srcTree, cfg)
	if err != nil {
		t.Fatalf("BuildFMM: %v", err)
	}

	u, err := f.Evaluate([]float64{1, -1})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	want := 1.0/10 - 1.0/9
	if math.Abs(u[0]-want) > 1e-6 {
		t.Errorf("u[0] = %.9g, want %.9g (to 6 decimals)", u[0], want)
	}
}

// TestFMM_Evaluate_Linearity_Elastic is seed scenario S3: Evaluate must be
// linear in q, i.e. evaluate(a*q1+b*q2) == a*evaluate(q1)+b*evaluate(q2),
// to near machine precision (the FMM approximation is itself a fixed
// linear map, so this holds regardless of truncation order).
func TestFMM_Evaluate_Linearity_Elastic(t *testing.T) {
	rng := rand.New(rand.NewSource(11012))
	pts, normals := randomCloud(rng, 200, 3)
	tree, err := BuildTree(pts, normals, 32, Octree)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}

	cfg := DefaultConfig()
	cfg.KernelName = "elastic"
	cfg.Params = []float64{1.0, 0.3}
	cfg.Order = 6
	f, err := BuildFMM(tree, tree, cfg)
	if err != nil {
		t.Fatalf("BuildFMM: %v", err)
	}

	n := tree.NumPoints() * f.TensorDim()
	q1 := make([]float64, n)
	q2 := make([]float64, n)
	for i := range q1 {
		q1[i] = rng.Float64()*2 - 1
		q2[i] = rng.Float64()*2 - 1
	}
	a, b := rng.Float64()*2-1, rng.Float64()*2-1
	combined := make([]float64, n)
	for i := range combined {
		combined[i] = a*q1[i] + b*q2[i]
	}

	u1, err := f.Evaluate(q1)
	if err != nil {
		t.Fatalf("Evaluate(q1): %v", err)
	}
	u2, err := f.Evaluate(q2)
	if err != nil {
		t.Fatalf("Evaluate(q2): %v", err)
	}
	uCombined, err := f.Evaluate(combined)
	if err != nil {
		t.Fatalf("Evaluate(combined): %v", err)
	}

	want := make([]float64, len(u1))
	for i := range want {
		want[i] = a*u1[i] + b*u2[i]
	}
	if relErr := maxRelErr(uCombined, want); relErr > 1e-10 {
		t.Errorf("linearity violated: max relative error %.3e, want <= 1e-10", relErr)
	}
}

// TestFMM_Evaluate_S6_ClusteredOctantOmitsEmptyChildren is seed scenario
// S6: a tight cluster plus one distant point forces most of the root
// octree node's octants to be empty; those octants must not appear as
// children, and accuracy must still hold against direct P2P.
func TestFMM_Evaluate_S6_ClusteredOctantOmitsEmptyChildren(t *testing.T) {
	rng := rand.New(rand.NewSource(13014))
	pts, normals := randomCloud(rng, 100, 3)
	for _, p := range pts {
		for d := range p {
			p[d] *= 0.05
		}
	}
	pts = append(pts, []float64{10, 10, 10})
	normals = append(normals, []float64{1, 0, 0})

	tree, err := BuildTree(pts, normals, 8, Octree)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	root := tree.Nodes()[0]
	if root.IsLeaf {
		t.Fatalf("root should not be a leaf with 101 points at leaf_capacity=8")
	}
	if len(root.Children) >= 8 {
		t.Errorf("root has %d children, want < 8 (empty octants must be omitted)", len(root.Children))
	}

	cfg := DefaultConfig()
	cfg.Order = 8
	f, err := BuildFMM(tree, tree, cfg)
	if err != nil {
		t.Fatalf("BuildFMM: %v", err)
	}

	q := make([]float64, tree.NumPoints())
	for i := range q {
		q[i] = rng.Float64()*2 - 1
	}
	u, err := f.Evaluate(q)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	uExact, err := f.EvaluateP2POnly(q)
	if err != nil {
		t.Fatalf("EvaluateP2POnly: %v", err)
	}
	if relErr := maxRelErr(u, uExact); relErr > 1e-6 {
		t.Errorf("max relative error %.3e, want <= 1e-6", relErr)
	}
}

// TestFMM_Evaluate_Deterministic is invariant 8: two runs over identical,
// independently-copied inputs must produce bitwise-identical output, even
// though each phase fans out across Config.Workers goroutines.
func TestFMM_Evaluate_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(15016))
	basePts, baseNormals := randomCloud(rng, 300, 3)
	q := make([]float64, 300)
	for i := range q {
		q[i] = rng.Float64()*2 - 1
	}

	copyCloud := func() ([][]float64, [][]float64) {
		pts := make([][]float64, len(basePts))
		normals := make([][]float64, len(baseNormals))
		for i := range basePts {
			pts[i] = append([]float64(nil), basePts[i]...)
			normals[i] = append([]float64(nil), baseNormals[i]...)
		}
		return pts, normals
	}

	run := func() []float64 {
		pts, normals := copyCloud()
		tree, err := BuildTree(pts, normals, 24, Octree)
		if err != nil {
			t.Fatalf("BuildTree: %v", err)
		}
		f, err := BuildFMM(tree, tree, DefaultConfig())
		if err != nil {
			t.Fatalf("BuildFMM: %v", err)
		}
		u, err := f.Evaluate(q)
		if err != nil {
			t.Fatalf("Evaluate: %v", err)
		}
		return u
	}

	u1, u2 := run(), run()
	if len(u1) != len(u2) {
		t.Fatalf("length mismatch: %d vs %d", len(u1), len(u2))
	}
	for i := range u1 {
		if u1[i] != u2[i] {
			t.Errorf("index %d: run1=%g, run2=%g, not bitwise identical", i, u1[i], u2[i])
		}
	}
}
