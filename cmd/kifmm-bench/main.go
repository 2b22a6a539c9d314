// Command kifmm-bench builds a random point cloud, runs the fast
// evaluator against the brute-force reference, and reports wall time and
// accuracy for both.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/kifmm-go/kifmm"
)

func main() {
	var (
		n          = flag.Int("n", 5000, "number of points (obs == src, coincident)")
		order      = flag.Int("order", 6, "translation surface order")
		mac        = flag.Float64("mac", 0.3, "multipole acceptance criterion threshold")
		leafCap    = flag.Int("leaf-capacity", 40, "tree leaf capacity")
		kernelName = flag.String("kernel", "laplace", "kernel name: laplace, laplace2d, elastic")
		dims       = flag.Int("dims", 3, "point dimensionality (2 or 3)")
		seed       = flag.Uint64("seed", 1, "random seed")
		checkExact = flag.Bool("check", true, "also run brute-force P2P and report max relative error")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(int64(*seed)))
	pts := randomPoints(rng, *n, *dims)
	normals := randomUnitNormals(rng, *n, *dims)

	cfg := kifmm.DefaultConfig()
	cfg.Order = *order
	cfg.MAC = *mac
	cfg.LeafCapacity = *leafCap
	cfg.KernelName = *kernelName

	start := time.Now()
	tree, err := kifmm.BuildTree(pts, normals, *leafCap, cfg.TreeKind)
	if err != nil {
		log.Fatalf("build tree: %v", err)
	}
	buildTreeElapsed := time.Since(start)

	start = time.Now()
	f, err := kifmm.BuildFMM(tree, tree, cfg)
	if err != nil {
		log.Fatalf("build fmm: %v", err)
	}
	buildFMMElapsed := time.Since(start)

	q := randomDensities(rng, *n*f.TensorDim())

	start = time.Now()
	u, err := f.Evaluate(q)
	if err != nil {
		log.Fatalf("evaluate: %v", err)
	}
	evalElapsed := time.Since(start)

	fmt.Printf("n=%d dims=%d order=%d mac=%g kernel=%s leaf_capacity=%d\n", *n, *dims, *order, *mac, *kernelName, *leafCap)
	fmt.Printf("build_tree=%s build_fmm=%s evaluate=%s\n", buildTreeElapsed, buildFMMElapsed, evalElapsed)

	if *checkExact {
		start = time.Now()
		uExact, err := f.EvaluateP2POnly(q)
		if err != nil {
			log.Fatalf("evaluate p2p: %v", err)
		}
		p2pElapsed := time.Since(start)

		fmt.Printf("evaluate_p2p=%s max_rel_error=%.3e\n", p2pElapsed, maxRelError(u, uExact))
	}
}

func randomPoints(rng *rand.Rand, n, dims int) [][]float64 {
	pts := make([][]float64, n)
	for i := range pts {
		p := make([]float64, dims)
		for d := range p {
			p[d] = rng.Float64()*2 - 1
		}
		pts[i] = p
	}
	return pts
}

func randomUnitNormals(rng *rand.Rand, n, dims int) [][]float64 {
	normals := make([][]float64, n)
	for i := range normals {
		v := make([]float64, dims)
		var norm float64
		for d := range v {
			v[d] = rng.Float64()*2 - 1
			norm += v[d] * v[d]
		}
		if norm == 0 {
			v[0] = 1
			norm = 1
		}
		inv := 1 / math.Sqrt(norm)
		for d := range v {
			v[d] *= inv
		}
		normals[i] = v
	}
	return normals
}

func randomDensities(rng *rand.Rand, n int) []float64 {
	q := make([]float64, n)
	for i := range q {
		q[i] = rng.Float64()*2 - 1
	}
	return q
}

func maxRelError(got, want []float64) float64 {
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
