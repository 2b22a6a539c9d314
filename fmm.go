package kifmm

import "fmt"

// FMM is a precomputed kernel-independent Fast Multipole Method engine
// bound to a fixed pair of trees, kernel, and configuration. Build once
// with BuildFMM and reuse across many densities via Evaluate; only the
// operator cache and interaction lists are shared state, so a single FMM
// may safely serve concurrent Evaluate calls with distinct q.
type FMM struct {
	obsTree, srcTree *Tree
	cfg              Config
	kernel           Kernel
	template         [][]float64
	dims, tensorDim  int
	numSurfacePts    int
	lists            InteractionLists
	cache            *operatorCache
}

// BuildFMM validates cfg, resolves its kernel, runs the dual-tree
// traversal to classify every obs/src node pair, builds the U2E operators
// for every source node radius and the D2E operators for every
// observation node radius, and returns an FMM ready for repeated Evaluate
// calls.
func BuildFMM(obsTree, srcTree *Tree, cfg Config) (*FMM, error) {
	applyDefaults(&cfg)

	dims := 3
	switch {
	case srcTree.NumPoints() > 0:
		dims = srcTree.Dims()
	case obsTree.NumPoints() > 0:
		dims = obsTree.Dims()
	}
	if obsTree.NumPoints() > 0 && srcTree.NumPoints() > 0 && obsTree.Dims() != srcTree.Dims() {
		return nil, fmt.Errorf("%w: obsTree has dims %d, srcTree has dims %d", ErrShapeMismatch, obsTree.Dims(), srcTree.Dims())
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	kernel, err := lookupKernel(cfg)
	if err != nil {
		return nil, err
	}

	template := MakeSurface(cfg.Order, dims)

	f := &FMM{
		obsTree:       obsTree,
		srcTree:       srcTree,
		cfg:           cfg,
		kernel:        kernel,
		template:      template,
		dims:          dims,
		tensorDim:     kernel.TensorDim(),
		numSurfacePts: len(template),
		lists:         traverse(obsTree, srcTree, cfg.MAC),
		cache:         newOperatorCache(),
	}

	srcNodes, obsNodes := srcTree.Nodes(), obsTree.Nodes()
	for i := range srcNodes {
		if _, err := f.u2e(srcNodes[i].Bounds.Radius); err != nil {
			return nil, err
		}
	}
	for i := range obsNodes {
		if _, err := f.d2e(obsNodes[i].Bounds.Radius); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Evaluate computes u = K*q for a density q given in srcTree's
// tree-reordered index order, returning u in obsTree's tree-reordered
// index order. Use Tree.OrigIdx to map either back to caller order.
func (f *FMM) Evaluate(q []float64) ([]float64, error) {
	want := f.srcTree.NumPoints() * f.tensorDim
	if len(q) != want {
		return nil, fmt.Errorf("%w: q has length %d, want %d", ErrShapeMismatch, len(q), want)
	}

	multipole, err := f.computeMultipoles(q)
	if err != nil {
		return nil, err
	}

	u := make([]float64, f.obsTree.NumPoints()*f.tensorDim)

	checkPot, err := f.accumulateFarfield(multipole, q)
	if err != nil {
		return nil, err
	}
	if err := f.propagateAndEvaluate(checkPot, u); err != nil {
		return nil, err
	}
	if err := f.nearfieldToU(multipole, q, u); err != nil {
		return nil, err
	}
	return u, nil
}

// TensorDim returns T, the per-point tensor dimension of the resolved
// kernel (1 for scalar kernels, 3 for the elastic kernel).
func (f *FMM) TensorDim() int { return f.tensorDim }

// EvaluateP2POnly computes u = K*q by brute-force direct summation,
// bypassing the tree entirely. Useful as an accuracy reference for
// Evaluate; costs O(N*M).
func (f *FMM) EvaluateP2POnly(q []float64) ([]float64, error) {
	want := f.srcTree.NumPoints() * f.tensorDim
	if len(q) != want {
		return nil, fmt.Errorf("%w: q has length %d, want %d", ErrShapeMismatch, len(q), want)
	}
	return DirectP2P(f.kernel, f.obsTree.Points(), f.obsTree.Normals(), f.srcTree.Points(), f.srcTree.Normals(), f.cfg.Params, q, f.cfg.Workers)
}

// u2e returns the upward check-to-equivalent pseudoinverse for radius r,
// building and caching it on first use.
func (f *FMM) u2e(r float64) (*operator, error) {
	return f.cache.getOrBuild(r, 0, func() (*operator, error) {
		equiv := originSurface(f.template, f.dims, f.cfg.InnerR*r)
		check := originSurface(f.template, f.dims, f.cfg.OuterR*r)
		n := zeroNormals(f.numSurfacePts, f.dims)
		return solveC2E(f.kernel, check, n, equiv, n, f.cfg.Params, f.cfg.SVDThreshold)
	})
}

// d2e returns the downward check-to-equivalent pseudoinverse for radius
// r. The downward pass mirrors the upward one inside-out: its equivalent
// surface sits at OuterR and its check surface at InnerR.
func (f *FMM) d2e(r float64) (*operator, error) {
	return f.cache.getOrBuild(r, 1, func() (*operator, error) {
		equiv := originSurface(f.template, f.dims, f.cfg.OuterR*r)
		check := originSurface(f.template, f.dims, f.cfg.InnerR*r)
		n := zeroNormals(f.numSurfacePts, f.dims)
		return solveC2E(f.kernel, check, n, equiv, n, f.cfg.Params, f.cfg.SVDThreshold)
	})
}
