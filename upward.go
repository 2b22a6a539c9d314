package kifmm

// computeMultipoles runs the upward pass over srcTree: P2M converts each
// leaf's raw density into an equivalent-surface density, then M2M fuses
// children's equivalent densities into their parent's, ascending height
// by height. The result is indexed by source node index and covers every
// node, since M2L/M2P may target a source node at any level.
func (f *FMM) computeMultipoles(q []float64) ([][]float64, error) {
	src := f.srcTree
	nodes := src.Nodes()
	multipole := make([][]float64, len(nodes))

	leaves := src.Leaves()
	if err := parallelFor(len(leaves), f.cfg.Workers, func(lo, hi int) error {
		for li := lo; li < hi; li++ {
			nodeIdx := leaves[li]
			node := &nodes[nodeIdx]
			m, err := f.p2m(node, q)
			if err != nil {
				return err
			}
			multipole[nodeIdx] = m
		}
		return nil
	}); err != nil {
		return nil, err
	}

	for h := 1; h <= src.MaxHeight(); h++ {
		levelNodes := src.NodesAtHeight(h)
		if err := parallelFor(len(levelNodes), f.cfg.Workers, func(lo, hi int) error {
			for li := lo; li < hi; li++ {
				nodeIdx := levelNodes[li]
				node := &nodes[nodeIdx]
				m, err := f.m2m(node, nodes, multipole)
				if err != nil {
					return err
				}
				multipole[nodeIdx] = m
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	return multipole, nil
}

// p2m evaluates a leaf's own density at its upward check surface, then
// applies U2E to obtain the equivalent-surface density representing that
// leaf to the rest of the tree.
func (f *FMM) p2m(node *Node, q []float64) ([]float64, error) {
	checkSurf := surfaceAt(f.template, node, f.cfg.OuterR)
	checkN := zeroNormals(f.numSurfacePts, f.dims)
	pts := f.srcTree.NodePoints(node)
	normals := f.srcTree.NodeNormals(node)
	density := q[node.Start*f.tensorDim : node.End*f.tensorDim]

	checkPot := make([]float64, f.numSurfacePts*f.tensorDim)
	if err := applyKernel(f.kernel, checkSurf, checkN, pts, normals, f.cfg.Params, density, checkPot); err != nil {
		return nil, err
	}

	op, err := f.u2e(node.Bounds.Radius)
	if err != nil {
		return nil, err
	}
	equiv := make([]float64, f.numSurfacePts*f.tensorDim)
	op.apply(checkPot, equiv)
	return equiv, nil
}

// m2m evaluates every child's equivalent density at the parent's upward
// check surface, sums the contributions, and applies U2E to obtain the
// parent's own equivalent density.
func (f *FMM) m2m(node *Node, nodes []Node, multipole [][]float64) ([]float64, error) {
	checkSurf := surfaceAt(f.template, node, f.cfg.OuterR)
	checkN := zeroNormals(f.numSurfacePts, f.dims)
	checkPot := make([]float64, f.numSurfacePts*f.tensorDim)

	for _, childIdx := range node.Children {
		child := &nodes[childIdx]
		equivSurf := surfaceAt(f.template, child, f.cfg.InnerR)
		equivN := zeroNormals(f.numSurfacePts, f.dims)
		if err := applyKernel(f.kernel, checkSurf, checkN, equivSurf, equivN, f.cfg.Params, multipole[childIdx], checkPot); err != nil {
			return nil, err
		}
	}

	op, err := f.u2e(node.Bounds.Radius)
	if err != nil {
		return nil, err
	}
	equiv := make([]float64, f.numSurfacePts*f.tensorDim)
	op.apply(checkPot, equiv)
	return equiv, nil
}
