package kifmm

// accumulateFarfield runs the far-field half of the downward pass: M2L
// projects a well-separated source node's equivalent density onto an obs
// node's downward check surface, and P2L does the same directly from a
// well-separated leaf source's raw density (when the source side can't
// use an equivalent expansion because it has none coarser than itself).
// Both accumulate into a per-obs-node check-potential buffer, indexed by
// obs node index and sized to cover every node.
func (f *FMM) accumulateFarfield(multipole [][]float64, q []float64) ([][]float64, error) {
	obsNodes := f.obsTree.Nodes()
	srcNodes := f.srcTree.Nodes()

	checkPot := make([][]float64, len(obsNodes))
	for i := range checkPot {
		checkPot[i] = make([]float64, f.numSurfacePts*f.tensorDim)
	}

	apply := func(list CompressedList, fromMultipole bool) error {
		return parallelFor(len(list.ObsNodeIDs), f.cfg.Workers, func(lo, hi int) error {
			for k := lo; k < hi; k++ {
				obsID := list.ObsNodeIDs[k]
				obsNode := &obsNodes[obsID]
				checkSurf := surfaceAt(f.template, obsNode, f.cfg.InnerR)
				checkN := zeroNormals(f.numSurfacePts, f.dims)

				for si := list.ObsSrcStarts[k]; si < list.ObsSrcStarts[k+1]; si++ {
					srcID := list.SrcNodeIDs[si]
					srcNode := &srcNodes[srcID]

					if fromMultipole {
						equivSurf := surfaceAt(f.template, srcNode, f.cfg.InnerR)
						equivN := zeroNormals(f.numSurfacePts, f.dims)
						if err := applyKernel(f.kernel, checkSurf, checkN, equivSurf, equivN, f.cfg.Params, multipole[srcID], checkPot[obsID]); err != nil {
							return err
						}
						continue
					}

					pts := f.srcTree.NodePoints(srcNode)
					normals := f.srcTree.NodeNormals(srcNode)
					density := q[srcNode.Start*f.tensorDim : srcNode.End*f.tensorDim]
					if err := applyKernel(f.kernel, checkSurf, checkN, pts, normals, f.cfg.Params, density, checkPot[obsID]); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}

	if err := apply(f.lists.M2L, true); err != nil {
		return nil, err
	}
	if err := apply(f.lists.P2L, false); err != nil {
		return nil, err
	}
	return checkPot, nil
}

// propagateAndEvaluate sweeps obsTree from its root height down to its
// leaves. At each node, D2E turns the accumulated check potential into a
// local equivalent density; an internal node pushes that density onto
// every child's check-potential buffer via L2L (a child's height is
// always less than its parent's, so it hasn't been visited yet), while a
// leaf node evaluates its density directly onto its own points via L2P,
// adding into u.
func (f *FMM) propagateAndEvaluate(checkPot [][]float64, u []float64) error {
	obsNodes := f.obsTree.Nodes()

	for h := f.obsTree.MaxHeight(); h >= 0; h-- {
		levelNodes := f.obsTree.NodesAtHeight(h)
		err := parallelFor(len(levelNodes), f.cfg.Workers, func(lo, hi int) error {
			for li := lo; li < hi; li++ {
				nodeIdx := levelNodes[li]
				node := &obsNodes[nodeIdx]

				op, err := f.d2e(node.Bounds.Radius)
				if err != nil {
					return err
				}
				equiv := make([]float64, f.numSurfacePts*f.tensorDim)
				op.apply(checkPot[nodeIdx], equiv)

				equivSurf := surfaceAt(f.template, node, f.cfg.OuterR)
				equivN := zeroNormals(f.numSurfacePts, f.dims)

				if node.IsLeaf {
					pts := f.obsTree.NodePoints(node)
					normals := f.obsTree.NodeNormals(node)
					uSlice := u[node.Start*f.tensorDim : node.End*f.tensorDim]
					if err := applyKernel(f.kernel, pts, normals, equivSurf, equivN, f.cfg.Params, equiv, uSlice); err != nil {
						return err
					}
					continue
				}

				for _, childIdx := range node.Children {
					child := &obsNodes[childIdx]
					childCheckSurf := surfaceAt(f.template, child, f.cfg.InnerR)
					childCheckN := zeroNormals(f.numSurfacePts, f.dims)
					if err := applyKernel(f.kernel, childCheckSurf, childCheckN, equivSurf, equivN, f.cfg.Params, equiv, checkPot[childIdx]); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// nearfieldToU adds M2P and P2P contributions directly into u. M2P
// evaluates a well-separated internal source node's equivalent density
// straight onto a leaf obs node's points (skipping a local expansion the
// obs leaf has no further use for); P2P evaluates two not-well-separated
// leaves' raw densities against each other.
func (f *FMM) nearfieldToU(multipole [][]float64, q []float64, u []float64) error {
	obsNodes := f.obsTree.Nodes()
	srcNodes := f.srcTree.Nodes()

	applyM2P := func() error {
		list := f.lists.M2P
		return parallelFor(len(list.ObsNodeIDs), f.cfg.Workers, func(lo, hi int) error {
			for k := lo; k < hi; k++ {
				obsID := list.ObsNodeIDs[k]
				obsNode := &obsNodes[obsID]
				pts := f.obsTree.NodePoints(obsNode)
				normals := f.obsTree.NodeNormals(obsNode)
				uSlice := u[obsNode.Start*f.tensorDim : obsNode.End*f.tensorDim]

				for si := list.ObsSrcStarts[k]; si < list.ObsSrcStarts[k+1]; si++ {
					srcID := list.SrcNodeIDs[si]
					srcNode := &srcNodes[srcID]
					equivSurf := surfaceAt(f.template, srcNode, f.cfg.InnerR)
					equivN := zeroNormals(f.numSurfacePts, f.dims)
					if err := applyKernel(f.kernel, pts, normals, equivSurf, equivN, f.cfg.Params, multipole[srcID], uSlice); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}

	applyP2P := func() error {
		list := f.lists.P2P
		return parallelFor(len(list.ObsNodeIDs), f.cfg.Workers, func(lo, hi int) error {
			for k := lo; k < hi; k++ {
				obsID := list.ObsNodeIDs[k]
				obsNode := &obsNodes[obsID]
				pts := f.obsTree.NodePoints(obsNode)
				normals := f.obsTree.NodeNormals(obsNode)
				uSlice := u[obsNode.Start*f.tensorDim : obsNode.End*f.tensorDim]

				for si := list.ObsSrcStarts[k]; si < list.ObsSrcStarts[k+1]; si++ {
					srcID := list.SrcNodeIDs[si]
					srcNode := &srcNodes[srcID]
					srcPts := f.srcTree.NodePoints(srcNode)
					srcNormals := f.srcTree.NodeNormals(srcNode)
					density := q[srcNode.Start*f.tensorDim : srcNode.End*f.tensorDim]
					if err := applyKernel(f.kernel, pts, normals, srcPts, srcNormals, f.cfg.Params, density, uSlice); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}

	if err := applyM2P(); err != nil {
		return err
	}
	return applyP2P()
}
