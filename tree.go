package kifmm

import "fmt"

// Node is a single node in a spatial tree. The range [Start, End) indexes
// the tree's (reordered) point array; Start < End for any node that ever
// existed (nodes are never created for empty ranges). Idx is the node's
// stable position in Tree.nodes.
type Node struct {
	Idx      int
	Start    int
	End      int
	Depth    int
	Height   int
	IsLeaf   bool
	Bounds   Ball
	Children []int
}

// Tree is a flat-array spatial index (KD-tree or octree) over a point
// cloud, built once and read-only thereafter. Points and normals are
// physically reordered in place during construction; OrigIdx records the
// permutation so callers can map tree-order positions back to their own
// input order.
type Tree struct {
	points  [][]float64
	normals [][]float64
	dims    int
	kind    TreeKind
	leafCap int

	idxArray []int
	nodes    []Node

	// nodesByHeight[h] lists every node with Height == h. Height 0 is
	// exactly the set of leaves (height(leaf) = 0 by construction).
	nodesByHeight [][]int
	maxHeight     int
}

// BuildTree partitions points (with parallel unit normals) into a spatial
// tree. leafCapacity bounds the number of points per leaf; kind selects
// KD-tree (2-way) or octree (2^d-way) partitioning. Build is deterministic
// given its inputs.
func BuildTree(points, normals [][]float64, leafCapacity int, kind TreeKind) (*Tree, error) {
	if len(points) != len(normals) {
		return nil, fmt.Errorf("%w: len(normals)=%d != len(points)=%d", ErrShapeMismatch, len(normals), len(points))
	}
	if leafCapacity < 1 {
		return nil, fmt.Errorf("%w: LeafCapacity must be >= 1, got %d", ErrInvalidConfig, leafCapacity)
	}

	n := len(points)
	t := &Tree{kind: kind, leafCap: leafCapacity}
	if n == 0 {
		return t, nil
	}

	t.dims = len(points[0])
	t.points = make([][]float64, n)
	t.normals = make([][]float64, n)
	t.idxArray = make([]int, n)
	for i := range points {
		if len(points[i]) != t.dims || len(normals[i]) != t.dims {
			return nil, fmt.Errorf("%w: inconsistent point/normal dimensionality at index %d", ErrShapeMismatch, i)
		}
		t.points[i] = append([]float64(nil), points[i]...)
		t.normals[i] = append([]float64(nil), normals[i]...)
		t.idxArray[i] = i
	}

	t.buildNode(0, n, 0)
	t.computeHeights()
	return t, nil
}

func (t *Tree) swap(i, j int) {
	t.points[i], t.points[j] = t.points[j], t.points[i]
	t.normals[i], t.normals[j] = t.normals[j], t.normals[i]
	t.idxArray[i], t.idxArray[j] = t.idxArray[j], t.idxArray[i]
}

// buildNode recursively builds the tree for points[start:end) and returns
// the new node's index. Nodes are appended in pre-order: a parent's index
// is always smaller than any of its descendants'.
func (t *Tree) buildNode(start, end, depth int) int {
	idx := len(t.nodes)
	t.nodes = append(t.nodes, Node{})
	bounds := minEnclosingBall(t.points, start, end, t.dims)

	count := end - start
	if count <= t.leafCap || bounds.Radius <= minRadius {
		t.nodes[idx] = Node{Idx: idx, Start: start, End: end, Depth: depth, IsLeaf: true, Bounds: bounds}
		return idx
	}

	children := t.partition(start, end, depth)
	if len(children) == 0 {
		// Splitting didn't separate the range (degenerate/collinear
		// points); stop here rather than recursing forever.
		t.nodes[idx] = Node{Idx: idx, Start: start, End: end, Depth: depth, IsLeaf: true, Bounds: bounds}
		return idx
	}

	t.nodes[idx] = Node{Idx: idx, Start: start, End: end, Depth: depth, IsLeaf: false, Bounds: bounds, Children: children}
	return idx
}

// partition splits points[start:end) into child ranges and recursively
// builds them, returning the (non-empty) children's node indices.
func (t *Tree) partition(start, end, depth int) []int {
	if t.kind == KDTree {
		return t.partitionKD(start, end, depth)
	}
	return t.partitionOctree(start, end, depth)
}

// partitionKD splits along the single axis of greatest point spread, by
// sign relative to that axis's midpoint (not the data median).
func (t *Tree) partitionKD(start, end, depth int) []int {
	axis, mid, ok := t.longestAxisMidpoint(start, end)
	if !ok {
		return nil
	}

	lo, hi := start, end-1
	for lo <= hi {
		for lo <= hi && t.points[lo][axis] < mid {
			lo++
		}
		for lo <= hi && t.points[hi][axis] >= mid {
			hi--
		}
		if lo < hi {
			t.swap(lo, hi)
			lo++
			hi--
		}
	}
	split := lo

	if split == start || split == end {
		return nil // degenerate: every point landed on one side
	}

	left := t.buildNode(start, split, depth+1)
	right := t.buildNode(split, end, depth+1)
	return []int{left, right}
}

// partitionOctree splits into up to 2^dims children, one per sign
// combination of each axis relative to the node's bounding-box midpoint.
func (t *Tree) partitionOctree(start, end, depth int) []int {
	mid, ok := t.boxMidpoint(start, end)
	if !ok {
		return nil
	}

	n := end - start
	numBuckets := 1 << t.dims
	codes := make([]int, n)
	counts := make([]int, numBuckets)
	for i := 0; i < n; i++ {
		code := 0
		p := t.points[start+i]
		for d := 0; d < t.dims; d++ {
			if p[d] >= mid[d] {
				code |= 1 << d
			}
		}
		codes[i] = code
		counts[code]++
	}

	nonEmpty := 0
	for _, c := range counts {
		if c > 0 {
			nonEmpty++
		}
	}
	if nonEmpty <= 1 {
		return nil // degenerate: every point landed in the same octant
	}

	offsets := make([]int, numBuckets+1)
	for c := 0; c < numBuckets; c++ {
		offsets[c+1] = offsets[c] + counts[c]
	}

	tmpPts := make([][]float64, n)
	tmpNorm := make([][]float64, n)
	tmpIdx := make([]int, n)
	cursor := append([]int(nil), offsets[:numBuckets]...)
	for i := 0; i < n; i++ {
		code := codes[i]
		pos := cursor[code]
		cursor[code]++
		tmpPts[pos] = t.points[start+i]
		tmpNorm[pos] = t.normals[start+i]
		tmpIdx[pos] = t.idxArray[start+i]
	}
	copy(t.points[start:end], tmpPts)
	copy(t.normals[start:end], tmpNorm)
	copy(t.idxArray[start:end], tmpIdx)

	var children []int
	for c := 0; c < numBuckets; c++ {
		cs, ce := start+offsets[c], start+offsets[c+1]
		if cs == ce {
			continue
		}
		children = append(children, t.buildNode(cs, ce, depth+1))
	}
	return children
}

// longestAxisMidpoint returns the axis of greatest point spread in
// points[start:end) and that axis's midpoint value. ok is false if every
// point coincides (no spread on any axis).
func (t *Tree) longestAxisMidpoint(start, end int) (axis int, mid float64, ok bool) {
	bestSpread := -1.0
	var bestMin, bestMax float64
	for d := 0; d < t.dims; d++ {
		lo, hi := t.points[start][d], t.points[start][d]
		for i := start + 1; i < end; i++ {
			v := t.points[i][d]
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		if spread := hi - lo; spread > bestSpread {
			bestSpread = spread
			axis = d
			bestMin, bestMax = lo, hi
		}
	}
	if bestSpread <= 0 {
		return 0, 0, false
	}
	return axis, (bestMin + bestMax) / 2, true
}

// boxMidpoint returns the per-axis midpoint of points[start:end)'s
// bounding box. ok is false if the box has zero extent on every axis.
func (t *Tree) boxMidpoint(start, end int) ([]float64, bool) {
	lo := append([]float64(nil), t.points[start]...)
	hi := append([]float64(nil), t.points[start]...)
	for i := start + 1; i < end; i++ {
		p := t.points[i]
		for d := 0; d < t.dims; d++ {
			if p[d] < lo[d] {
				lo[d] = p[d]
			}
			if p[d] > hi[d] {
				hi[d] = p[d]
			}
		}
	}
	mid := make([]float64, t.dims)
	var spread float64
	for d := 0; d < t.dims; d++ {
		mid[d] = (lo[d] + hi[d]) / 2
		spread += hi[d] - lo[d]
	}
	return mid, spread > 0
}

// computeHeights fills Height bottom-up: height(leaf) = 0,
// height(internal) = 1 + max(height(children)). Since children are always
// appended after their parent, iterating nodes in reverse index order
// guarantees every child's height is known before its parent's.
func (t *Tree) computeHeights() {
	for i := len(t.nodes) - 1; i >= 0; i-- {
		n := &t.nodes[i]
		if n.IsLeaf {
			n.Height = 0
			continue
		}
		h := 0
		for _, c := range n.Children {
			if ch := t.nodes[c].Height + 1; ch > h {
				h = ch
			}
		}
		n.Height = h
	}

	maxHeight := 0
	for _, n := range t.nodes {
		if n.Height > maxHeight {
			maxHeight = n.Height
		}
	}
	t.maxHeight = maxHeight
	t.nodesByHeight = make([][]int, maxHeight+1)
	for _, n := range t.nodes {
		t.nodesByHeight[n.Height] = append(t.nodesByHeight[n.Height], n.Idx)
	}
}

// NumPoints returns the number of points in the tree.
func (t *Tree) NumPoints() int { return len(t.points) }

// Dims returns the point dimensionality (2 or 3).
func (t *Tree) Dims() int { return t.dims }

// Nodes returns the tree's flat node array, root first.
func (t *Tree) Nodes() []Node { return t.nodes }

// MaxHeight returns the height of the root (0 for a single-leaf tree).
func (t *Tree) MaxHeight() int { return t.maxHeight }

// NodesAtHeight returns every node (leaf or internal) with Height == h.
// NodesAtHeight(0) is exactly the set of leaves.
func (t *Tree) NodesAtHeight(h int) []int {
	if h < 0 || h >= len(t.nodesByHeight) {
		return nil
	}
	return t.nodesByHeight[h]
}

// Leaves returns every leaf node's index, in tree pre-order.
func (t *Tree) Leaves() []int { return t.NodesAtHeight(0) }

// OrigIdx returns the permutation mapping tree-order position to original
// input position: OrigIdx()[newPosition] = originalPosition.
func (t *Tree) OrigIdx() []int { return t.idxArray }

// Points returns the tree's reordered point slice (do not mutate).
func (t *Tree) Points() [][]float64 { return t.points }

// Normals returns the tree's reordered normal slice (do not mutate).
func (t *Tree) Normals() [][]float64 { return t.normals }

// NodePoints returns the points owned by node n.
func (t *Tree) NodePoints(n *Node) [][]float64 { return t.points[n.Start:n.End] }

// NodeNormals returns the normals owned by node n.
func (t *Tree) NodeNormals(n *Node) [][]float64 { return t.normals[n.Start:n.End] }
