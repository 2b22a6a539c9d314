package kifmm

import (
	"math"
	"sort"
)

// CompressedList is a CSR-style encoding of an observer-node -> list of
// source-node pairings: for obs-node index k (0-based position in
// ObsNodeIDs), its source nodes are
// SrcNodeIDs[ObsSrcStarts[k]:ObsSrcStarts[k+1]].
type CompressedList struct {
	ObsNodeIDs   []int
	ObsSrcStarts []int
	SrcNodeIDs   []int
}

// compress groups (obsNodeID, srcNodeID) pairs by obsNodeID, preserving
// each obs node's first-appearance order and, within an obs node, the
// order of its pairs. One obs node's pairs need not be contiguous in the
// input; they are gathered through a map.
func compress(pairs [][2]int) CompressedList {
	firstSeen := make(map[int]int, len(pairs))
	var obsIDs []int
	groups := make(map[int][]int, len(pairs))
	for _, p := range pairs {
		obs, src := p[0], p[1]
		if _, ok := firstSeen[obs]; !ok {
			firstSeen[obs] = len(obsIDs)
			obsIDs = append(obsIDs, obs)
		}
		groups[obs] = append(groups[obs], src)
	}

	starts := make([]int, len(obsIDs)+1)
	var srcIDs []int
	for i, obs := range obsIDs {
		starts[i] = len(srcIDs)
		srcIDs = append(srcIDs, groups[obs]...)
	}
	starts[len(obsIDs)] = len(srcIDs)

	return CompressedList{ObsNodeIDs: obsIDs, ObsSrcStarts: starts, SrcNodeIDs: srcIDs}
}

// macWellSeparated reports whether an obs/src node pair is well-separated
// under the multipole acceptance criterion, requiring the stricter of the
// spec's two equivalent formulations to hold:
//
//	d > (r_o + r_s) / mac
//	max(r_o, r_s) / (d - min(r_o, r_s)) < mac
func macWellSeparated(obsBall, srcBall Ball, mac float64) bool {
	d := dist(obsBall.Center, srcBall.Center)
	ro, rs := obsBall.Radius, srcBall.Radius

	if d <= (ro+rs)/mac {
		return false
	}
	minR, maxR := math.Min(ro, rs), math.Max(ro, rs)
	denom := d - minR
	if denom <= 0 || maxR/denom >= mac {
		return false
	}
	return true
}

// InteractionLists bundles the four dual-tree interaction categories
// produced by traverse: M2L and P2L/M2P approximate well-separated pairs
// via translation operators, P2P evaluates near pairs directly.
type InteractionLists struct {
	M2L CompressedList // obs internal/leaf <-> src internal/leaf, both well-separated & same leaf-status, or both internal
	P2L CompressedList // obs internal, src leaf, well-separated
	M2P CompressedList // obs leaf, src internal, well-separated
	P2P CompressedList // obs leaf, src leaf, not well-separated
}

// traverse walks obsTree and srcTree together, classifying every node
// pair by the multipole acceptance criterion. A well-separated pair is
// resolved immediately by node leaf-status: M2P when only the obs side is
// a leaf, P2L when only the src side is a leaf, and M2L otherwise (both
// leaves or both internal). A not-well-separated pair either contributes
// a direct P2P pair (both leaves) or recurses into the non-leaf side.
// When neither side is a leaf, the side with the larger bounding radius
// is descended (ties favor descending the source side), matching the
// teacher's descend-the-larger-node dual-tree rule. Every returned list
// orders obs nodes by obs-tree pre-order and each obs node's sources by
// src-tree pre-order.
func traverse(obsTree, srcTree *Tree, mac float64) InteractionLists {
	var m2l, p2l, m2p, p2p [][2]int
	if obsTree.NumPoints() == 0 || srcTree.NumPoints() == 0 {
		return InteractionLists{compress(m2l), compress(p2l), compress(m2p), compress(p2p)}
	}

	obsNodes, srcNodes := obsTree.Nodes(), srcTree.Nodes()

	var rec func(oi, si int)
	rec = func(oi, si int) {
		obsNode, srcNode := &obsNodes[oi], &srcNodes[si]

		if macWellSeparated(obsNode.Bounds, srcNode.Bounds, mac) {
			switch {
			case obsNode.IsLeaf && !srcNode.IsLeaf:
				m2p = append(m2p, [2]int{oi, si})
			case !obsNode.IsLeaf && srcNode.IsLeaf:
				p2l = append(p2l, [2]int{oi, si})
			default:
				m2l = append(m2l, [2]int{oi, si})
			}
			return
		}

		if obsNode.IsLeaf && srcNode.IsLeaf {
			p2p = append(p2p, [2]int{oi, si})
			return
		}
		if srcNode.IsLeaf {
			for _, c := range obsNode.Children {
				rec(c, si)
			}
			return
		}
		if obsNode.IsLeaf {
			for _, c := range srcNode.Children {
				rec(oi, c)
			}
			return
		}
		if obsNode.Bounds.Radius > srcNode.Bounds.Radius {
			for _, c := range obsNode.Children {
				rec(c, si)
			}
			return
		}
		for _, c := range srcNode.Children {
			rec(oi, c)
		}
	}
	rec(0, 0)

	// Node indices are tree pre-order positions, so sorting by (obs, src)
	// index gives the pre-order listing on both sides.
	inPreorder := func(pairs [][2]int) CompressedList {
		sort.Slice(pairs, func(i, j int) bool {
			if pairs[i][0] != pairs[j][0] {
				return pairs[i][0] < pairs[j][0]
			}
			return pairs[i][1] < pairs[j][1]
		})
		return compress(pairs)
	}
	return InteractionLists{
		M2L: inPreorder(m2l),
		P2L: inPreorder(p2l),
		M2P: inPreorder(m2p),
		P2P: inPreorder(p2p),
	}
}
