// Package kifmm implements a kernel-independent Fast Multipole Method
// (KIFMM) engine for evaluating dense pairwise interactions
//
//	u(x_i) = Σ_j K(x_i, n_i, x_j, n_j) · q_j
//
// over observation points x_i and source points x_j in 2 or 3 dimensions,
// where K is a tensor-valued Green's function and q_j is a per-source
// density. For N observations and M sources, a naive evaluation costs
// O(N·M); this package reduces that to O(N+M) (up to logarithmic factors in
// tree depth) while preserving a user-specified accuracy.
//
// Basic usage:
//
//	obsTree, _ := kifmm.BuildTree(obsPts, obsNormals, 40, kifmm.Octree)
//	srcTree, _ := kifmm.BuildTree(srcPts, srcNormals, 40, kifmm.Octree)
//	cfg := kifmm.DefaultConfig()
//	cfg.KernelName = "laplace"
//	f, err := kifmm.BuildFMM(obsTree, srcTree, cfg)
//	u, err := f.Evaluate(q) // q and u are in tree-reordered order
//
// q and u are expressed in tree-reordered index order; use
// [Tree.OrigIdx] to permute back to caller order.
//
// # Kernels
//
// A kernel is injected by name via Config.KernelName, resolved through the
// package-level kernel registry ([RegisterKernel]). Built-in kernels are
// "laplace" (3D, 1/r, tensor dimension 1), "laplace2d" (2D, log r, tensor
// dimension 1), and "elastic" (3D Kelvin elastostatic displacement, tensor
// dimension 3).
package kifmm
