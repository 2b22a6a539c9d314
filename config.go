package kifmm

import (
	"fmt"
	"runtime"
)

// TreeKind selects the spatial partition strategy used by BuildTree.
type TreeKind int

const (
	// KDTree splits each internal node into 2 children along the single
	// axis of greatest point spread.
	KDTree TreeKind = iota
	// Octree splits each internal node into up to 2^d children, one per
	// sign combination relative to the node's bounding-box midpoint.
	Octree
)

// Config controls FMM precomputation and evaluation behavior.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// InnerR is the equivalent-surface radius factor (upward equivalent /
	// downward check), typically around 1.1. Must be > 0 and < OuterR.
	InnerR float64

	// OuterR is the check-surface radius factor (upward check / downward
	// equivalent), typically around 2.9-3.0. Must be > InnerR.
	OuterR float64

	// Order controls the number of points on the translation surface
	// (accuracy vs. cost). Must be >= 2.
	Order int

	// KernelName selects a kernel from the package registry (see
	// RegisterKernel). Built-ins: "laplace", "laplace2d", "elastic".
	KernelName string

	// Params are passed through to the kernel factory unchanged.
	Params []float64

	// MAC is the multipole acceptance criterion threshold. Must satisfy
	// 0 < MAC < 1/(OuterR-1); farfield approximations are only valid
	// when the check surface cannot intersect the target box.
	MAC float64

	// LeafCapacity is the maximum number of points a tree leaf may hold.
	// Must be >= 1. Default: 40.
	LeafCapacity int

	// SVDThreshold truncates singular values below SVDThreshold*sigmaMax
	// to zero when building U2E/D2E pseudoinverses. Must be >= 0.
	// Default: 1e-15.
	SVDThreshold float64

	// TreeKind selects KD-tree or octree partitioning. Default: Octree.
	TreeKind TreeKind

	// Workers controls the number of goroutines used for parallelizable
	// phases (P2M, M2M, M2L, P2L, M2P, P2P, L2L, L2P). 0 means
	// runtime.NumCPU(). Default: 0 (auto).
	Workers int
}

// DefaultConfig returns a Config with reasonable defaults for a
// Laplace-type kernel in 3D.
func DefaultConfig() Config {
	return Config{
		InnerR:       1.1,
		OuterR:       2.9,
		Order:        6,
		KernelName:   "laplace",
		MAC:          0.3,
		LeafCapacity: 40,
		SVDThreshold: 1e-15,
		TreeKind:     Octree,
	}
}

// applyDefaults fills in zero-valued config fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.LeafCapacity == 0 {
		cfg.LeafCapacity = 40
	}
	if cfg.SVDThreshold == 0 {
		cfg.SVDThreshold = 1e-15
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
}

// validateConfig checks cfg fields per §7 of the spec and returns the
// appropriate sentinel-wrapped error if invalid.
func validateConfig(cfg *Config) error {
	if cfg.OuterR <= cfg.InnerR {
		return fmt.Errorf("%w: OuterR (%g) must be > InnerR (%g)", ErrInvalidConfig, cfg.OuterR, cfg.InnerR)
	}
	if cfg.InnerR <= 0 {
		return fmt.Errorf("%w: InnerR must be > 0, got %g", ErrInvalidConfig, cfg.InnerR)
	}
	if cfg.Order < 2 {
		return fmt.Errorf("%w: Order must be >= 2, got %d", ErrInvalidConfig, cfg.Order)
	}
	macBound := 1.0 / (cfg.OuterR - 1.0)
	if cfg.MAC <= 0 || cfg.MAC >= macBound {
		return fmt.Errorf("%w: MAC must be in (0, %g) for OuterR=%g, got %g", ErrInvalidConfig, macBound, cfg.OuterR, cfg.MAC)
	}
	if cfg.LeafCapacity < 1 {
		return fmt.Errorf("%w: LeafCapacity must be >= 1, got %d", ErrInvalidConfig, cfg.LeafCapacity)
	}
	if cfg.SVDThreshold < 0 {
		return fmt.Errorf("%w: SVDThreshold must be >= 0, got %g", ErrInvalidConfig, cfg.SVDThreshold)
	}
	if _, ok := kernelRegistry[cfg.KernelName]; !ok {
		return fmt.Errorf("%w: unknown kernel %q", ErrInvalidConfig, cfg.KernelName)
	}
	return nil
}
