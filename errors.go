package kifmm

import "errors"

// Sentinel error kinds. Concrete failures wrap one of these with fmt.Errorf
// and %w, so callers can test with errors.Is(err, kifmm.ErrInvalidConfig)
// without parsing error strings.
var (
	// ErrInvalidConfig is returned by BuildFMM when the configuration is
	// inconsistent: mac >= 1/(outer_r-1), outer_r <= inner_r, an unknown
	// kernel name, order < 2, or leaf_capacity < 1.
	ErrInvalidConfig = errors.New("kifmm: invalid config")

	// ErrShapeMismatch is returned when a density or normals vector does
	// not have the length the engine expects.
	ErrShapeMismatch = errors.New("kifmm: shape mismatch")

	// ErrNumericallySingular is returned by BuildFMM when a U2E/D2E
	// pseudoinverse's largest singular value is zero (degenerate points).
	ErrNumericallySingular = errors.New("kifmm: numerically singular")

	// ErrKernelError wraps an error returned by an injected kernel's
	// EvaluateBatch. It is fatal to the in-flight call; engine state is
	// left unchanged.
	ErrKernelError = errors.New("kifmm: kernel error")
)
