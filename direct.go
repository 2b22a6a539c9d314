package kifmm

import "fmt"

// DirectP2P evaluates u = K*q by brute-force summation over every
// (obs, src) pair, with no tree or approximation involved. It is the
// accuracy reference against which Evaluate's far-field approximation is
// checked, and is also what EvaluateP2POnly calls internally.
func DirectP2P(k Kernel, obs, obsNormals, src, srcNormals [][]float64, params, q []float64, workers int) ([]float64, error) {
	t := k.TensorDim()
	if len(q) != len(src)*t {
		return nil, fmt.Errorf("%w: q has length %d, want %d", ErrShapeMismatch, len(q), len(src)*t)
	}

	u := make([]float64, len(obs)*t)
	if len(obs) == 0 || len(src) == 0 {
		return u, nil
	}

	err := parallelFor(len(obs), workers, func(lo, hi int) error {
		return applyKernel(k, obs[lo:hi], obsNormals[lo:hi], src, srcNormals, params, q, u[lo*t:hi*t])
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}
