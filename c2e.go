package kifmm

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// operator is a dense linear map from a check-surface potential vector to
// an equivalent-surface density vector (a U2E or D2E pseudoinverse),
// built once per distinct (radius, direction) and shared across every
// node at that radius.
type operator struct {
	rows, cols int
	data       []float64 // row-major, rows x cols
}

func (op *operator) apply(in, out []float64) {
	for i := 0; i < op.rows; i++ {
		var sum float64
		base := i * op.cols
		for j := 0; j < op.cols; j++ {
			sum += op.data[base+j] * in[j]
		}
		out[i] += sum
	}
}

// solveC2E builds the pseudoinverse of the check-to-equivalent kernel
// matrix via truncated SVD: singular values below threshold*sigmaMax are
// treated as zero, which regularizes the otherwise ill-conditioned
// check-to-equivalent map (see Rationale in the FMM operator spec).
// The kernel matrix has nCheck*T rows and nEquiv*T columns, laid out as
// Kernel.EvaluateBatch fills it, so tensor kernels (T > 1) are handled in
// this single call. Returns the (nEquiv*T) x (nCheck*T) pseudoinverse,
// row-major.
func solveC2E(k Kernel, check, checkN, equiv, equivN [][]float64, params []float64, threshold float64) (*operator, error) {
	t := k.TensorDim()
	nCheck, nEquiv := len(check), len(equiv)
	rows, cols := nCheck*t, nEquiv*t

	buf := make([]float64, rows*cols)
	if err := k.EvaluateBatch(check, checkN, equiv, equivN, params, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKernelError, err)
	}
	m := mat.NewDense(rows, cols, buf)

	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: SVD factorization failed", ErrNumericallySingular)
	}

	sv := svd.Values(nil)
	if len(sv) == 0 || sv[0] <= 0 {
		return nil, fmt.Errorf("%w: largest singular value is zero", ErrNumericallySingular)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	cutoff := threshold * sv[0]
	sInv := make([]float64, len(sv))
	for i, s := range sv {
		if s > cutoff {
			sInv[i] = 1 / s
		}
	}

	// pinv = V * Sinv * U^T, shape cols x rows.
	k2 := len(sv)
	pinv := make([]float64, cols*rows)
	for i := 0; i < cols; i++ {
		for j := 0; j < rows; j++ {
			var sum float64
			for s := 0; s < k2; s++ {
				sum += v.At(i, s) * sInv[s] * u.At(j, s)
			}
			pinv[i*rows+j] = sum
		}
	}

	if !allFinite(pinv) {
		return nil, fmt.Errorf("%w: pseudoinverse contains non-finite values", ErrNumericallySingular)
	}

	return &operator{rows: cols, cols: rows, data: pinv}, nil
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// quantizeRadius rounds r to the nearest power of two, so that nodes with
// near-identical radii (floating-point jitter from repeated bisection)
// share the same cached operator, per the operator-cache sharing note in
// the FMM spec.
func quantizeRadius(r float64) float64 {
	if r <= 0 {
		return 0
	}
	return math.Exp2(math.Round(math.Log2(r)))
}

// operatorCache memoizes U2E/D2E operators by quantized node radius,
// shared across every node at that radius regardless of center (the
// kernels in scope are translation-invariant, so a concentric pair of
// surfaces depends only on their radii).
type operatorCache struct {
	mu    sync.Mutex
	byKey map[opKey]*operator
}

type opKey struct {
	radius    float64
	direction uint8 // 0 = upward (U2E), 1 = downward (D2E)
}

func newOperatorCache() *operatorCache {
	return &operatorCache{byKey: make(map[opKey]*operator)}
}

// getOrBuild returns the cached operator for (radius, direction),
// building it with build if absent.
func (c *operatorCache) getOrBuild(radius float64, direction uint8, build func() (*operator, error)) (*operator, error) {
	key := opKey{radius: quantizeRadius(radius), direction: direction}

	c.mu.Lock()
	if op, ok := c.byKey[key]; ok {
		c.mu.Unlock()
		return op, nil
	}
	c.mu.Unlock()

	op, err := build()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.byKey[key] = op
	c.mu.Unlock()
	return op, nil
}
