package kifmm

import "fmt"

// Kernel evaluates a tensor-valued Green's function between observation
// and source point sets. TensorDim reports T, the per-point tensor
// dimension (1 for scalar kernels like Laplace, 3 for vector kernels like
// the elastic Kelvin solution).
type Kernel interface {
	// Name identifies the kernel, e.g. "laplace" or "elastic".
	Name() string

	// TensorDim returns T.
	TensorDim() int

	// EvaluateBatch fills out with K(obs[i], obsNormals[i], src[j],
	// srcNormals[j]) for every (i, j) pair, flattened row-major as
	// out[((i*T+a)*nSrc+j)*T+b] for tensor components a, b in [0, T).
	// len(out) must equal len(obs)*T*len(src)*T. params is Config.Params,
	// threaded through on every call so a kernel may be a pure function of
	// it; the built-in kernels instead resolve params once in their
	// factory and ignore the per-call copy.
	EvaluateBatch(obs, obsNormals, src, srcNormals [][]float64, params, out []float64) error
}

// KernelFactory builds a Kernel from user-supplied parameters (e.g. a
// shear modulus and Poisson ratio for an elastic kernel). params is
// Config.Params, passed through unchanged.
type KernelFactory func(params []float64) (Kernel, error)

var kernelRegistry = make(map[string]KernelFactory)

// RegisterKernel adds a named kernel factory to the package-level
// registry, making it selectable via Config.KernelName. Intended to be
// called from an init function; not safe for concurrent use with
// BuildFMM.
func RegisterKernel(name string, factory KernelFactory) {
	kernelRegistry[name] = factory
}

// lookupKernel resolves Config.KernelName and Config.Params to a Kernel
// instance.
func lookupKernel(cfg Config) (Kernel, error) {
	factory, ok := kernelRegistry[cfg.KernelName]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kernel %q", ErrInvalidConfig, cfg.KernelName)
	}
	k, err := factory(cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKernelError, err)
	}
	return k, nil
}

// applyKernel evaluates k between obs/src surfaces (or point sets) and
// applies the resulting dense operator to density q, accumulating into
// out. density q has length len(src)*T, out has length len(obs)*T. A
// kernel failure is returned wrapped in ErrKernelError.
func applyKernel(k Kernel, obs, obsN, src, srcN [][]float64, params, q, out []float64) error {
	t := k.TensorDim()
	nObs, nSrc := len(obs), len(src)
	buf := make([]float64, nObs*t*nSrc*t)
	if err := k.EvaluateBatch(obs, obsN, src, srcN, params, buf); err != nil {
		return fmt.Errorf("%w: %v", ErrKernelError, err)
	}
	for i := 0; i < nObs; i++ {
		for a := 0; a < t; a++ {
			var sum float64
			base := (i*t + a) * nSrc * t
			for j := 0; j < nSrc; j++ {
				for b := 0; b < t; b++ {
					sum += buf[base+j*t+b] * q[j*t+b]
				}
			}
			out[i*t+a] += sum
		}
	}
	return nil
}
