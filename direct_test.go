package kifmm

import (
	"errors"
	"math"
	"testing"
)

func TestDirectP2P_MatchesHandComputedSum(t *testing.T) {
	k, _ := newLaplaceKernel(nil)
	obs := [][]float64{{0, 0, 0}}
	obsN := zeroNormals(1, 3)
	src := [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	srcN := zeroNormals(3, 3)
	q := []float64{1, 2, 3}

	u, err := DirectP2P(k, obs, obsN, src, srcN, nil, q, 4)
	if err != nil {
		t.Fatalf("DirectP2P: %v", err)
	}
	want := (1 + 2 + 3) / (4 * math.Pi)
	if math.Abs(u[0]-want) > 1e-12 {
		t.Errorf("u[0] = %g, want %g", u[0], want)
	}
}

func TestDirectP2P_ShapeMismatch(t *testing.T) {
	k, _ := newLaplaceKernel(nil)
	obs := [][]float64{{0, 0, 0}}
	src := [][]float64{{1, 0, 0}, {0, 1, 0}}
	_, err := DirectP2P(k, obs, obs, src, src, nil, []float64{1}, 4)
	if !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("got %v, want ErrShapeMismatch", err)
	}
}

func TestDirectP2P_EmptySets(t *testing.T) {
	k, _ := newLaplaceKernel(nil)
	u, err := DirectP2P(k, nil, nil, nil, nil, nil, nil, 4)
	if err != nil {
		t.Fatalf("DirectP2P: %v", err)
	}
	if len(u) != 0 {
		t.Errorf("u = %v, want empty", u)
	}
}

func TestDirectP2P_WorkerCountDoesntChangeResult(t *testing.T) {
	k, _ := newLaplaceKernel(nil)
	n := 37
	obs, obsN := gridPoints(7, 3)
	obs, obsN = obs[:n], obsN[:n]
	src, srcN := gridPoints(7, 3)
	src, srcN = src[:n], srcN[:n]
	q := make([]float64, n)
	for i := range q {
		q[i] = float64(i%5) - 2
	}

	u1, err := DirectP2P(k, obs, obsN, src, srcN, nil, q, 1)
	if err != nil {
		t.Fatalf("DirectP2P (1 worker): %v", err)
	}
	u8, err := DirectP2P(k, obs, obsN, src, srcN, nil, q, 8)
	if err != nil {
		t.Fatalf("DirectP2P (8 workers): %v", err)
	}
	for i := range u1 {
		if math.Abs(u1[i]-u8[i]) > 1e-12 {
			t.Errorf("index %d: single-worker=%g, 8-worker=%g", i, u1[i], u8[i])
		}
	}
}
