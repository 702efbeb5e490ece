package ops_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/autodiff/ops"
	"github.com/born-ml/tensorcore/internal/backend/cpu"
	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// dev is shared so constants captured by test functions live on the same
// device as the inputs.
var dev = cpu.NewWithConfig(cpu.Config{Parallel: parallel.Sequential()})

func leaf(t *testing.T, shape tensor.Shape, data []float64) *autodiff.Tensor[float64] {
	t.Helper()
	s, err := tensor.FromSlice(dev, shape, data)
	require.NoError(t, err)
	return autodiff.NewTensor(s)
}

func values(t *testing.T, x *autodiff.Tensor[float64]) []float64 {
	t.Helper()
	v, err := x.Values()
	require.NoError(t, err)
	return v
}

// ramp returns n deterministic nonzero values in [-1, 1).
func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64((i*7)%11)/5.5 - 1
	}
	return out
}

// distinct returns n < 17 pairwise distinct values in [-1, 1).
func distinct(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64((i*7)%17)/8.5 - 1
	}
	return out
}

// positive returns n deterministic values in [0.5, 2).
func positive(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 + float64((i*5)%7)*0.25
	}
	return out
}

type fn func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error)

// lossOf sums f(x) to a scalar without tracing.
func lossOf(t *testing.T, f fn, shape tensor.Shape, data []float64) float64 {
	t.Helper()
	y, err := f(leaf(t, shape, data))
	require.NoError(t, err)
	sum, err := ops.SumTo(y)
	require.NoError(t, err)
	return values(t, sum)[0]
}

// gradOf returns d(sum f(x))/dx computed by the tape.
func gradOf(t *testing.T, f fn, shape tensor.Shape, data []float64) []float64 {
	t.Helper()
	tape := autodiff.NewTape()
	x := leaf(t, shape, data).Trace(tape)
	y, err := f(x)
	require.NoError(t, err)
	loss, err := ops.SumTo(y)
	require.NoError(t, err)
	g, err := loss.Backward()
	require.NoError(t, err)
	defer g.Release()
	grad, ok := autodiff.Grad(g, x)
	require.True(t, ok, "no gradient reached x")
	v, err := grad.Values()
	require.NoError(t, err)
	return v
}

// checkGradient compares the tape gradient of sum f(x) with central
// differences.
func checkGradient(t *testing.T, f fn, shape tensor.Shape, data []float64) {
	t.Helper()
	const h = 1e-6
	got := gradOf(t, f, shape, data)
	require.Len(t, got, len(data))
	for i := range data {
		plus := append([]float64(nil), data...)
		minus := append([]float64(nil), data...)
		plus[i] += h
		minus[i] -= h
		want := (lossOf(t, f, shape, plus) - lossOf(t, f, shape, minus)) / (2 * h)
		require.InDelta(t, want, got[i], 1e-5, "element %d", i)
	}
}
