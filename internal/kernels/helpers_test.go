package kernels_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/backend/cpu"
	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/internal/tensor"
)

func newDevice() *cpu.Device {
	return cpu.NewWithConfig(cpu.Config{Parallel: parallel.Sequential()})
}

func fromSlice[E tensor.Element](t *testing.T, dev tensor.Device, shape tensor.Shape, data []E) *tensor.Storage[E] {
	t.Helper()
	s, err := tensor.FromSlice(dev, shape, data)
	require.NoError(t, err)
	return s
}

func values[E tensor.Element](t *testing.T, s *tensor.Storage[E]) []E {
	t.Helper()
	v, err := s.Values()
	require.NoError(t, err)
	return v
}

func zerosLike[E tensor.Element](t *testing.T, s *tensor.Storage[E]) *tensor.Storage[E] {
	t.Helper()
	z, err := tensor.ZerosLike(s)
	require.NoError(t, err)
	return z
}

func full[E tensor.Element](t *testing.T, dev tensor.Device, shape tensor.Shape, v E) *tensor.Storage[E] {
	t.Helper()
	s, err := tensor.Full(dev, shape, v)
	require.NoError(t, err)
	return s
}

// ramp returns n deterministic values in [-1, 1).
func ramp(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64((i*7)%11)/5.5 - 1
	}
	return out
}
