//go:build windows

package webgpu_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/backend/cpu"
	"github.com/born-ml/tensorcore/internal/backend/webgpu"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/internal/tensor"
)

func newDevice(t *testing.T) *webgpu.Device {
	t.Helper()
	if !webgpu.IsAvailable() {
		t.Skip("WebGPU not available")
	}
	d, err := webgpu.NewWithConfig(webgpu.Config{MaxBatchSize: 16})
	if err != nil {
		t.Skipf("WebGPU not available: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

var host = cpu.NewWithConfig(cpu.Config{Parallel: parallel.Sequential()})

// pair holds the same values on the host and on the accelerator.
type pair struct {
	h, g *tensor.Storage[float32]
}

func upload(t *testing.T, d tensor.Device, shape tensor.Shape, data []float32) pair {
	t.Helper()
	h, err := tensor.FromSlice(host, shape, data)
	require.NoError(t, err)
	g, err := tensor.FromSlice(d, shape, data)
	require.NoError(t, err)
	return pair{h, g}
}

func values(t *testing.T, s *tensor.Storage[float32]) []float32 {
	t.Helper()
	v, err := s.Values()
	require.NoError(t, err)
	return v
}

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32((i*7)%11)/5.5 - 1
	}
	return out
}

func TestDevice_Identity(t *testing.T) {
	d := newDevice(t)
	assert.Equal(t, webgpu.Name, d.Name())
	assert.Equal(t, tensor.Accelerator, d.Kind())
	require.NoError(t, d.Synchronize())
}

func TestDevice_UploadDownload(t *testing.T) {
	d := newDevice(t)

	m, err := d.Alloc(tensor.Int32, 3)
	require.NoError(t, err)
	defer m.Release()
	require.NoError(t, d.Upload(m, []int32{4, -5, 6}))
	got := make([]int32, 3)
	require.NoError(t, d.Download(m, got))
	assert.Equal(t, []int32{4, -5, 6}, got)

	z, err := d.AllocZeroed(tensor.Bool, 2)
	require.NoError(t, err)
	defer z.Release()
	flags := []bool{true, true}
	require.NoError(t, d.Download(z, flags))
	assert.Equal(t, []bool{false, false}, flags)

	_, err = d.Alloc(tensor.Float64, 1)
	assert.True(t, errors.Is(err, tensor.ErrUnsupportedDType))
}

func TestDevice_Float64KernelsUnsupported(t *testing.T) {
	d := newDevice(t)
	err := d.Run(kernels.ModuleFill, "fill_f64", tensor.LaunchFor(1), 1.0)
	assert.True(t, errors.Is(err, tensor.ErrKernelLoad))
	assert.True(t, errors.Is(err, tensor.ErrUnsupportedDType))
}

func TestDevice_PoolReusesReleasedBuffers(t *testing.T) {
	d := newDevice(t)
	m, err := d.Alloc(tensor.Float32, 64)
	require.NoError(t, err)
	m.Release()
	m2, err := d.Alloc(tensor.Float32, 32)
	require.NoError(t, err)
	defer m2.Release()
	assert.GreaterOrEqual(t, d.PoolStats().Hits, uint64(1))
}

func TestKernels_MatchHost(t *testing.T) {
	d := newDevice(t)
	const tol = 1e-4

	t.Run("unary", func(t *testing.T) {
		x := upload(t, d, tensor.Shape{2, 3}, []float32{0.5, 1, 1.5, 2, 2.5, 3})
		for _, op := range []kernels.UnaryOp{kernels.UnaryExp, kernels.UnarySigmoid, kernels.UnaryPowScalar} {
			want, err := kernels.Unary(op, 2, x.h)
			require.NoError(t, err)
			got, err := kernels.Unary(op, 2, x.g)
			require.NoError(t, err)
			assert.InDeltaSlice(t, values(t, want), values(t, got), tol, op.String())
		}
	})

	t.Run("binary broadcast backward", func(t *testing.T) {
		a := upload(t, d, tensor.Shape{2, 3}, ramp(6))
		b := upload(t, d, tensor.Shape{3}, []float32{1, 2, 3})
		rh, err := b.h.BroadcastTo(a.h.Shape())
		require.NoError(t, err)
		rg, err := b.g.BroadcastTo(a.h.Shape())
		require.NoError(t, err)

		run := func(l, r *tensor.Storage[float32]) []float32 {
			gl, err := tensor.ZerosLike(l)
			require.NoError(t, err)
			gr, err := tensor.ZerosLike(r)
			require.NoError(t, err)
			ones, err := tensor.Full[float32](l.Device(), l.Shape(), 1)
			require.NoError(t, err)
			require.NoError(t, kernels.BinaryBackward(kernels.BinaryMul, l, r, gl, gr, ones))
			return append(values(t, gl), values(t, gr)...)
		}
		assert.InDeltaSlice(t, run(a.h, rh), run(a.g, rg), tol)
	})

	t.Run("reduce", func(t *testing.T) {
		x := upload(t, d, tensor.Shape{2, 3, 4}, ramp(24))
		for _, op := range []kernels.ReduceOp{kernels.ReduceSum, kernels.ReduceMax} {
			want, err := kernels.ReduceTo(op, x.h, 1)
			require.NoError(t, err)
			got, err := kernels.ReduceTo(op, x.g, 1)
			require.NoError(t, err)
			assert.InDeltaSlice(t, values(t, want), values(t, got), tol, op.String())
		}
	})

	t.Run("pool and conv", func(t *testing.T) {
		img := upload(t, d, tensor.Shape{1, 2, 4, 4}, ramp(32))
		pop, err := kernels.NewPool2DOp(img.h.Shape(), 2, 2, 0)
		require.NoError(t, err)
		want, err := kernels.Pool2D(kernels.PoolMax, pop, img.h)
		require.NoError(t, err)
		got, err := kernels.Pool2D(kernels.PoolMax, pop, img.g)
		require.NoError(t, err)
		assert.InDeltaSlice(t, values(t, want), values(t, got), tol)

		filters := upload(t, d, tensor.Shape{3, 2, 3, 3}, ramp(54))
		cop, err := kernels.NewConv2DOp(img.h.Shape(), filters.h.Shape(), 1, 1)
		require.NoError(t, err)
		want, err = kernels.Conv2D(cop, img.h, filters.h)
		require.NoError(t, err)
		got, err = kernels.Conv2D(cop, img.g, filters.g)
		require.NoError(t, err)
		assert.InDeltaSlice(t, values(t, want), values(t, got), tol)
	})

	t.Run("gather", func(t *testing.T) {
		src := upload(t, d, tensor.Shape{3, 2}, ramp(6))
		idx := []int32{2, 0, 2}
		ih, err := tensor.FromSlice(host, tensor.Shape{3}, idx)
		require.NoError(t, err)
		ig, err := tensor.FromSlice[int32](d, tensor.Shape{3}, idx)
		require.NoError(t, err)
		want, err := kernels.Select(kernels.RemoveDim, src.h, ih)
		require.NoError(t, err)
		got, err := kernels.Select(kernels.RemoveDim, src.g, ig)
		require.NoError(t, err)
		assert.InDeltaSlice(t, values(t, want), values(t, got), tol)
	})

	t.Run("sgd", func(t *testing.T) {
		step := kernels.SGDStep{LR: 0.1, Momentum: kernels.MomentumNesterov, Mu: 0.9, Decay: kernels.DecayL2, Lambda: 0.01}
		p := upload(t, d, tensor.Shape{4}, []float32{1, 2, 3, 4})
		g := upload(t, d, tensor.Shape{4}, []float32{0.5, -0.5, 1, -1})
		v := upload(t, d, tensor.Shape{4}, []float32{0.1, 0.1, 0.1, 0.1})
		require.NoError(t, kernels.SGDUpdate(step, p.h, g.h, v.h))
		require.NoError(t, kernels.SGDUpdate(step, p.g, g.g, v.g))
		assert.InDeltaSlice(t, values(t, p.h), values(t, p.g), tol)
		assert.InDeltaSlice(t, values(t, v.h), values(t, v.g), tol)
	})
}
