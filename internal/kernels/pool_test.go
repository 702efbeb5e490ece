package kernels_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

func TestNewPool2DOp_Shapes(t *testing.T) {
	tests := []struct {
		name                    string
		inp                     tensor.Shape
		kernel, stride, padding int
		want                    tensor.Shape
	}{
		{"batched", tensor.Shape{2, 3, 5, 5}, 3, 2, 1, tensor.Shape{2, 3, 3, 3}},
		{"unbatched", tensor.Shape{3, 4, 4}, 2, 2, 0, tensor.Shape{3, 2, 2}},
		{"default stride", tensor.Shape{1, 1, 4, 6}, 3, 0, 0, tensor.Shape{1, 1, 2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := kernels.NewPool2DOp(tt.inp, tt.kernel, tt.stride, tt.padding)
			require.NoError(t, err)
			assert.Equal(t, tt.want, op.OutputShape(tt.inp))
		})
	}

	_, err := kernels.NewPool2DOp(tensor.Shape{4, 4}, 2, 1, 0)
	assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))
	_, err = kernels.NewPool2DOp(tensor.Shape{1, 2, 2}, 5, 1, 0)
	assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))
}

func pool(t *testing.T, kind kernels.PoolKind, inp *tensor.Storage[float64], kernel, stride, padding int,
) (kernels.Pool2DOp, *tensor.Storage[float64]) {
	t.Helper()
	op, err := kernels.NewPool2DOp(inp.Shape(), kernel, stride, padding)
	require.NoError(t, err)
	out, err := kernels.Pool2D(kind, op, inp)
	require.NoError(t, err)
	return op, out
}

func TestMaxPool2D_TiesEachReceiveFullGradient(t *testing.T) {
	dev := newDevice()
	inp := full(t, dev, tensor.Shape{1, 1, 2, 2}, 1.0)
	op, out := pool(t, kernels.PoolMax, inp, 2, 1, 0)
	assert.Equal(t, []float64{1}, values(t, out))

	gradInp := zerosLike(t, inp)
	gradOut := full(t, dev, out.Shape(), 1.0)
	require.NoError(t, kernels.Pool2DBackward(kernels.PoolMax, op, inp, out, gradInp, gradOut))
	assert.Equal(t, []float64{1, 1, 1, 1}, values(t, gradInp))
}

func TestMinPool2D(t *testing.T) {
	dev := newDevice()
	inp := fromSlice(t, dev, tensor.Shape{1, 3, 3}, []float64{
		4, 2, 7,
		1, 9, 3,
		8, 6, 5,
	})
	op, out := pool(t, kernels.PoolMin, inp, 2, 1, 0)
	assert.Equal(t, tensor.Shape{1, 2, 2}, out.Shape())
	assert.Equal(t, []float64{1, 2, 1, 3}, values(t, out))

	gradInp := zerosLike(t, inp)
	gradOut := fromSlice(t, dev, out.Shape(), []float64{1, 10, 100, 1000})
	require.NoError(t, kernels.Pool2DBackward(kernels.PoolMin, op, inp, out, gradInp, gradOut))
	assert.Equal(t, []float64{
		0, 10, 0,
		101, 0, 1000,
		0, 0, 0,
	}, values(t, gradInp))
}

func TestAvgPool2D_PaddingDividesByFullArea(t *testing.T) {
	dev := newDevice()
	inp := full(t, dev, tensor.Shape{1, 1, 2, 2}, 1.0)
	op, out := pool(t, kernels.PoolAvg, inp, 3, 1, 1)
	for _, v := range values(t, out) {
		assert.InDelta(t, 4.0/9, v, 1e-12)
	}

	gradInp := zerosLike(t, inp)
	gradOut := full(t, dev, out.Shape(), 1.0)
	require.NoError(t, kernels.Pool2DBackward(kernels.PoolAvg, op, inp, out, gradInp, gradOut))
	for _, g := range values(t, gradInp) {
		assert.InDelta(t, 4.0/9, g, 1e-12)
	}
}

func TestAvgPool2D_GradientMass(t *testing.T) {
	dev := newDevice()
	inp := fromSlice(t, dev, tensor.Shape{2, 1, 4, 4}, ramp(32))
	op, out := pool(t, kernels.PoolAvg, inp, 2, 2, 0)
	assert.Equal(t, tensor.Shape{2, 1, 2, 2}, out.Shape())

	in := values(t, inp)
	assert.InDelta(t, (in[0]+in[1]+in[4]+in[5])/4, values(t, out)[0], 1e-12)

	gradInp := zerosLike(t, inp)
	gradOut := full(t, dev, out.Shape(), 1.0)
	require.NoError(t, kernels.Pool2DBackward(kernels.PoolAvg, op, inp, out, gradInp, gradOut))
	var total float64
	for _, g := range values(t, gradInp) {
		assert.InDelta(t, 0.25, g, 1e-12)
		total += g
	}
	assert.InDelta(t, float64(out.NumElements()), total, 1e-9)
}

func TestPool2D_RequiresContiguousInput(t *testing.T) {
	dev := newDevice()
	inp := fromSlice(t, dev, tensor.Shape{1, 1, 2, 3}, ramp(6))
	perm, err := inp.Permute(0, 1, 3, 2)
	require.NoError(t, err)

	op, err := kernels.NewPool2DOp(perm.Shape(), 2, 1, 0)
	require.NoError(t, err)
	_, err = kernels.Pool2D(kernels.PoolMax, op, perm)
	assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))
}
