package kernels_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

func TestReduceTo_Forward(t *testing.T) {
	dev := newDevice()
	inp := fromSlice(t, dev, tensor.Shape{2, 3}, []float64{3, -1, 4, 1, 5, -9})

	tests := []struct {
		op    kernels.ReduceOp
		axes  []int
		shape tensor.Shape
		want  []float64
	}{
		{kernels.ReduceSum, []int{1}, tensor.Shape{2}, []float64{6, -3}},
		{kernels.ReduceSum, []int{0}, tensor.Shape{3}, []float64{4, 4, -5}},
		{kernels.ReduceSum, []int{0, 1}, tensor.Shape{}, []float64{3}},
		{kernels.ReduceMin, []int{-1}, tensor.Shape{2}, []float64{-1, -9}},
		{kernels.ReduceMax, []int{0}, tensor.Shape{3}, []float64{3, 5, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.op.String(), func(t *testing.T) {
			out, err := kernels.ReduceTo(tt.op, inp, tt.axes...)
			require.NoError(t, err)
			assert.True(t, tt.shape.Equal(out.Shape()), "shape %v", out.Shape())
			assert.Equal(t, tt.want, values(t, out))
		})
	}
}

func TestReduceTo_PermutedInput(t *testing.T) {
	dev := newDevice()
	a := fromSlice(t, dev, tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	at, err := a.Permute(1, 0)
	require.NoError(t, err)

	out, err := kernels.ReduceTo(kernels.ReduceSum, at, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 7, 9}, values(t, out))
}

func TestReduceTo_BroadcastAxes(t *testing.T) {
	dev := newDevice()
	row := fromSlice(t, dev, tensor.Shape{3}, []float64{1, 2, 3})
	inp, err := row.BroadcastTo(tensor.Shape{2, 3})
	require.NoError(t, err)

	t.Run("reduced axis is broadcast", func(t *testing.T) {
		out, err := kernels.ReduceTo(kernels.ReduceSum, inp, 0)
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 4, 6}, values(t, out))

		gradInp := zerosLike(t, inp)
		gradOut := full(t, dev, tensor.Shape{3}, 1.0)
		require.NoError(t, kernels.ReduceBackward(kernels.ReduceSum, inp, out, gradInp, gradOut, 0))
		data, err := gradInp.Data()
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 2, 2}, data)
	})

	t.Run("kept axis is broadcast", func(t *testing.T) {
		out, err := kernels.ReduceTo(kernels.ReduceSum, inp, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, out.PhysicalLen())
		assert.Equal(t, []float64{6, 6}, values(t, out))

		// The shared slot already holds the gradient summed over both rows.
		gradInp := zerosLike(t, inp)
		gradOut := zerosLike(t, out)
		require.NoError(t, kernels.Fill(gradOut, 2))
		require.NoError(t, kernels.ReduceBackward(kernels.ReduceSum, inp, out, gradInp, gradOut, 1))
		data, err := gradInp.Data()
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 2, 2}, data)
	})

	t.Run("kept axis is broadcast max", func(t *testing.T) {
		out, err := kernels.ReduceTo(kernels.ReduceMax, inp, 1)
		require.NoError(t, err)

		gradInp := zerosLike(t, inp)
		gradOut := zerosLike(t, out)
		require.NoError(t, kernels.Fill(gradOut, 2))
		require.NoError(t, kernels.ReduceBackward(kernels.ReduceMax, inp, out, gradInp, gradOut, 1))
		data, err := gradInp.Data()
		require.NoError(t, err)
		assert.Equal(t, []float64{0, 0, 2}, data)
	})
}

func TestReduceBackward_Sum(t *testing.T) {
	dev := newDevice()
	inp := fromSlice(t, dev, tensor.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	out, err := kernels.ReduceTo(kernels.ReduceSum, inp, 1)
	require.NoError(t, err)

	gradInp := zerosLike(t, inp)
	gradOut := fromSlice(t, dev, tensor.Shape{2}, []float64{1, 2})
	require.NoError(t, kernels.ReduceBackward(kernels.ReduceSum, inp, out, gradInp, gradOut, 1))
	assert.Equal(t, []float64{1, 1, 1, 2, 2, 2}, values(t, gradInp))
}

func TestReduceBackward_MinTiesAllReceive(t *testing.T) {
	dev := newDevice()
	inp := fromSlice(t, dev, tensor.Shape{2, 3}, []float32{3, 1, 1, 2, 5, 7})
	out, err := kernels.ReduceTo(kernels.ReduceMin, inp, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, values(t, out))

	gradInp := zerosLike(t, inp)
	gradOut := fromSlice(t, dev, tensor.Shape{2}, []float32{10, 20})
	require.NoError(t, kernels.ReduceBackward(kernels.ReduceMin, inp, out, gradInp, gradOut, 1))
	assert.Equal(t, []float32{0, 10, 10, 20, 0, 0}, values(t, gradInp))
}

func TestReduceTo_BadAxes(t *testing.T) {
	dev := newDevice()
	inp := fromSlice(t, dev, tensor.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	_, err := kernels.ReduceTo(kernels.ReduceSum, inp, 2)
	assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))
	_, err = kernels.ReduceTo(kernels.ReduceSum, inp, 0, 0)
	assert.True(t, errors.Is(err, tensor.ErrShapeMismatch))
}
