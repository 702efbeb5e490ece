// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/backend/cpu"
	"github.com/born-ml/tensorcore/tensor"
)

func TestFromSlice_Views(t *testing.T) {
	dev := cpu.New()
	x, err := tensor.FromSlice(dev, tensor.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	defer x.Release()

	assert.Equal(t, tensor.Float64, x.DType())
	assert.Equal(t, 6, x.NumElements())
	assert.True(t, x.IsContiguous())

	xt, err := x.Permute(1, 0)
	require.NoError(t, err)
	defer xt.Release()
	assert.False(t, x.IsUnique())

	vals, err := xt.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, vals)
}

func TestStorage_CopyOnWrite(t *testing.T) {
	dev := cpu.New()
	x, err := tensor.Full[float32](dev, tensor.Shape{4}, 2)
	require.NoError(t, err)
	defer x.Release()

	y := x.Clone()
	require.NoError(t, y.MakeUnique())
	assert.True(t, x.IsUnique())
	assert.True(t, y.IsUnique())
	y.Release()

	vals, err := x.Values()
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 2, 2, 2}, vals)
}

func TestBroadcastShapes(t *testing.T) {
	out, needs, err := tensor.BroadcastShapes(tensor.Shape{3, 1}, tensor.Shape{4})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 4}, out)
	assert.True(t, needs)

	_, _, err = tensor.BroadcastShapes(tensor.Shape{3}, tensor.Shape{4})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestZeros_MemoryLimit(t *testing.T) {
	dev := cpu.NewWithConfig(cpu.Config{MemoryLimit: 16})
	_, err := tensor.Zeros[float64](dev, tensor.Shape{4})
	assert.ErrorIs(t, err, tensor.ErrAlloc)
	assert.Equal(t, tensor.Host, dev.Kind())
}
