package tensor

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorage_FromSlice(t *testing.T) {
	dev := &mockDevice{}
	s, err := FromSlice(dev, Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	assert.Equal(t, Shape{2, 3}, s.Shape())
	assert.Equal(t, []int{3, 1}, s.Strides())
	assert.Equal(t, Float32, s.DType())
	assert.True(t, s.IsContiguous())

	_, err = FromSlice(dev, Shape{2, 2}, []float32{1})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestStorage_BroadcastView(t *testing.T) {
	dev := &mockDevice{}
	s, err := FromSlice(dev, Shape{3}, []float64{1, 2, 3})
	require.NoError(t, err)

	b, err := s.BroadcastTo(Shape{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, b.Strides())
	assert.Equal(t, 3, b.PhysicalLen())
	assert.False(t, b.IsContiguous())
	assert.False(t, s.IsUnique())

	vals, err := b.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 1, 2, 3}, vals)
}

func TestStorage_Permute(t *testing.T) {
	dev := &mockDevice{}
	s, err := FromSlice(dev, Shape{2, 3}, []int32{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)

	p, err := s.Permute(1, 0)
	require.NoError(t, err)
	vals, err := p.Values()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 4, 2, 5, 3, 6}, vals)

	_, err = p.Reshape(Shape{6})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
}

func TestStorage_CopyOnWrite(t *testing.T) {
	dev := &mockDevice{}
	orig, err := FromSlice(dev, Shape{4}, []float32{1, 2, 3, 4})
	require.NoError(t, err)

	a := orig.Clone()
	b, err := orig.BroadcastTo(Shape{2, 4})
	require.NoError(t, err)

	require.NoError(t, a.MakeUnique())
	assert.True(t, a.IsUnique())

	// Mutate a's private buffer directly.
	a.Memory().(*mockMemory).data.([]float32)[0] = 100

	av, err := a.Values()
	require.NoError(t, err)
	assert.Equal(t, []float32{100, 2, 3, 4}, av)

	bv, err := b.Values()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 1, 2, 3, 4}, bv)

	ov, err := orig.Values()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, ov)
}

func TestStorage_MakeUniqueNoCopyWhenExclusive(t *testing.T) {
	dev := &mockDevice{}
	s, err := Zeros[float32](dev, Shape{8})
	require.NoError(t, err)
	mem := s.Memory()
	allocs := dev.allocs

	require.NoError(t, s.MakeUnique())
	assert.Same(t, mem, s.Memory())
	assert.Equal(t, allocs, dev.allocs)
}

func TestStorage_ReleaseFreesWithLastReference(t *testing.T) {
	dev := &mockDevice{}
	s, err := Zeros[float32](dev, Shape{2})
	require.NoError(t, err)
	mem := s.Memory().(*mockMemory)
	c := s.Clone()

	s.Release()
	assert.Equal(t, 0, mem.released)
	s.Release() // second release of the same storage is a no-op
	assert.Equal(t, 0, mem.released)

	c.Release()
	assert.Equal(t, 1, mem.released)
}

func TestZerosLike_KeepsLayout(t *testing.T) {
	dev := &mockDevice{}
	s, err := FromSlice(dev, Shape{3}, []float32{1, 2, 3})
	require.NoError(t, err)
	b, err := s.BroadcastTo(Shape{5, 3})
	require.NoError(t, err)

	z, err := ZerosLike(b)
	require.NoError(t, err)
	assert.Equal(t, b.Strides(), z.Strides())
	assert.Equal(t, 3, z.PhysicalLen())
}

func TestWrap_RejectsShortBuffer(t *testing.T) {
	dev := &mockDevice{}
	mem, err := dev.AllocZeroed(Float32, 3)
	require.NoError(t, err)
	_, err = Wrap[float32](dev, mem, Shape{2, 3}, []int{3, 1})
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = Wrap[float64](dev, mem, Shape{3}, []int{1})
	assert.True(t, errors.Is(err, ErrUnsupportedDType))
}

func TestKernelName(t *testing.T) {
	assert.Equal(t, "sgd_update_f32", KernelName[float32]("sgd_update"))
	assert.Equal(t, "fill_f64", KernelName[float64]("fill"))
}
