package autodiff_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/autodiff/ops"
	"github.com/born-ml/tensorcore/internal/backend/cpu"
	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/internal/tensor"
)

var dev = cpu.NewWithConfig(cpu.Config{Parallel: parallel.Sequential()})

func leaf(t *testing.T, shape tensor.Shape, data []float64) *autodiff.Tensor[float64] {
	t.Helper()
	s, err := tensor.FromSlice(dev, shape, data)
	require.NoError(t, err)
	return autodiff.NewTensor(s)
}

type counter struct{ n int }

func (c *counter) Release() { c.n++ }

func TestTape_ReplaysInReverse(t *testing.T) {
	tape := autodiff.NewTape()
	x := leaf(t, tensor.Shape{1}, []float64{1}).Trace(tape)

	var order []string
	saved := &counter{}
	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, tape.Record(name, func(*autodiff.Gradients) error {
			order = append(order, name)
			return nil
		}, saved))
	}
	assert.Equal(t, 3, tape.Len())

	g, err := x.Backward()
	require.NoError(t, err)
	defer g.Release()
	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.Equal(t, 3, saved.n)
	assert.True(t, tape.Consumed())
	assert.Zero(t, tape.Len())
}

func TestTape_SecondBackwardFails(t *testing.T) {
	tape := autodiff.NewTape()
	x := leaf(t, tensor.Shape{2}, []float64{1, 2}).Trace(tape)
	y, err := ops.Square(x)
	require.NoError(t, err)

	g, err := y.Backward()
	require.NoError(t, err)
	g.Release()

	_, err = y.Backward()
	assert.ErrorIs(t, err, autodiff.ErrTapeConsumed)
	_, err = ops.Exp(x)
	assert.ErrorIs(t, err, autodiff.ErrTapeConsumed)
}

func TestTape_RecordAfterConsumeReleasesSaved(t *testing.T) {
	tape := autodiff.NewTape()
	tape.Discard()
	saved := &counter{}
	err := tape.Record("late", func(*autodiff.Gradients) error { return nil }, saved)
	assert.ErrorIs(t, err, autodiff.ErrTapeConsumed)
	assert.Equal(t, 1, saved.n)
}

func TestTape_ReentrantBackwardIsBusy(t *testing.T) {
	tape := autodiff.NewTape()
	x := leaf(t, tensor.Shape{1}, []float64{1}).Trace(tape)
	var inner error
	require.NoError(t, tape.Record("reenter", func(*autodiff.Gradients) error {
		_, inner = x.Backward()
		return inner
	}))

	_, err := x.Backward()
	assert.ErrorIs(t, inner, autodiff.ErrTapeBusy)
	assert.ErrorIs(t, err, autodiff.ErrTapeBusy)
	assert.Contains(t, err.Error(), "backward reenter")
}

func TestTape_FailureStopsTraversal(t *testing.T) {
	tape := autodiff.NewTape()
	x := leaf(t, tensor.Shape{1}, []float64{1}).Trace(tape)
	boom := errors.New("boom")
	ran := false
	saved := &counter{}
	require.NoError(t, tape.Record("never", func(*autodiff.Gradients) error {
		ran = true
		return nil
	}, saved))
	require.NoError(t, tape.Record("fails", func(*autodiff.Gradients) error { return boom }, saved))

	g, err := x.Backward()
	assert.Nil(t, g)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ran)
	assert.Equal(t, 2, saved.n)
	assert.True(t, tape.Consumed())
}

func TestTape_Discard(t *testing.T) {
	tape := autodiff.NewTape()
	x := leaf(t, tensor.Shape{2}, []float64{1, 2}).Trace(tape)
	_, err := ops.Square(x)
	require.NoError(t, err)
	require.Equal(t, 1, tape.Len())

	tape.Discard()
	assert.True(t, tape.Consumed())
	assert.Zero(t, tape.Len())
	_, err = x.Backward()
	assert.ErrorIs(t, err, autodiff.ErrTapeConsumed)
}

func TestTapeOf(t *testing.T) {
	a := autodiff.NewTape()
	b := autodiff.NewTape()
	x := leaf(t, tensor.Shape{1}, []float64{1})

	tape, err := autodiff.TapeOf(x, x.Trace(a))
	require.NoError(t, err)
	assert.Same(t, a, tape)

	tape, err = autodiff.TapeOf(x)
	require.NoError(t, err)
	assert.Nil(t, tape)

	_, err = autodiff.TapeOf(x.Trace(a), x.Trace(b))
	assert.ErrorIs(t, err, autodiff.ErrTapeMismatch)
}

func TestTensor_TraceKeepsIdentity(t *testing.T) {
	x := leaf(t, tensor.Shape{2}, []float64{1, 2})
	tape := autodiff.NewTape()
	tx := x.Trace(tape)
	assert.Equal(t, x.ID(), tx.ID())
	assert.Same(t, x.Storage(), tx.Storage())
	assert.Nil(t, x.Tape())
	assert.Same(t, tape, tx.Tape())
	assert.NotEqual(t, x.ID(), leaf(t, tensor.Shape{2}, []float64{1, 2}).ID())
}

func TestBackward_UntracedTensor(t *testing.T) {
	_, err := leaf(t, tensor.Shape{1}, []float64{1}).Backward()
	assert.ErrorIs(t, err, autodiff.ErrNoTape)
}

func TestBackwardWithSeed(t *testing.T) {
	tape := autodiff.NewTape()
	x := leaf(t, tensor.Shape{2, 2}, []float64{1, 2, 3, 4}).Trace(tape)
	y, err := ops.MulScalar(x, 2)
	require.NoError(t, err)

	bad, err := tensor.FromSlice(dev, tensor.Shape{4}, []float64{1, 1, 1, 1})
	require.NoError(t, err)
	_, err = y.BackwardWithSeed(bad)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	assert.False(t, tape.Consumed())

	seed, err := tensor.FromSlice(dev, tensor.Shape{2, 2}, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	transposed, err := seed.Permute(1, 0)
	require.NoError(t, err)

	g, err := y.BackwardWithSeed(transposed)
	require.NoError(t, err)
	grad, ok := autodiff.Grad(g, x)
	require.True(t, ok)
	v, err := grad.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 6, 4, 8}, v)
}

func TestGradients_IDsAndDrop(t *testing.T) {
	tape := autodiff.NewTape()
	a := leaf(t, tensor.Shape{1}, []float64{2}).Trace(tape)
	b := leaf(t, tensor.Shape{1}, []float64{3}).Trace(tape)
	y, err := ops.Mul(a, b)
	require.NoError(t, err)

	g, err := y.Backward()
	require.NoError(t, err)
	defer g.Release()
	assert.Equal(t, 3, g.Len())
	ids := g.IDs()
	assert.Equal(t, []uint64{a.ID(), b.ID(), y.ID()}, ids)

	ga, ok := autodiff.Grad(g, a)
	require.True(t, ok)
	v, err := ga.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, v)

	g.Drop(a.ID())
	_, ok = autodiff.Grad(g, a)
	assert.False(t, ok)
	assert.Equal(t, 2, g.Len())

	_, ok = autodiff.Lookup[float32](g, b.ID())
	assert.False(t, ok, "lookup with the wrong element type")
}

func TestBackward_UnreachedTensorHasNoGradient(t *testing.T) {
	tape := autodiff.NewTape()
	x := leaf(t, tensor.Shape{1}, []float64{2}).Trace(tape)
	unused := leaf(t, tensor.Shape{1}, []float64{5}).Trace(tape)
	_, err := ops.Exp(unused)
	require.NoError(t, err)
	y, err := ops.Square(x)
	require.NoError(t, err)

	g, err := y.Backward()
	require.NoError(t, err)
	defer g.Release()
	_, ok := autodiff.Grad(g, unused)
	assert.False(t, ok)
}
