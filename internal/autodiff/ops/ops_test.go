package ops_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/autodiff/ops"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

func TestUnary_Gradients(t *testing.T) {
	tests := []struct {
		name string
		f    fn
		data []float64
	}{
		{"neg", ops.Neg[float64], ramp(6)},
		{"sin", ops.Sin[float64], ramp(6)},
		{"cos", ops.Cos[float64], ramp(6)},
		{"exp", ops.Exp[float64], ramp(6)},
		{"ln", ops.Ln[float64], positive(6)},
		{"sqrt", ops.Sqrt[float64], positive(6)},
		{"square", ops.Square[float64], ramp(6)},
		{"abs", ops.Abs[float64], ramp(6)},
		{"relu", ops.ReLU[float64], ramp(6)},
		{"tanh", ops.Tanh[float64], ramp(6)},
		{"sigmoid", ops.Sigmoid[float64], ramp(6)},
		{"add_scalar", func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			return ops.AddScalar(x, 3)
		}, ramp(6)},
		{"mul_scalar", func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			return ops.MulScalar(x, -2.5)
		}, ramp(6)},
		{"pow_scalar", func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			return ops.PowScalar(x, 1.5)
		}, positive(6)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkGradient(t, tt.f, tensor.Shape{2, 3}, tt.data)
		})
	}
}

func TestBinary_Gradients(t *testing.T) {
	for _, op := range []kernels.BinaryOp{
		kernels.BinaryAdd, kernels.BinarySub, kernels.BinaryMul, kernels.BinaryDiv,
		kernels.BinaryMaximum, kernels.BinaryMinimum,
	} {
		t.Run(op.String(), func(t *testing.T) {
			other := leaf(t, tensor.Shape{3}, []float64{0.7, -1.3, 2.1})
			// x as lhs against a broadcast rhs.
			checkGradient(t, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
				return ops.Binary(op, x, other)
			}, tensor.Shape{2, 3}, ramp(6))
			// x as the broadcast rhs.
			lhs := leaf(t, tensor.Shape{2, 3}, positive(6))
			checkGradient(t, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
				return ops.Binary(op, lhs, x)
			}, tensor.Shape{3}, []float64{0.9, -1.1, 1.7})
		})
	}
}

func TestBinary_SameOperand(t *testing.T) {
	got := gradOf(t, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
		return ops.Mul(x, x)
	}, tensor.Shape{3}, []float64{1, -2, 3})
	assert.InDeltaSlice(t, []float64{2, -4, 6}, got, 1e-12)
}

func TestChoose_Gradient(t *testing.T) {
	abs := func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
		mask, err := ops.GtScalar(x, 0)
		if err != nil {
			return nil, err
		}
		defer mask.Release()
		neg, err := ops.Neg(x)
		if err != nil {
			return nil, err
		}
		return ops.Choose(mask, x, neg)
	}
	got := gradOf(t, abs, tensor.Shape{4}, []float64{1, -2, 3, -0.5})
	assert.Equal(t, []float64{1, -1, 1, -1}, got)
}

func TestCompare_Untracked(t *testing.T) {
	tape := autodiff.NewTape()
	x := leaf(t, tensor.Shape{3}, []float64{1, 2, 3}).Trace(tape)
	y := leaf(t, tensor.Shape{3}, []float64{3, 2, 1})

	for _, tt := range []struct {
		name string
		f    func(l, r *autodiff.Tensor[float64]) (*tensor.Storage[bool], error)
		want []bool
	}{
		{"eq", ops.Eq[float64], []bool{false, true, false}},
		{"ne", ops.Ne[float64], []bool{true, false, true}},
		{"gt", ops.Gt[float64], []bool{false, false, true}},
		{"ge", ops.Ge[float64], []bool{false, true, true}},
		{"lt", ops.Lt[float64], []bool{true, false, false}},
		{"le", ops.Le[float64], []bool{true, true, false}},
	} {
		mask, err := tt.f(x, y)
		require.NoError(t, err, tt.name)
		v, err := mask.Values()
		require.NoError(t, err)
		assert.Equal(t, tt.want, v, tt.name)
	}
	mask, err := ops.LeScalar(x, 2)
	require.NoError(t, err)
	v, err := mask.Values()
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false}, v)
	assert.Zero(t, tape.Len())
}

func TestReduce_Gradients(t *testing.T) {
	tests := []struct {
		name string
		f    fn
	}{
		{"sum_axis", func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			s, err := ops.SumTo(x, 1)
			if err != nil {
				return nil, err
			}
			return ops.Square(s)
		}},
		{"max_axis", func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			return ops.MaxTo(x, 0)
		}},
		{"min_negative_axis", func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			return ops.MinTo(x, -1)
		}},
		{"mean_all", func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			sq, err := ops.Square(x)
			if err != nil {
				return nil, err
			}
			return ops.Mean(sq)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkGradient(t, tt.f, tensor.Shape{3, 4}, distinct(12))
		})
	}
}

func TestReduce_BroadcastKeptAxis(t *testing.T) {
	// x (3, 1) -> (2, 3, 4) -> (4, 2, 3), summed over the last axis: both kept
	// axes are broadcast.
	f := func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
		b, err := ops.BroadcastTo(x, tensor.Shape{2, 3, 4})
		if err != nil {
			return nil, err
		}
		p, err := ops.Permute(b, 2, 0, 1)
		if err != nil {
			return nil, err
		}
		s, err := ops.SumTo(p, 2)
		if err != nil {
			return nil, err
		}
		return ops.Square(s)
	}
	data := []float64{1, 2, 4}
	assert.InDelta(t, 392.0, lossOf(t, f, tensor.Shape{3, 1}, data), 1e-9)
	assert.InDeltaSlice(t, []float64{112, 112, 112}, gradOf(t, f, tensor.Shape{3, 1}, data), 1e-9)
	checkGradient(t, f, tensor.Shape{3, 1}, data)

	t.Run("max", func(t *testing.T) {
		checkGradient(t, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			b, err := ops.BroadcastTo(x, tensor.Shape{2, 3, 4})
			if err != nil {
				return nil, err
			}
			m, err := ops.MaxTo(b, 2)
			if err != nil {
				return nil, err
			}
			return ops.Square(m)
		}, tensor.Shape{3, 4}, distinct(12))
	})
}

func TestMean_Value(t *testing.T) {
	x := leaf(t, tensor.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	m, err := ops.Mean(x, 1)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2}, m.Shape())
	assert.InDeltaSlice(t, []float64{2, 5}, values(t, m), 1e-12)

	all, err := ops.Mean(x)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3.5}, values(t, all), 1e-12)
}

func TestViews_Gradients(t *testing.T) {
	w := leaf(t, tensor.Shape{4, 3}, distinct(12))
	tests := []struct {
		name  string
		shape tensor.Shape
		f     fn
	}{
		{"broadcast", tensor.Shape{1, 3}, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			b, err := ops.BroadcastTo(x, tensor.Shape{4, 3})
			if err != nil {
				return nil, err
			}
			return ops.Mul(b, w)
		}},
		{"permute", tensor.Shape{3, 4}, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			p, err := ops.Permute(x, 1, 0)
			if err != nil {
				return nil, err
			}
			return ops.Mul(p, w)
		}},
		{"reshape", tensor.Shape{12}, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			r, err := ops.Reshape(x, tensor.Shape{4, 3})
			if err != nil {
				return nil, err
			}
			return ops.Mul(r, w)
		}},
		{"contiguous", tensor.Shape{3, 4}, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			p, err := ops.Permute(x, 1, 0)
			if err != nil {
				return nil, err
			}
			c, err := ops.Contiguous(p)
			if err != nil {
				return nil, err
			}
			return ops.Mul(c, w)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkGradient(t, tt.f, tt.shape, ramp(tt.shape.NumElements()))
		})
	}
}

func TestBroadcastTo_BackwardCountsAliases(t *testing.T) {
	tape := autodiff.NewTape()
	x := leaf(t, tensor.Shape{1}, []float64{2}).Trace(tape)
	y, err := ops.BroadcastTo(x, tensor.Shape{3})
	require.NoError(t, err)

	g, err := y.Backward()
	require.NoError(t, err)
	grad, ok := autodiff.Grad(g, x)
	require.True(t, ok)
	v, err := grad.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, v)
}

func TestPool2D_Gradients(t *testing.T) {
	for _, kind := range []kernels.PoolKind{kernels.PoolAvg, kernels.PoolMax, kernels.PoolMin} {
		t.Run(kind.String(), func(t *testing.T) {
			checkGradient(t, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
				p, err := ops.Pool2D(kind, x, 2, 2, 1)
				if err != nil {
					return nil, err
				}
				return ops.Square(p)
			}, tensor.Shape{1, 1, 4, 4}, distinct(16))
		})
	}
}

func TestPool2D_NonContiguousInput(t *testing.T) {
	checkGradient(t, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
		p, err := ops.Permute(x, 0, 2, 1)
		if err != nil {
			return nil, err
		}
		return ops.MaxPool2D(p, 2, 1, 0)
	}, tensor.Shape{1, 3, 4}, distinct(12))
}

func TestConv2D_Gradients(t *testing.T) {
	filters := leaf(t, tensor.Shape{2, 2, 3, 3}, ramp(36))
	img := leaf(t, tensor.Shape{1, 2, 4, 4}, ramp(32))
	square := func(y *autodiff.Tensor[float64], err error) (*autodiff.Tensor[float64], error) {
		if err != nil {
			return nil, err
		}
		return ops.Square(y)
	}

	t.Run("image", func(t *testing.T) {
		checkGradient(t, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			return square(ops.Conv2D(x, filters, 1, 1))
		}, tensor.Shape{1, 2, 4, 4}, ramp(32))
	})
	t.Run("filters", func(t *testing.T) {
		checkGradient(t, func(f *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			return square(ops.Conv2D(img, f, 2, 1))
		}, tensor.Shape{2, 2, 3, 3}, ramp(36))
	})

	batch := leaf(t, tensor.Shape{3, 2, 5, 5}, ramp(150))
	t.Run("batched image strided", func(t *testing.T) {
		checkGradient(t, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			return square(ops.Conv2D(x, filters, 2, 1))
		}, tensor.Shape{3, 2, 5, 5}, ramp(150))
	})
	t.Run("batched filters strided", func(t *testing.T) {
		checkGradient(t, func(f *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			return square(ops.Conv2D(batch, f, 2, 1))
		}, tensor.Shape{2, 2, 3, 3}, ramp(36))
	})
	t.Run("image is filters", func(t *testing.T) {
		checkGradient(t, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
			return square(ops.Conv2D(x, x, 2, 1))
		}, tensor.Shape{2, 2, 3, 3}, ramp(36))
	})
}

func TestSelect_Gradients(t *testing.T) {
	idx, err := tensor.FromSlice(dev, tensor.Shape{2}, []int32{2, 0})
	require.NoError(t, err)
	checkGradient(t, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
		s, err := ops.Select(x, idx)
		if err != nil {
			return nil, err
		}
		return ops.Square(s)
	}, tensor.Shape{2, 3}, ramp(6))

	rows, err := tensor.FromSlice(dev, tensor.Shape{3}, []int32{1, 1, 3})
	require.NoError(t, err)
	checkGradient(t, func(x *autodiff.Tensor[float64]) (*autodiff.Tensor[float64], error) {
		s, err := ops.Gather(x, rows)
		if err != nil {
			return nil, err
		}
		return ops.Square(s)
	}, tensor.Shape{4, 2}, ramp(8))
}

func TestSelect_IndexOutOfRange(t *testing.T) {
	idx, err := tensor.FromSlice(dev, tensor.Shape{1}, []int32{5})
	require.NoError(t, err)
	_, err = ops.Gather(leaf(t, tensor.Shape{3}, []float64{1, 2, 3}), idx)
	assert.ErrorIs(t, err, tensor.ErrIndexOutOfRange)
}

func TestOps_UntracedRecordsNothing(t *testing.T) {
	x := leaf(t, tensor.Shape{2}, []float64{1, 2})
	y, err := ops.Exp(x)
	require.NoError(t, err)
	assert.Nil(t, y.Tape())
	assert.InDeltaSlice(t, []float64{math.E, math.Exp(2)}, values(t, y), 1e-12)

	_, err = y.Backward()
	assert.ErrorIs(t, err, autodiff.ErrNoTape)
}

func TestOps_SavedInputsSurviveMutation(t *testing.T) {
	tape := autodiff.NewTape()
	x := leaf(t, tensor.Shape{2}, []float64{1, 3}).Trace(tape)
	y, err := ops.Square(x)
	require.NoError(t, err)

	// In-place writes copy the shared buffer instead of touching the saved input.
	require.NoError(t, kernels.Fill(x.Storage(), 10))

	g, err := y.Backward()
	require.NoError(t, err)
	grad, ok := autodiff.Grad(g, x)
	require.True(t, ok)
	v, err := grad.Values()
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 6}, v)
}

func TestOps_TapeMismatch(t *testing.T) {
	a := leaf(t, tensor.Shape{1}, []float64{1}).Trace(autodiff.NewTape())
	b := leaf(t, tensor.Shape{1}, []float64{2}).Trace(autodiff.NewTape())
	_, err := ops.Add(a, b)
	assert.ErrorIs(t, err, autodiff.ErrTapeMismatch)
}

func TestOps_Float32(t *testing.T) {
	s, err := tensor.FromSlice(dev, tensor.Shape{3}, []float32{1, 2, 3})
	require.NoError(t, err)
	tape := autodiff.NewTape()
	x := autodiff.NewTensor(s).Trace(tape)
	y, err := ops.Mul(x, x)
	require.NoError(t, err)
	loss, err := ops.SumTo(y)
	require.NoError(t, err)

	g, err := loss.Backward()
	require.NoError(t, err)
	grad, ok := autodiff.Grad(g, x)
	require.True(t, ok)
	v, err := grad.Values()
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 4, 6}, v)
}
