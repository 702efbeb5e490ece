// Package ops defines the differentiable operations of the autodiff engine.
//
// Each operation runs its forward kernel and, when an operand is traced,
// records a backward closure on the operands' tape. Closures save cloned
// references to the storages they read, so later in-place updates of the
// operands copy instead of corrupting the saved values.
//
// Supported operations:
//   - unary: Neg, Sin, Cos, Exp, Ln, Sqrt, Square, Abs, ReLU, Tanh, Sigmoid,
//     AddScalar, MulScalar, PowScalar
//   - binary with broadcasting: Add, Sub, Mul, Div, Maximum, Minimum
//   - comparisons (untracked Bool output) and Choose
//   - reductions: SumTo, MinTo, MaxTo, Mean
//   - views: BroadcastTo, Permute, Reshape, Contiguous
//   - AvgPool2D, MaxPool2D, MinPool2D, Conv2D, Select, Gather
package ops

import (
	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// backwardFunc receives the gradient of the operation's output.
type backwardFunc[E tensor.Float] func(g *autodiff.Gradients, gradOut *tensor.Storage[E]) error

// record registers backward for y. The closure is skipped when no gradient
// reached y.
func record[E tensor.Float](tape *autodiff.Tape, name string, y *autodiff.Tensor[E],
	backward backwardFunc[E], saved ...autodiff.Releaser) (*autodiff.Tensor[E], error) {
	id := y.ID()
	err := tape.Record(name, func(g *autodiff.Gradients) error {
		gradOut, ok := autodiff.Lookup[E](g, id)
		if !ok {
			return nil
		}
		return backward(g, gradOut)
	}, saved...)
	if err != nil {
		y.Release()
		return nil, err
	}
	return y, nil
}

// pairGrads returns accumulators for two operands. When both are the same
// tensor the second one is a temporary, so no kernel writes one buffer
// through two arguments; merge folds it back.
func pairGrads[E tensor.Float](g *autodiff.Gradients, lid, rid uint64, lhs, rhs *tensor.Storage[E],
) (gl, gr *tensor.Storage[E], merge func() error, err error) {
	gl, err = autodiff.Accumulator(g, lid, lhs)
	if err != nil {
		return nil, nil, nil, err
	}
	if lid != rid {
		gr, err = autodiff.Accumulator(g, rid, rhs)
		return gl, gr, func() error { return nil }, err
	}
	gr, err = tensor.ZerosLike(rhs)
	if err != nil {
		return nil, nil, nil, err
	}
	return gl, gr, func() error {
		defer gr.Release()
		return kernels.AddPhysical(gl, gr)
	}, nil
}

// contiguous returns x, or a recorded contiguous copy of it. release drops
// the copy's reference once the caller has saved what it needs.
func contiguous[E tensor.Float](x *autodiff.Tensor[E]) (c *autodiff.Tensor[E], release func(), err error) {
	if x.Storage().IsContiguous() {
		return x, func() {}, nil
	}
	c, err = Contiguous(x)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Release, nil
}

// contiguousStorage is contiguous for untraced gradients.
func contiguousStorage[E tensor.Float](s *tensor.Storage[E]) (*tensor.Storage[E], func(), error) {
	if s.IsContiguous() {
		return s, func() {}, nil
	}
	c, err := kernels.Contiguous(s)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Release, nil
}
