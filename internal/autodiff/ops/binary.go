package ops

import (
	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Binary applies op elementwise with broadcasting. Gradients of a broadcast
// operand sum over the broadcast axes.
func Binary[E tensor.Float](op kernels.BinaryOp, lhs, rhs *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	tape, err := autodiff.TapeOf(lhs, rhs)
	if err != nil {
		return nil, err
	}
	out, err := kernels.Binary(op, lhs.Storage(), rhs.Storage())
	if err != nil {
		return nil, err
	}
	y := autodiff.NewResult(tape, out)
	if tape == nil {
		return y, nil
	}

	l, r := lhs.Storage().Clone(), rhs.Storage().Clone()
	lid, rid := lhs.ID(), rhs.ID()
	return record(tape, op.String(), y, func(g *autodiff.Gradients, gradOut *tensor.Storage[E]) error {
		gl, gr, merge, err := pairGrads(g, lid, rid, l, r)
		if err != nil {
			return err
		}
		if err := kernels.BinaryBackward(op, l, r, gl, gr, gradOut); err != nil {
			return err
		}
		return merge()
	}, l, r)
}

// Add returns lhs + rhs.
func Add[E tensor.Float](lhs, rhs *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Binary(kernels.BinaryAdd, lhs, rhs)
}

// Sub returns lhs - rhs.
func Sub[E tensor.Float](lhs, rhs *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Binary(kernels.BinarySub, lhs, rhs)
}

// Mul returns lhs * rhs.
func Mul[E tensor.Float](lhs, rhs *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Binary(kernels.BinaryMul, lhs, rhs)
}

// Div returns lhs / rhs.
func Div[E tensor.Float](lhs, rhs *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Binary(kernels.BinaryDiv, lhs, rhs)
}

// Maximum returns the elementwise maximum. Ties split the gradient evenly.
func Maximum[E tensor.Float](lhs, rhs *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Binary(kernels.BinaryMaximum, lhs, rhs)
}

// Minimum returns the elementwise minimum. Ties split the gradient evenly.
func Minimum[E tensor.Float](lhs, rhs *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Binary(kernels.BinaryMinimum, lhs, rhs)
}
