package ops

import (
	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// allAxes treats an empty axis list as every axis.
func allAxes(rank int, axes []int) []int {
	if len(axes) > 0 {
		return append([]int(nil), axes...)
	}
	all := make([]int, rank)
	for i := range all {
		all[i] = i
	}
	return all
}

// Reduce folds x over axes (every axis when none are given).
func Reduce[E tensor.Float](op kernels.ReduceOp, x *autodiff.Tensor[E], axes ...int) (*autodiff.Tensor[E], error) {
	tape, err := autodiff.TapeOf(x)
	if err != nil {
		return nil, err
	}
	axes = allAxes(len(x.Shape()), axes)
	out, err := kernels.ReduceTo(op, x.Storage(), axes...)
	if err != nil {
		return nil, err
	}
	y := autodiff.NewResult(tape, out)
	if tape == nil {
		return y, nil
	}

	inp, res, xid := x.Storage().Clone(), out.Clone(), x.ID()
	return record(tape, op.String(), y, func(g *autodiff.Gradients, gradOut *tensor.Storage[E]) error {
		gradInp, err := autodiff.Accumulator(g, xid, inp)
		if err != nil {
			return err
		}
		return kernels.ReduceBackward(op, inp, res, gradInp, gradOut, axes...)
	}, inp, res)
}

// SumTo sums x over axes.
func SumTo[E tensor.Float](x *autodiff.Tensor[E], axes ...int) (*autodiff.Tensor[E], error) {
	return Reduce(kernels.ReduceSum, x, axes...)
}

// MinTo takes the minimum over axes. Every tied element receives the full gradient.
func MinTo[E tensor.Float](x *autodiff.Tensor[E], axes ...int) (*autodiff.Tensor[E], error) {
	return Reduce(kernels.ReduceMin, x, axes...)
}

// MaxTo takes the maximum over axes. Every tied element receives the full gradient.
func MaxTo[E tensor.Float](x *autodiff.Tensor[E], axes ...int) (*autodiff.Tensor[E], error) {
	return Reduce(kernels.ReduceMax, x, axes...)
}

// Mean averages x over axes.
func Mean[E tensor.Float](x *autodiff.Tensor[E], axes ...int) (*autodiff.Tensor[E], error) {
	axes, err := tensor.NormalizeAxes(len(x.Shape()), allAxes(len(x.Shape()), axes))
	if err != nil {
		return nil, err
	}
	n := 1
	for _, ax := range axes {
		n *= x.Shape()[ax]
	}
	sum, err := SumTo(x, axes...)
	if err != nil {
		return nil, err
	}
	defer sum.Release()
	return MulScalar(sum, E(1)/E(n))
}
