package ops

import (
	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Compare returns the Bool mask of op(lhs, rhs). Masks are never traced.
func Compare[E tensor.Float](op kernels.CmpOp, lhs, rhs *autodiff.Tensor[E]) (*tensor.Storage[bool], error) {
	return kernels.Compare(op, lhs.Storage(), rhs.Storage())
}

// CompareScalar returns the Bool mask of op(x, s).
func CompareScalar[E tensor.Float](op kernels.CmpOp, x *autodiff.Tensor[E], s E) (*tensor.Storage[bool], error) {
	return kernels.CompareScalar(op, x.Storage(), float64(s))
}

func Eq[E tensor.Float](lhs, rhs *autodiff.Tensor[E]) (*tensor.Storage[bool], error) {
	return Compare(kernels.CmpEq, lhs, rhs)
}

func Ne[E tensor.Float](lhs, rhs *autodiff.Tensor[E]) (*tensor.Storage[bool], error) {
	return Compare(kernels.CmpNe, lhs, rhs)
}

func Gt[E tensor.Float](lhs, rhs *autodiff.Tensor[E]) (*tensor.Storage[bool], error) {
	return Compare(kernels.CmpGt, lhs, rhs)
}

func Ge[E tensor.Float](lhs, rhs *autodiff.Tensor[E]) (*tensor.Storage[bool], error) {
	return Compare(kernels.CmpGe, lhs, rhs)
}

func Lt[E tensor.Float](lhs, rhs *autodiff.Tensor[E]) (*tensor.Storage[bool], error) {
	return Compare(kernels.CmpLt, lhs, rhs)
}

func Le[E tensor.Float](lhs, rhs *autodiff.Tensor[E]) (*tensor.Storage[bool], error) {
	return Compare(kernels.CmpLe, lhs, rhs)
}

func EqScalar[E tensor.Float](x *autodiff.Tensor[E], s E) (*tensor.Storage[bool], error) {
	return CompareScalar(kernels.CmpEq, x, s)
}

func NeScalar[E tensor.Float](x *autodiff.Tensor[E], s E) (*tensor.Storage[bool], error) {
	return CompareScalar(kernels.CmpNe, x, s)
}

func GtScalar[E tensor.Float](x *autodiff.Tensor[E], s E) (*tensor.Storage[bool], error) {
	return CompareScalar(kernels.CmpGt, x, s)
}

func GeScalar[E tensor.Float](x *autodiff.Tensor[E], s E) (*tensor.Storage[bool], error) {
	return CompareScalar(kernels.CmpGe, x, s)
}

func LtScalar[E tensor.Float](x *autodiff.Tensor[E], s E) (*tensor.Storage[bool], error) {
	return CompareScalar(kernels.CmpLt, x, s)
}

func LeScalar[E tensor.Float](x *autodiff.Tensor[E], s E) (*tensor.Storage[bool], error) {
	return CompareScalar(kernels.CmpLe, x, s)
}

// Choose returns cond ? lhs : rhs elementwise. The gradient of each element
// goes entirely to the operand it was taken from.
func Choose[E tensor.Float](cond *tensor.Storage[bool], lhs, rhs *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	tape, err := autodiff.TapeOf(lhs, rhs)
	if err != nil {
		return nil, err
	}
	out, err := kernels.Choose(cond, lhs.Storage(), rhs.Storage())
	if err != nil {
		return nil, err
	}
	y := autodiff.NewResult(tape, out)
	if tape == nil {
		return y, nil
	}

	c, l, r := cond.Clone(), lhs.Storage().Clone(), rhs.Storage().Clone()
	lid, rid := lhs.ID(), rhs.ID()
	return record(tape, "choose", y, func(g *autodiff.Gradients, gradOut *tensor.Storage[E]) error {
		gl, gr, merge, err := pairGrads(g, lid, rid, l, r)
		if err != nil {
			return err
		}
		if err := kernels.ChooseBackward(c, l, r, gl, gr, gradOut); err != nil {
			return err
		}
		return merge()
	}, c, l, r)
}
