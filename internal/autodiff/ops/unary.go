package ops

import (
	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Unary applies op pointwise. scalar is the constant of the *Scalar ops.
func Unary[E tensor.Float](op kernels.UnaryOp, scalar float64, x *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	tape, err := autodiff.TapeOf(x)
	if err != nil {
		return nil, err
	}
	out, err := kernels.Unary(op, scalar, x.Storage())
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
		return kernels.UnaryBackward(op, scalar, inp, res, gradInp, gradOut)
	}, inp, res)
}

// Neg returns -x.
func Neg[E tensor.Float](x *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnaryNeg, 0, x)
}

// Sin returns sin(x).
func Sin[E tensor.Float](x *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnarySin, 0, x)
}

// Cos returns cos(x).
func Cos[E tensor.Float](x *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnaryCos, 0, x)
}

// Exp returns e^x.
func Exp[E tensor.Float](x *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnaryExp, 0, x)
}

// Ln returns the natural logarithm of x.
func Ln[E tensor.Float](x *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnaryLn, 0, x)
}

// Sqrt returns the square root of x.
func Sqrt[E tensor.Float](x *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnarySqrt, 0, x)
}

// Square returns x².
func Square[E tensor.Float](x *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnarySquare, 0, x)
}

// Abs returns |x|. Its gradient at 0 is 0.
func Abs[E tensor.Float](x *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnaryAbs, 0, x)
}

// ReLU returns max(x, 0).
func ReLU[E tensor.Float](x *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnaryReLU, 0, x)
}

// Tanh returns tanh(x).
func Tanh[E tensor.Float](x *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnaryTanh, 0, x)
}

// Sigmoid returns 1/(1+e^-x).
func Sigmoid[E tensor.Float](x *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnarySigmoid, 0, x)
}

// AddScalar returns x + s.
func AddScalar[E tensor.Float](x *autodiff.Tensor[E], s E) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnaryAddScalar, float64(s), x)
}

// MulScalar returns x * s.
func MulScalar[E tensor.Float](x *autodiff.Tensor[E], s E) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnaryMulScalar, float64(s), x)
}

// PowScalar returns x^s.
func PowScalar[E tensor.Float](x *autodiff.Tensor[E], s E) (*autodiff.Tensor[E], error) {
	return Unary(kernels.UnaryPowScalar, float64(s), x)
}
