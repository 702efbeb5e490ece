package kernels

import "github.com/born-ml/tensorcore/internal/tensor"

// UnaryOp selects the pointwise function of the unary kernels. The numeric
// values are part of the launch contract.
type UnaryOp int

// Unary operations. The *Scalar ops take their constant from the scalar argument.
const (
	UnaryNeg UnaryOp = iota
	UnarySin
	UnaryCos
	UnaryExp
	UnaryLn
	UnarySqrt
	UnarySquare
	UnaryAbs
	UnaryReLU
	UnaryTanh
	UnarySigmoid
	UnaryAddScalar
	UnaryMulScalar
	UnaryPowScalar
)

var unaryNames = [...]string{
	"neg", "sin", "cos", "exp", "ln", "sqrt", "square", "abs", "relu", "tanh", "sigmoid",
	"add_scalar", "mul_scalar", "pow_scalar",
}

// String returns the operation name.
func (op UnaryOp) String() string {
	if op < 0 || int(op) >= len(unaryNames) {
		return "unknown"
	}
	return unaryNames[op]
}

// Unary applies op pointwise, reading inp through its own strides.
//
// Launch: unary/unary_fwd_<dt>(op, scalar, info = dims ++ strides, inp, out).
func Unary[E tensor.Float](op UnaryOp, scalar float64, inp *tensor.Storage[E]) (*tensor.Storage[E], error) {
	out, err := tensor.Alloc[E](inp.Device(), inp.Shape())
	if err != nil {
		return nil, err
	}
	meta := info(inp.Shape(), inp.Strides())
	if err := launch(inp.Device(), ModuleUnary, "unary_fwd", inp.DType(), out.NumElements(),
		int(op), scalar, meta, inp.Memory(), out.Memory()); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// UnaryBackward accumulates d(op)/d(inp) * gradOut into gradInp. out is the
// forward result; gradInp has inp's layout and gradOut has out's.
//
// Launch: unary/unary_bwd_<dt>(op, scalar, info = dims ++ strides, inp, out, gradInp, gradOut).
func UnaryBackward[E tensor.Float](op UnaryOp, scalar float64, inp, out, gradInp, gradOut *tensor.Storage[E]) error {
	dev, err := sameDevice("unary_bwd", inp, out, gradInp, gradOut)
	if err != nil {
		return err
	}
	if err := sameLayout("unary_bwd", inp, gradInp); err != nil {
		return err
	}
	if err := sameLayout("unary_bwd", out, gradOut); err != nil {
		return err
	}
	if err := makeUnique(gradInp); err != nil {
		return err
	}
	meta := info(inp.Shape(), inp.Strides())
	return launch(dev, ModuleUnary, "unary_bwd", inp.DType(), inp.NumElements(),
		int(op), scalar, meta, inp.Memory(), out.Memory(), gradInp.Memory(), gradOut.Memory())
}
