package kernels

import "github.com/born-ml/tensorcore/internal/tensor"

// BinaryOp selects the function of the binary kernels.
type BinaryOp int

// Binary operations. Maximum and Minimum split the gradient evenly on ties.
const (
	BinaryAdd BinaryOp = iota
	BinarySub
	BinaryMul
	BinaryDiv
	BinaryMaximum
	BinaryMinimum
)

var binaryNames = [...]string{"add", "sub", "mul", "div", "maximum", "minimum"}

// String returns the operation name.
func (op BinaryOp) String() string {
	if op < 0 || int(op) >= len(binaryNames) {
		return "unknown"
	}
	return binaryNames[op]
}

// broadcastPair computes the output shape of a binary op and the strides of
// each operand over it.
func broadcastPair(op string, lhs, rhs storage) (tensor.Shape, []int, []int, error) {
	shape, _, err := tensor.BroadcastShapes(lhs.Shape(), rhs.Shape())
	if err != nil {
		return nil, nil, nil, tensor.NewShapeError(op, err.Error(), lhs.Shape(), rhs.Shape())
	}
	ls, err := tensor.BroadcastStrides(lhs.Shape(), lhs.Strides(), shape)
	if err != nil {
		return nil, nil, nil, err
	}
	rs, err := tensor.BroadcastStrides(rhs.Shape(), rhs.Strides(), shape)
	if err != nil {
		return nil, nil, nil, err
	}
	return shape, ls, rs, nil
}

// Binary applies op with NumPy-style broadcasting. Broadcast operands are read
// through zero strides, never materialized.
//
// Launch: binary/binary_fwd_<dt>(op, info = dims ++ lhsStrides ++ rhsStrides, lhs, rhs, out).
func Binary[E tensor.Float](op BinaryOp, lhs, rhs *tensor.Storage[E]) (*tensor.Storage[E], error) {
	dev, err := sameDevice(op.String(), lhs, rhs)
	if err != nil {
		return nil, err
	}
	shape, ls, rs, err := broadcastPair(op.String(), lhs, rhs)
	if err != nil {
		return nil, err
	}
	out, err := tensor.Alloc[E](dev, shape)
	if err != nil {
		return nil, err
	}
	if err := launch(dev, ModuleBinary, "binary_fwd", lhs.DType(), out.NumElements(),
		int(op), info(shape, ls, rs), lhs.Memory(), rhs.Memory(), out.Memory()); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// BinaryBackward accumulates the partial derivatives of op into gradLhs and
// gradRhs. Contributions of broadcast axes sum into the aliased element.
//
// Launch: binary/binary_bwd_<dt>(op, info, lhs, rhs, gradLhs, gradRhs, gradOut).
func BinaryBackward[E tensor.Float](op BinaryOp, lhs, rhs, gradLhs, gradRhs, gradOut *tensor.Storage[E]) error {
	dev, err := sameDevice(op.String(), lhs, rhs, gradLhs, gradRhs, gradOut)
	if err != nil {
		return err
	}
	if err := sameLayout(op.String(), lhs, gradLhs); err != nil {
		return err
	}
	if err := sameLayout(op.String(), rhs, gradRhs); err != nil {
		return err
	}
	shape, ls, rs, err := broadcastPair(op.String(), lhs, rhs)
	if err != nil {
		return err
	}
	if !shape.Equal(gradOut.Shape()) || !gradOut.IsContiguous() {
		return tensor.NewShapeError(op.String(), "output gradient must be contiguous with the broadcast shape",
			shape, gradOut.Shape())
	}
	if err := makeUnique(gradLhs, gradRhs); err != nil {
		return err
	}
	return launch(dev, ModuleBinary, "binary_bwd", lhs.DType(), gradOut.NumElements(),
		int(op), info(shape, ls, rs),
		lhs.Memory(), rhs.Memory(), gradLhs.Memory(), gradRhs.Memory(), gradOut.Memory())
}
