package kernels

import "github.com/born-ml/tensorcore/internal/tensor"

// CmpOp selects the comparison.
type CmpOp int

// Comparison operations.
const (
	CmpEq CmpOp = iota
	CmpNe
	CmpGt
	CmpGe
	CmpLt
	CmpLe
)

var cmpNames = [...]string{"eq", "ne", "gt", "ge", "lt", "le"}

// String returns the operation name.
func (op CmpOp) String() string {
	if op < 0 || int(op) >= len(cmpNames) {
		return "unknown"
	}
	return cmpNames[op]
}

// Compare evaluates lhs <op> rhs with broadcasting. The result is a Bool
// storage in the default layout; it carries no gradient.
//
// Launch: cmp/cmp_<dt>(op, info = dims ++ lhsStrides ++ rhsStrides, lhs, rhs, out).
func Compare[E tensor.Float](op CmpOp, lhs, rhs *tensor.Storage[E]) (*tensor.Storage[bool], error) {
	dev, err := sameDevice(op.String(), lhs, rhs)
	if err != nil {
		return nil, err
	}
	shape, ls, rs, err := broadcastPair(op.String(), lhs, rhs)
	if err != nil {
		return nil, err
	}
	out, err := tensor.Alloc[bool](dev, shape)
	if err != nil {
		return nil, err
	}
	if err := launch(dev, ModuleCmp, "cmp", lhs.DType(), out.NumElements(),
		int(op), info(shape, ls, rs), lhs.Memory(), rhs.Memory(), out.Memory()); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// CompareScalar evaluates inp <op> scalar elementwise.
//
// Launch: cmp/scalar_cmp_<dt>(op, scalar, info = dims ++ strides, inp, out).
func CompareScalar[E tensor.Float](op CmpOp, inp *tensor.Storage[E], scalar float64) (*tensor.Storage[bool], error) {
	out, err := tensor.Alloc[bool](inp.Device(), inp.Shape())
	if err != nil {
		return nil, err
	}
	if err := launch(inp.Device(), ModuleCmp, "scalar_cmp", inp.DType(), out.NumElements(),
		int(op), scalar, info(inp.Shape(), inp.Strides()), inp.Memory(), out.Memory()); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}
