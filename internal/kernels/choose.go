package kernels

import "github.com/born-ml/tensorcore/internal/tensor"

// chooseLayout broadcasts cond, lhs and rhs to one shape.
func chooseLayout(cond, lhs, rhs storage) (tensor.Shape, []int, error) {
	shape, _, err := tensor.BroadcastShapes(lhs.Shape(), rhs.Shape())
	if err != nil {
		return nil, nil, tensor.NewShapeError("choose", err.Error(), cond.Shape(), lhs.Shape(), rhs.Shape())
	}
	shape, _, err = tensor.BroadcastShapes(cond.Shape(), shape)
	if err != nil {
		return nil, nil, tensor.NewShapeError("choose", err.Error(), cond.Shape(), lhs.Shape(), rhs.Shape())
	}
	var meta []int
	meta = append(meta, shape...)
	for _, s := range []storage{cond, lhs, rhs} {
		st, err := tensor.BroadcastStrides(s.Shape(), s.Strides(), shape)
		if err != nil {
			return nil, nil, err
		}
		meta = append(meta, st...)
	}
	return shape, meta, nil
}

// Choose picks lhs where cond is true and rhs elsewhere.
//
// Launch: choose/choose_fwd_<dt>(info = dims ++ condStrides ++ lhsStrides ++ rhsStrides, cond, lhs, rhs, out).
func Choose[E tensor.Float](cond *tensor.Storage[bool], lhs, rhs *tensor.Storage[E]) (*tensor.Storage[E], error) {
	dev, err := sameDevice("choose", lhs, rhs, cond)
	if err != nil {
		return nil, err
	}
	shape, meta, err := chooseLayout(cond, lhs, rhs)
	if err != nil {
		return nil, err
	}
	out, err := tensor.Alloc[E](dev, shape)
	if err != nil {
		return nil, err
	}
	if err := launch(dev, ModuleChoose, "choose_fwd", lhs.DType(), out.NumElements(),
		meta, cond.Memory(), lhs.Memory(), rhs.Memory(), out.Memory()); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// ChooseBackward routes each element of gradOut entirely to gradLhs where
// cond is true and entirely to gradRhs elsewhere.
//
// Launch: choose/choose_bwd_<dt>(info, cond, gradLhs, gradRhs, gradOut).
func ChooseBackward[E tensor.Float](cond *tensor.Storage[bool], lhs, rhs, gradLhs, gradRhs, gradOut *tensor.Storage[E]) error {
	dev, err := sameDevice("choose_bwd", lhs, rhs, gradLhs, gradRhs, gradOut, cond)
	if err != nil {
		return err
	}
	if err := sameLayout("choose_bwd", lhs, gradLhs); err != nil {
		return err
	}
	if err := sameLayout("choose_bwd", rhs, gradRhs); err != nil {
		return err
	}
	shape, meta, err := chooseLayout(cond, lhs, rhs)
	if err != nil {
		return err
	}
	if !shape.Equal(gradOut.Shape()) || !gradOut.IsContiguous() {
		return tensor.NewShapeError("choose_bwd", "output gradient must be contiguous with the broadcast shape",
			shape, gradOut.Shape())
	}
	if err := makeUnique(gradLhs, gradRhs); err != nil {
		return err
	}
	return launch(dev, ModuleChoose, "choose_bwd", lhs.DType(), gradOut.NumElements(),
		meta, cond.Memory(), gradLhs.Memory(), gradRhs.Memory(), gradOut.Memory())
}
