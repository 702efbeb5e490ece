package kernels

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// IndexMode selects how an index tensor addresses its source axis.
type IndexMode int

// Index modes.
const (
	// RemoveDim indexes axis idx.Rank() with one index per leading position;
	// the axis disappears from the output.
	RemoveDim IndexMode = iota
	// ReplaceDim indexes axis idx.Rank()-1 with a list of indices; the axis is
	// replaced by idx's last axis.
	ReplaceDim
)

// indexLayout validates src/idx for mode and returns the indexed axis and the
// output shape.
func indexLayout(mode IndexMode, src, idx tensor.Shape) (int, tensor.Shape, error) {
	r := len(idx)
	switch mode {
	case RemoveDim:
		if r >= len(src) || !idx.Equal(src[:r]) {
			return 0, nil, tensor.NewShapeError("select", "index shape must equal the leading source axes", src, idx)
		}
		out := append(src[:r:r].Clone(), src[r+1:]...)
		return r, out, nil
	case ReplaceDim:
		if r == 0 || r > len(src) || !idx[:r-1].Equal(src[:r-1]) {
			return 0, nil, tensor.NewShapeError("gather", "index batch axes must equal the leading source axes", src, idx)
		}
		out := append(idx.Clone(), src[r:]...)
		return r - 1, out, nil
	default:
		return 0, nil, errors.Wrapf(tensor.ErrBadArgument, "index mode %d", mode)
	}
}

// String returns the operation name used in errors.
func (m IndexMode) String() string {
	if m == RemoveDim {
		return "select"
	}
	return "gather"
}

// Select picks src[..., idx[...], ...] along axis idx.Rank() (RemoveDim) or
// gathers a list of indices along axis idx.Rank()-1 (ReplaceDim).
// Out-of-range indices fail with tensor.ErrIndexOutOfRange on host devices.
//
// Launch: select/select_fwd_<dt>(mode, axis, axisLen, srcRank, idxRank,
// info = outDims ++ srcStrides ++ idxStrides, src, idx, out).
func Select[E tensor.Float](mode IndexMode, src *tensor.Storage[E], idx *tensor.Storage[int32]) (*tensor.Storage[E], error) {
	dev, err := sameDevice(mode.String(), src, idx)
	if err != nil {
		return nil, err
	}
	axis, outShape, err := indexLayout(mode, src.Shape(), idx.Shape())
	if err != nil {
		return nil, err
	}
	out, err := tensor.Alloc[E](dev, outShape)
	if err != nil {
		return nil, err
	}
	meta := info(outShape, src.Strides(), idx.Strides())
	if err := launch(dev, ModuleSelect, "select_fwd", src.DType(), out.NumElements(),
		int(mode), axis, src.Shape()[axis], len(src.Shape()), len(idx.Shape()), meta,
		src.Memory(), idx.Memory(), out.Memory()); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// SelectBackward scatters gradOut back into gradSrc, adding where several
// output positions read the same source element.
//
// Launch: select/select_bwd_<dt>(mode, axis, axisLen, srcRank, idxRank, info, idx, gradSrc, gradOut).
func SelectBackward[E tensor.Float](mode IndexMode, src *tensor.Storage[E], idx *tensor.Storage[int32], gradSrc, gradOut *tensor.Storage[E]) error {
	dev, err := sameDevice(mode.String(), src, idx, gradSrc, gradOut)
	if err != nil {
		return err
	}
	if err := sameLayout(mode.String(), src, gradSrc); err != nil {
		return err
	}
	axis, outShape, err := indexLayout(mode, src.Shape(), idx.Shape())
	if err != nil {
		return err
	}
	if !outShape.Equal(gradOut.Shape()) || !gradOut.IsContiguous() {
		return tensor.NewShapeError(mode.String(), "output gradient must be contiguous with the output shape",
			outShape, gradOut.Shape())
	}
	if err := makeUnique(gradSrc); err != nil {
		return err
	}
	meta := info(outShape, src.Strides(), idx.Strides())
	return launch(dev, ModuleSelect, "select_bwd", src.DType(), gradOut.NumElements(),
		int(mode), axis, src.Shape()[axis], len(src.Shape()), len(idx.Shape()), meta,
		idx.Memory(), gradSrc.Memory(), gradOut.Memory())
}
