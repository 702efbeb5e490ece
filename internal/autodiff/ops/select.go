package ops

import (
	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Index picks elements of x with idx. The index tensor is never traced.
func Index[E tensor.Float](mode kernels.IndexMode, x *autodiff.Tensor[E], idx *tensor.Storage[int32]) (*autodiff.Tensor[E], error) {
	tape, err := autodiff.TapeOf(x)
	if err != nil {
		return nil, err
	}
	out, err := kernels.Select(mode, x.Storage(), idx)
	if err != nil {
		return nil, err
	}
	y := autodiff.NewResult(tape, out)
	if tape == nil {
		return y, nil
	}

	src, ix, xid := x.Storage().Clone(), idx.Clone(), x.ID()
	return record(tape, mode.String(), y, func(g *autodiff.Gradients, gradOut *tensor.Storage[E]) error {
		gradSrc, err := autodiff.Accumulator(g, xid, src)
		if err != nil {
			return err
		}
		return kernels.SelectBackward(mode, src, ix, gradSrc, gradOut)
	}, src, ix)
}

// Select removes axis idx.Rank() of x, picking x[i..., idx[i...], ...] for
// every leading position.
func Select[E tensor.Float](x *autodiff.Tensor[E], idx *tensor.Storage[int32]) (*autodiff.Tensor[E], error) {
	return Index(kernels.RemoveDim, x, idx)
}

// Gather replaces axis idx.Rank()-1 of x with idx's last axis. Repeated
// indices accumulate their gradients.
func Gather[E tensor.Float](x *autodiff.Tensor[E], idx *tensor.Storage[int32]) (*autodiff.Tensor[E], error) {
	return Index(kernels.ReplaceDim, x, idx)
}
