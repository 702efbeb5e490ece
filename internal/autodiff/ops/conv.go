package ops

import (
	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Conv2D convolves x, shaped (C, H, W) or (B, C, H, W), with filters shaped
// (O, C, K, K). A zero stride means 1.
func Conv2D[E tensor.Float](x, filters *autodiff.Tensor[E], stride, padding int) (*autodiff.Tensor[E], error) {
	tape, err := autodiff.TapeOf(x, filters)
	if err != nil {
		return nil, err
	}
	op, err := kernels.NewConv2DOp(x.Shape(), filters.Shape(), stride, padding)
	if err != nil {
		return nil, err
	}
	img, releaseImg, err := contiguous(x)
	if err != nil {
		return nil, err
	}
	defer releaseImg()
	f, releaseF, err := contiguous(filters)
	if err != nil {
		return nil, err
	}
	defer releaseF()

	out, err := kernels.Conv2D(op, img.Storage(), f.Storage())
	if err != nil {
		return nil, err
	}
	y := autodiff.NewResult(tape, out)
	if tape == nil {
		return y, nil
	}

	is, fs := img.Storage().Clone(), f.Storage().Clone()
	iid, fid := img.ID(), f.ID()
	return record(tape, "conv2d", y, func(g *autodiff.Gradients, gradOut *tensor.Storage[E]) error {
		gi, gf, merge, err := pairGrads(g, iid, fid, is, fs)
		if err != nil {
			return err
		}
		gradOut, release, err := contiguousStorage(gradOut)
		if err != nil {
			return err
		}
		defer release()
		if err := kernels.Conv2DBackward(op, is, fs, gi, gf, gradOut); err != nil {
			return err
		}
		return merge()
	}, is, fs)
}
