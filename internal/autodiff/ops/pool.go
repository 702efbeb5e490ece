package ops

import (
	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Pool2D pools x, shaped (C, H, W) or (B, C, H, W), with a square window.
// A zero stride means 1.
func Pool2D[E tensor.Float](kind kernels.PoolKind, x *autodiff.Tensor[E], kernel, stride, padding int) (*autodiff.Tensor[E], error) {
	tape, err := autodiff.TapeOf(x)
	if err != nil {
		return nil, err
	}
	op, err := kernels.NewPool2DOp(x.Shape(), kernel, stride, padding)
	if err != nil {
		return nil, err
	}
	c, release, err := contiguous(x)
	if err != nil {
		return nil, err
	}
	defer release()

	out, err := kernels.Pool2D(kind, op, c.Storage())
	if err != nil {
		return nil, err
	}
	y := autodiff.NewResult(tape, out)
	if tape == nil {
		return y, nil
	}

	inp, res, cid := c.Storage().Clone(), out.Clone(), c.ID()
	return record(tape, kind.String(), y, func(g *autodiff.Gradients, gradOut *tensor.Storage[E]) error {
		gradInp, err := autodiff.Accumulator(g, cid, inp)
		if err != nil {
			return err
		}
		gradOut, release, err := contiguousStorage(gradOut)
		if err != nil {
			return err
		}
		defer release()
		return kernels.Pool2DBackward(kind, op, inp, res, gradInp, gradOut)
	}, inp, res)
}

// AvgPool2D averages each window. Padding counts toward the divisor.
func AvgPool2D[E tensor.Float](x *autodiff.Tensor[E], kernel, stride, padding int) (*autodiff.Tensor[E], error) {
	return Pool2D(kernels.PoolAvg, x, kernel, stride, padding)
}

// MaxPool2D takes the maximum of each window.
func MaxPool2D[E tensor.Float](x *autodiff.Tensor[E], kernel, stride, padding int) (*autodiff.Tensor[E], error) {
	return Pool2D(kernels.PoolMax, x, kernel, stride, padding)
}

// MinPool2D takes the minimum of each window.
func MinPool2D[E tensor.Float](x *autodiff.Tensor[E], kernel, stride, padding int) (*autodiff.Tensor[E], error) {
	return Pool2D(kernels.PoolMin, x, kernel, stride, padding)
}
