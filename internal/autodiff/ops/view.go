package ops

import (
	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// view records a zero-copy view of x. The view shares x's buffer, so its
// gradient flows back element by element.
func view[E tensor.Float](name string, x *autodiff.Tensor[E], s *tensor.Storage[E]) (*autodiff.Tensor[E], error) {
	tape, err := autodiff.TapeOf(x)
	if err != nil {
		s.Release()
		return nil, err
	}
	y := autodiff.NewResult(tape, s)
	if tape == nil {
		return y, nil
	}

	inp, xid := x.Storage().Clone(), x.ID()
	return record(tape, name, y, func(g *autodiff.Gradients, gradOut *tensor.Storage[E]) error {
		gradInp, err := autodiff.Accumulator(g, xid, inp)
		if err != nil {
			return err
		}
		return kernels.AddPhysical(gradInp, gradOut)
	}, inp)
}

// BroadcastTo returns x broadcast to shape without copying.
func BroadcastTo[E tensor.Float](x *autodiff.Tensor[E], shape tensor.Shape) (*autodiff.Tensor[E], error) {
	s, err := x.Storage().BroadcastTo(shape)
	if err != nil {
		return nil, err
	}
	return view("broadcast_to", x, s)
}

// Permute reorders the axes of x without copying.
func Permute[E tensor.Float](x *autodiff.Tensor[E], perm ...int) (*autodiff.Tensor[E], error) {
	s, err := x.Storage().Permute(perm...)
	if err != nil {
		return nil, err
	}
	return view("permute", x, s)
}

// Reshape returns a contiguous x with a new shape.
func Reshape[E tensor.Float](x *autodiff.Tensor[E], shape tensor.Shape) (*autodiff.Tensor[E], error) {
	s, err := x.Storage().Reshape(shape)
	if err != nil {
		return nil, err
	}
	return view("reshape", x, s)
}

// Contiguous returns a row-major copy of x.
func Contiguous[E tensor.Float](x *autodiff.Tensor[E]) (*autodiff.Tensor[E], error) {
	tape, err := autodiff.TapeOf(x)
	if err != nil {
		return nil, err
	}
	out, err := kernels.Contiguous(x.Storage())
	if err != nil {
		return nil, err
	}
	y := autodiff.NewResult(tape, out)
	if tape == nil {
		return y, nil
	}

	inp, xid := x.Storage().Clone(), x.ID()
	return record(tape, "contiguous", y, func(g *autodiff.Gradients, gradOut *tensor.Storage[E]) error {
		gradInp, err := autodiff.Accumulator(g, xid, inp)
		if err != nil {
			return err
		}
		return kernels.ContiguousBackward(gradInp, gradOut)
	}, inp)
}
