package kernels

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// PoolKind selects the pooling reduction.
type PoolKind int

// Pooling kinds.
const (
	PoolAvg PoolKind = iota
	PoolMax
	PoolMin
)

// String returns the kernel name prefix.
func (k PoolKind) String() string {
	switch k {
	case PoolAvg:
		return "avg_pool2d"
	case PoolMax:
		return "max_pool2d"
	case PoolMin:
		return "min_pool2d"
	default:
		return "unknown"
	}
}

// Pool2DOp describes a square 2-D pooling window over (batch, chan, h, w).
type Pool2DOp struct {
	Kernel  int
	Stride  int
	Padding int
	Batch   int
	Chan    int
	HIn     int
	WIn     int
	HOut    int
	WOut    int
}

// NewPool2DOp derives the descriptor for an input of shape (C, H, W) or
// (B, C, H, W). Stride defaults to 1 when zero.
func NewPool2DOp(inp tensor.Shape, kernel, stride, padding int) (Pool2DOp, error) {
	if stride == 0 {
		stride = 1
	}
	batch, chanIn, h, w, err := make4D(inp)
	if err != nil {
		return Pool2DOp{}, err
	}
	if kernel <= 0 || stride <= 0 || padding < 0 {
		return Pool2DOp{}, errors.Wrapf(tensor.ErrShapeMismatch,
			"pool2d: kernel %d stride %d padding %d", kernel, stride, padding)
	}
	hOut, wOut := convOut(h, kernel, stride, padding), convOut(w, kernel, stride, padding)
	if hOut <= 0 || wOut <= 0 {
		return Pool2DOp{}, tensor.NewShapeError("pool2d", "window larger than padded input", inp)
	}
	return Pool2DOp{
		Kernel: kernel, Stride: stride, Padding: padding,
		Batch: batch, Chan: chanIn, HIn: h, WIn: w, HOut: hOut, WOut: wOut,
	}, nil
}

// OutputShape returns the output shape with the same rank as inp.
func (op Pool2DOp) OutputShape(inp tensor.Shape) tensor.Shape {
	if len(inp) == 3 {
		return tensor.Shape{op.Chan, op.HOut, op.WOut}
	}
	return tensor.Shape{op.Batch, op.Chan, op.HOut, op.WOut}
}

func (op Pool2DOp) info() []int {
	return []int{op.Batch, op.Chan, op.HIn, op.WIn, op.HOut, op.WOut, op.Kernel, op.Stride, op.Padding}
}

// make4D accepts (C, H, W) as a batch of one.
func make4D(s tensor.Shape) (batch, chans, h, w int, err error) {
	switch len(s) {
	case 3:
		return 1, s[0], s[1], s[2], nil
	case 4:
		return s[0], s[1], s[2], s[3], nil
	default:
		return 0, 0, 0, 0, tensor.NewShapeError("conv/pool", "expected rank 3 or 4", s)
	}
}

func convOut(in, kernel, stride, padding int) int {
	return (in+2*padding-kernel)/stride + 1
}

// Pool2D runs a pooling forward pass over a contiguous input.
//
// Max and min start from -Inf and +Inf and fold the in-bounds window. Average
// sums the in-bounds positions and divides by the full Kernel*Kernel area;
// padded positions count toward the divisor.
//
// Launch: pool2d/<kind>_fwd_<dt>(info = op, inp, out).
func Pool2D[E tensor.Float](kind PoolKind, op Pool2DOp, inp *tensor.Storage[E]) (*tensor.Storage[E], error) {
	if err := requireContiguous(kind.String(), inp); err != nil {
		return nil, err
	}
	if err := op.check(inp.Shape()); err != nil {
		return nil, err
	}
	out, err := tensor.Alloc[E](inp.Device(), op.OutputShape(inp.Shape()))
	if err != nil {
		return nil, err
	}
	if err := launch(inp.Device(), ModulePool2D, kind.String()+"_fwd", inp.DType(), out.NumElements(),
		op.info(), inp.Memory(), out.Memory()); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// Pool2DBackward accumulates the pooling gradient into gradInp.
//
// Average pooling adds gradOut/(Kernel*Kernel) to every in-bounds position of
// each window. Max and min pooling add the full gradOut to every position
// whose value equals the window's result, so tied positions each receive it.
//
// Launch: pool2d/<kind>_bwd_<dt>(info = op, inp, out, gradInp, gradOut).
func Pool2DBackward[E tensor.Float](kind PoolKind, op Pool2DOp, inp, out, gradInp, gradOut *tensor.Storage[E]) error {
	dev, err := sameDevice(kind.String(), inp, out, gradInp, gradOut)
	if err != nil {
		return err
	}
	if err := requireContiguous(kind.String(), inp, out, gradInp, gradOut); err != nil {
		return err
	}
	if err := op.check(inp.Shape()); err != nil {
		return err
	}
	if !out.Shape().Equal(op.OutputShape(inp.Shape())) || !gradOut.Shape().Equal(out.Shape()) ||
		!gradInp.Shape().Equal(inp.Shape()) {
		return tensor.NewShapeError(kind.String(), "gradient shapes do not match the descriptor",
			inp.Shape(), out.Shape(), gradInp.Shape(), gradOut.Shape())
	}
	if err := makeUnique(gradInp); err != nil {
		return err
	}
	return launch(dev, ModulePool2D, kind.String()+"_bwd", inp.DType(), inp.NumElements(),
		op.info(), inp.Memory(), out.Memory(), gradInp.Memory(), gradOut.Memory())
}

func (op Pool2DOp) check(inp tensor.Shape) error {
	batch, chans, h, w, err := make4D(inp)
	if err != nil {
		return err
	}
	if batch != op.Batch || chans != op.Chan || h != op.HIn || w != op.WIn {
		return tensor.NewShapeError("pool2d", "input does not match the descriptor", inp)
	}
	return nil
}
