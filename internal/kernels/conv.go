package kernels

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Conv2DOp describes a square 2-D convolution of an (B, ChanIn, HIn, WIn)
// image with (ChanOut, ChanIn, Kernel, Kernel) filters.
type Conv2DOp struct {
	Batch   int
	ChanIn  int
	ChanOut int
	Kernel  int
	HIn     int
	WIn     int
	HOut    int
	WOut    int
	Stride  int
	Padding int
}

// NewConv2DOp derives the descriptor from the image shape ((C, H, W) or
// (B, C, H, W)) and the filter shape. Stride defaults to 1 when zero.
func NewConv2DOp(img, filters tensor.Shape, stride, padding int) (Conv2DOp, error) {
	if stride == 0 {
		stride = 1
	}
	batch, chanIn, h, w, err := make4D(img)
	if err != nil {
		return Conv2DOp{}, err
	}
	if len(filters) != 4 || filters[1] != chanIn || filters[2] != filters[3] {
		return Conv2DOp{}, tensor.NewShapeError("conv2d", "filters must be (out, in, k, k)", img, filters)
	}
	if stride < 0 || padding < 0 {
		return Conv2DOp{}, errors.Wrapf(tensor.ErrShapeMismatch, "conv2d: stride %d padding %d", stride, padding)
	}
	kernel := filters[2]
	hOut, wOut := convOut(h, kernel, stride, padding), convOut(w, kernel, stride, padding)
	if hOut <= 0 || wOut <= 0 {
		return Conv2DOp{}, tensor.NewShapeError("conv2d", "kernel larger than padded input", img, filters)
	}
	return Conv2DOp{
		Batch: batch, ChanIn: chanIn, ChanOut: filters[0], Kernel: kernel,
		HIn: h, WIn: w, HOut: hOut, WOut: wOut, Stride: stride, Padding: padding,
	}, nil
}

// OutputShape returns the output shape with the same rank as img.
func (op Conv2DOp) OutputShape(img tensor.Shape) tensor.Shape {
	if len(img) == 3 {
		return tensor.Shape{op.ChanOut, op.HOut, op.WOut}
	}
	return tensor.Shape{op.Batch, op.ChanOut, op.HOut, op.WOut}
}

// FilterShape returns (ChanOut, ChanIn, Kernel, Kernel).
func (op Conv2DOp) FilterShape() tensor.Shape {
	return tensor.Shape{op.ChanOut, op.ChanIn, op.Kernel, op.Kernel}
}

func (op Conv2DOp) info() []int {
	return []int{op.Batch, op.ChanIn, op.ChanOut, op.Kernel, op.HIn, op.WIn, op.HOut, op.WOut, op.Stride, op.Padding}
}

func (op Conv2DOp) check(img, filters tensor.Shape) error {
	batch, chans, h, w, err := make4D(img)
	if err != nil {
		return err
	}
	if batch != op.Batch || chans != op.ChanIn || h != op.HIn || w != op.WIn || !filters.Equal(op.FilterShape()) {
		return tensor.NewShapeError("conv2d", "operands do not match the descriptor", img, filters)
	}
	return nil
}

// Conv2D computes the convolution as patch unfolding followed by a batched GEMM:
//
//	patches[b] = unfold(img[b])           (ChanIn*K*K) × (HOut*WOut)
//	out[b]     = filters × patches[b]     ChanOut × (HOut*WOut)
//
// Launches: conv2d/unfold_input_<dt>(info = op, img, patches), then blas/gemm_batched_<dt>.
func Conv2D[E tensor.Float](op Conv2DOp, img, filters *tensor.Storage[E]) (*tensor.Storage[E], error) {
	dev, err := sameDevice("conv2d", img, filters)
	if err != nil {
		return nil, err
	}
	if err := requireContiguous("conv2d", img, filters); err != nil {
		return nil, err
	}
	if err := op.check(img.Shape(), filters.Shape()); err != nil {
		return nil, err
	}
	dt := img.DType()
	m, k, n := op.ChanOut, op.ChanIn*op.Kernel*op.Kernel, op.HOut*op.WOut

	patches, err := dev.Alloc(dt, op.Batch*k*n)
	if err != nil {
		return nil, err
	}
	defer patches.Release()
	if err := launch(dev, ModuleConv2D, "unfold_input", dt, op.Batch*k*n,
		op.info(), img.Memory(), patches); err != nil {
		return nil, err
	}

	out, err := tensor.Alloc[E](dev, op.OutputShape(img.Shape()))
	if err != nil {
		return nil, err
	}
	g := Gemm{
		Batch: op.Batch, M: m, N: n, K: k, Alpha: 1, Beta: 0,
		AStrides: [3]int{0, k, 1},
		BStrides: [3]int{k * n, n, 1},
		CStrides: [3]int{m * n, n, 1},
	}
	if err := GemmBatched(dev, dt, g, filters.Memory(), patches, out.Memory()); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// Conv2DBackward accumulates the image and filter gradients.
//
// The image gradient unfolds gradOut around every input position and
// multiplies by the (ChanIn, ChanOut*K*K) transposed filters, accumulating
// into gradImg with beta = 1. The filter gradient multiplies each image by the
// transposed output patches into a per-batch buffer, which is then summed over
// the batch into gradFilters.
//
// Launches: conv2d/unfold_output_<dt>(info, gradOut, patches),
// conv2d/transpose_filters_<dt>(info, filters, ft), blas/gemm_batched_<dt> twice,
// conv2d/sum_transposed_filters_<dt>(info, gradFB, gradFilters).
func Conv2DBackward[E tensor.Float](op Conv2DOp, img, filters, gradImg, gradFilters, gradOut *tensor.Storage[E]) error {
	dev, err := sameDevice("conv2d_bwd", img, filters, gradImg, gradFilters, gradOut)
	if err != nil {
		return err
	}
	if err := requireContiguous("conv2d_bwd", img, filters, gradImg, gradFilters, gradOut); err != nil {
		return err
	}
	if err := op.check(img.Shape(), filters.Shape()); err != nil {
		return err
	}
	if !gradImg.Shape().Equal(img.Shape()) || !gradFilters.Shape().Equal(filters.Shape()) ||
		!gradOut.Shape().Equal(op.OutputShape(img.Shape())) {
		return tensor.NewShapeError("conv2d_bwd", "gradient shapes do not match the descriptor",
			gradImg.Shape(), gradFilters.Shape(), gradOut.Shape())
	}
	if err := makeUnique(gradImg, gradFilters); err != nil {
		return err
	}
	dt := img.DType()
	okk := op.ChanOut * op.Kernel * op.Kernel
	hw := op.HIn * op.WIn
	c := op.ChanIn

	patches, err := dev.Alloc(dt, op.Batch*okk*hw)
	if err != nil {
		return err
	}
	defer patches.Release()
	if err := launch(dev, ModuleConv2D, "unfold_output", dt, op.Batch*okk*hw,
		op.info(), gradOut.Memory(), patches); err != nil {
		return err
	}

	ft, err := dev.Alloc(dt, c*okk)
	if err != nil {
		return err
	}
	defer ft.Release()
	if err := launch(dev, ModuleConv2D, "transpose_filters", dt, c*okk,
		op.info(), filters.Memory(), ft); err != nil {
		return err
	}

	// gradImg[b] += ft × patches[b]
	gImg := Gemm{
		Batch: op.Batch, M: c, N: hw, K: okk, Alpha: 1, Beta: 1,
		AStrides: [3]int{0, okk, 1},
		BStrides: [3]int{okk * hw, hw, 1},
		CStrides: [3]int{c * hw, hw, 1},
	}
	if err := GemmBatched(dev, dt, gImg, ft, patches, gradImg.Memory()); err != nil {
		return err
	}

	// gradFB[b] += img[b] × patches[b]ᵀ
	gradFB, err := dev.AllocZeroed(dt, op.Batch*c*okk)
	if err != nil {
		return err
	}
	defer gradFB.Release()
	gF := Gemm{
		Batch: op.Batch, M: c, N: okk, K: hw, Alpha: 1, Beta: 1,
		AStrides: [3]int{c * hw, hw, 1},
		BStrides: [3]int{okk * hw, 1, hw},
		CStrides: [3]int{c * okk, okk, 1},
	}
	if err := GemmBatched(dev, dt, gF, img.Memory(), patches, gradFB); err != nil {
		return err
	}

	return launch(dev, ModuleConv2D, "sum_transposed_filters", dt, c*okk,
		op.info(), gradFB, gradFilters.Memory())
}
