package kernels

import "github.com/born-ml/tensorcore/internal/tensor"

// Fill sets every physical element of s to v, copying the buffer first if it
// is shared.
//
// Launch: fill/fill_<dt>(value float64, out).
func Fill[E tensor.Float](s *tensor.Storage[E], v float64) error {
	if err := s.MakeUnique(); err != nil {
		return err
	}
	return launch(s.Device(), ModuleFill, "fill", s.DType(), s.PhysicalLen(), v, s.Memory())
}

// Contiguous returns a row-major copy of inp.
//
// Launch: copy/copy_strided_fwd_<dt>(info = dims ++ strides, inp, out).
func Contiguous[E tensor.Float](inp *tensor.Storage[E]) (*tensor.Storage[E], error) {
	out, err := tensor.Alloc[E](inp.Device(), inp.Shape())
	if err != nil {
		return nil, err
	}
	meta := info(inp.Shape(), inp.Strides())
	if err := launch(inp.Device(), ModuleCopy, "copy_strided_fwd", inp.DType(), out.NumElements(),
		meta, inp.Memory(), out.Memory()); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// ContiguousBackward accumulates gradOut (contiguous) into gradInp, which has
// the layout of the original strided input.
//
// Launch: copy/copy_strided_bwd_<dt>(info = dims ++ strides, gradInp, gradOut).
func ContiguousBackward[E tensor.Float](gradInp, gradOut *tensor.Storage[E]) error {
	dev, err := sameDevice("contiguous_bwd", gradInp, gradOut)
	if err != nil {
		return err
	}
	if !gradInp.Shape().Equal(gradOut.Shape()) {
		return tensor.NewShapeError("contiguous_bwd", "", gradInp.Shape(), gradOut.Shape())
	}
	if err := makeUnique(gradInp); err != nil {
		return err
	}
	meta := info(gradInp.Shape(), gradInp.Strides())
	return launch(dev, ModuleCopy, "copy_strided_bwd", gradInp.DType(), gradOut.NumElements(),
		meta, gradInp.Memory(), gradOut.Memory())
}

// AddPhysical adds src's buffer into dst's element by element, ignoring
// shapes. Gradients of views that share a buffer with their source (broadcast,
// permute, reshape) flow back this way. Both buffers must have the same length.
//
// Launch: copy/copy_strided_bwd_<dt>(info = [n, 1], dst, src).
func AddPhysical[E tensor.Float](dst, src *tensor.Storage[E]) error {
	dev, err := sameDevice("add_physical", dst, src)
	if err != nil {
		return err
	}
	n := dst.PhysicalLen()
	if src.PhysicalLen() != n {
		return tensor.NewShapeError("add_physical", "physical lengths differ", dst.Shape(), src.Shape())
	}
	if err := makeUnique(dst); err != nil {
		return err
	}
	return launch(dev, ModuleCopy, "copy_strided_bwd", dst.DType(), n, []int{n, 1}, dst.Memory(), src.Memory())
}
