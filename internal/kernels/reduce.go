package kernels

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// ReduceOp selects the combine rule of a reduction.
type ReduceOp int

// Reductions. Identities are 0, +Inf and -Inf respectively.
const (
	ReduceSum ReduceOp = iota
	ReduceMin
	ReduceMax
)

// String returns the kernel name prefix.
func (op ReduceOp) String() string {
	switch op {
	case ReduceSum:
		return "sum_to"
	case ReduceMin:
		return "min_to"
	case ReduceMax:
		return "max_to"
	default:
		return "unknown"
	}
}

// ReduceTo folds inp over axes. Kept axes that are broadcast in inp stay
// broadcast in the output, so its buffer holds only the physically distinct
// results.
//
// The device walks inp in the order given by tensor.PermuteForReduction: each
// output slot owns a contiguous run of chunk elements, starts from the
// reduction's identity and folds the run. Reduced axes that are broadcast in
// inp hold a single physical element; a sum multiplies its result by their
// extent, min and max need no correction.
//
// Launch: reduce/<op>_fwd_<dt>(chunk, scale, info = permutedDims ++ permutedStrides, inp, out).
func ReduceTo[E tensor.Float](op ReduceOp, inp *tensor.Storage[E], axes ...int) (*tensor.Storage[E], error) {
	axes, err := tensor.NormalizeAxes(len(inp.Shape()), axes)
	if err != nil {
		return nil, errors.Wrap(err, op.String())
	}
	dev := inp.Device()
	dstShape := tensor.ReduceShape(inp.Shape(), axes)
	physical, dstStrides := tensor.ReductionOutputStrides(inp.Shape(), inp.Strides(), axes)
	chunk := tensor.ReductionElemsPerThread(inp.Shape(), inp.Strides(), axes)
	pdims, pstrides := tensor.PermuteForReduction(inp.Shape(), inp.Strides(), axes)

	mem, err := dev.Alloc(inp.DType(), physical)
	if err != nil {
		return nil, err
	}
	out, err := tensor.Wrap[E](dev, mem, dstShape, dstStrides)
	if err != nil {
		mem.Release()
		return nil, err
	}
	scale := 1.0
	if op == ReduceSum {
		for _, ax := range axes {
			if inp.Strides()[ax] == 0 {
				scale *= float64(inp.Shape()[ax])
			}
		}
	}
	if err := launch(dev, ModuleReduce, op.String()+"_fwd", inp.DType(), physical,
		chunk, scale, info(pdims, pstrides), inp.Memory(), out.Memory()); err != nil {
		out.Release()
		return nil, err
	}
	return out, nil
}

// ReduceBackward accumulates the gradient of ReduceTo into gradInp.
//
// The device walks inp with every broadcast kept axis collapsed to extent 1:
// the gradient of such an axis is already summed in gradOut's shared slot.
// Broadcast reduced axes are walked in full, so a physical element shared
// through one accumulates once per alias. For a sum every
// element receives its slot's gradient. For min and max an element receives
// the full gradient of its slot when it equals the slot's value exactly, so
// ties all receive it.
//
// Launch: reduce/<op>_bwd_<dt>(info = dims ++ inpStrides ++ outStrides, inp, out, gradInp, gradOut),
// where dims is inp's shape with broadcast kept axes set to 1 and outStrides
// are the output strides expanded over inp's shape.
func ReduceBackward[E tensor.Float](op ReduceOp, inp, out, gradInp, gradOut *tensor.Storage[E], axes ...int) error {
	dev, err := sameDevice(op.String(), inp, out, gradInp, gradOut)
	if err != nil {
		return err
	}
	axes, err = tensor.NormalizeAxes(len(inp.Shape()), axes)
	if err != nil {
		return errors.Wrap(err, op.String())
	}
	if err := sameLayout(op.String(), inp, gradInp); err != nil {
		return err
	}
	if err := sameLayout(op.String(), out, gradOut); err != nil {
		return err
	}
	if !out.Shape().Equal(tensor.ReduceShape(inp.Shape(), axes)) {
		return tensor.NewShapeError(op.String(), "output is not the reduction of input", inp.Shape(), out.Shape())
	}
	if err := makeUnique(gradInp); err != nil {
		return err
	}
	outStrides := tensor.ExpandReducedStrides(out.Strides(), axes, len(inp.Shape()))
	dims := inp.Shape().Clone()
	for ax, st := range inp.Strides() {
		if st == 0 && !slices.Contains(axes, ax) {
			dims[ax] = 1
		}
	}
	return launch(dev, ModuleReduce, op.String()+"_bwd", inp.DType(), dims.NumElements(),
		info(dims, inp.Strides(), outStrides),
		inp.Memory(), out.Memory(), gradInp.Memory(), gradOut.Memory())
}
