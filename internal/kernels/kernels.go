// Package kernels implements the forward and backward contracts of every
// tensor operation on top of tensor.Device.
//
// Kernels never touch device memory directly. Each operation validates
// shapes, allocates outputs with the default contiguous layout, and launches
// named device kernels through Device.Run. Backward kernels always accumulate
// into the gradient buffers they are given; callers allocate those buffers
// with tensor.ZerosLike so broadcast aliases of an input sum into one slot.
//
// Launch arguments follow one convention shared by every device: scalar
// arguments (int, float64) first, then at most one []int metadata slice, then
// the buffers in the order documented on each function.
package kernels

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Module names. A device resolves (module, function) pairs lazily.
const (
	ModuleFill   = "fill"
	ModuleCopy   = "copy"
	ModuleUnary  = "unary"
	ModuleBinary = "binary"
	ModuleCmp    = "cmp"
	ModuleChoose = "choose"
	ModuleReduce = "reduce"
	ModulePool2D = "pool2d"
	ModuleConv2D = "conv2d"
	ModuleBLAS   = "blas"
	ModuleSelect = "select"
	ModuleOptim  = "optim"
)

// launch runs module/base_<dtype> on dev with threads work items.
func launch(dev tensor.Device, module, base string, dt tensor.DataType, threads int, args ...any) error {
	fn := base + "_" + dt.Suffix()
	if threads == 0 {
		return nil
	}
	if err := dev.Run(module, fn, tensor.LaunchFor(threads), args...); err != nil {
		return errors.Wrapf(err, "%s/%s", module, fn)
	}
	return nil
}

// storage is the subset of tensor.Storage methods the helpers need,
// satisfied by every instantiation of Storage[E].
type storage interface {
	Device() tensor.Device
	Shape() tensor.Shape
	Strides() []int
	Memory() tensor.Memory
	PhysicalLen() int
}

// sameDevice checks that every operand lives on the device of the first one.
func sameDevice(op string, first storage, rest ...storage) (tensor.Device, error) {
	dev := first.Device()
	for _, s := range rest {
		if s.Device() != dev {
			return nil, errors.Wrapf(tensor.ErrDeviceMismatch, "%s: %s vs %s", op, dev.Name(), s.Device().Name())
		}
	}
	return dev, nil
}

// sameLayout checks that a gradient buffer has the layout of the value it
// accumulates for.
func sameLayout(op string, value, grad storage) error {
	if !value.Shape().Equal(grad.Shape()) || !equalInts(value.Strides(), grad.Strides()) ||
		value.PhysicalLen() != grad.PhysicalLen() {
		return tensor.NewShapeError(op, "gradient layout differs from its value", value.Shape(), grad.Shape())
	}
	return nil
}

func requireContiguous(op string, ss ...storage) error {
	for _, s := range ss {
		if !tensor.IsContiguous(s.Shape(), s.Strides()) || s.PhysicalLen() != s.Shape().NumElements() {
			return tensor.NewShapeError(op, "operand must be contiguous", s.Shape())
		}
	}
	return nil
}

// makeUnique prepares buffers for in-place accumulation.
func makeUnique(ss ...interface{ MakeUnique() error }) error {
	for _, s := range ss {
		if err := s.MakeUnique(); err != nil {
			return err
		}
	}
	return nil
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// info concatenates metadata slices into one launch argument.
func info(parts ...[]int) []int {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]int, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
