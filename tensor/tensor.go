// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Element is the constraint for values a Storage can hold.
type Element = tensor.Element

// Float is the constraint for differentiable element types.
type Float = tensor.Float

// DataType is the runtime tag of an element type.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int32   DataType = tensor.Int32
	Bool    DataType = tensor.Bool
)

// Shape lists the extent of each axis, outermost first.
type Shape = tensor.Shape

// Storage is a reference-counted strided view over a device buffer.
type Storage[E Element] = tensor.Storage[E]

// Device is an execution device.
type Device = tensor.Device

// DeviceKind tells host devices from accelerators.
type DeviceKind = tensor.DeviceKind

// Device kinds.
const (
	Host        DeviceKind = tensor.Host
	Accelerator DeviceKind = tensor.Accelerator
)

// Memory is a device buffer.
type Memory = tensor.Memory

// ShapeError describes operands whose shapes do not fit an operation.
type ShapeError = tensor.ShapeError

// Errors returned by storages and devices.
var (
	ErrAlloc            = tensor.ErrAlloc
	ErrKernelLoad       = tensor.ErrKernelLoad
	ErrShapeMismatch    = tensor.ErrShapeMismatch
	ErrUnsupportedDType = tensor.ErrUnsupportedDType
	ErrBadArgument      = tensor.ErrBadArgument
	ErrIndexOutOfRange  = tensor.ErrIndexOutOfRange
	ErrDeviceMismatch   = tensor.ErrDeviceMismatch
)

// DTypeOf returns the DataType of E.
func DTypeOf[E Element]() DataType {
	return tensor.DTypeOf[E]()
}

// Alloc allocates a contiguous storage without initializing it.
func Alloc[E Element](dev Device, shape Shape) (*Storage[E], error) {
	return tensor.Alloc[E](dev, shape)
}

// Zeros allocates a zero-filled contiguous storage.
func Zeros[E Element](dev Device, shape Shape) (*Storage[E], error) {
	return tensor.Zeros[E](dev, shape)
}

// Full allocates a contiguous storage with every element set to v.
func Full[E Element](dev Device, shape Shape, v E) (*Storage[E], error) {
	return tensor.Full(dev, shape, v)
}

// FromSlice uploads row-major data into a new storage.
//
// Example:
//
//	x, err := tensor.FromSlice(dev, tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
func FromSlice[E Element](dev Device, shape Shape, data []E) (*Storage[E], error) {
	return tensor.FromSlice(dev, shape, data)
}

// ZerosLike allocates zeros with the shape and strides of s.
func ZerosLike[E Element](s *Storage[E]) (*Storage[E], error) {
	return tensor.ZerosLike(s)
}

// BroadcastShapes returns the broadcast of a and b, and whether either
// operand has to be broadcast to reach it.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
