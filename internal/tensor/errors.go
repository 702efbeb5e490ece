package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors shared by every backend. Backends wrap them with context,
// callers match with errors.Is.
var (
	// ErrAlloc is returned when a device cannot allocate a buffer.
	ErrAlloc = errors.New("allocation failed")

	// ErrKernelLoad is returned when a named kernel is missing or fails to compile.
	ErrKernelLoad = errors.New("kernel load failed")

	// ErrShapeMismatch is returned when operand shapes or strides are incompatible.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnsupportedDType is returned when a device or kernel does not handle a data type.
	ErrUnsupportedDType = errors.New("unsupported data type")

	// ErrBadArgument is returned when a kernel receives malformed launch arguments.
	ErrBadArgument = errors.New("bad kernel argument")

	// ErrIndexOutOfRange is returned when a gather/select index exceeds its axis.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrDeviceMismatch is returned when operands live on different devices.
	ErrDeviceMismatch = errors.New("device mismatch")
)

// ShapeError describes an operand shape incompatibility.
type ShapeError struct {
	Op     string
	Shapes []Shape
	Reason string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: incompatible shapes %v", e.Op, e.Shapes)
	}
	return fmt.Sprintf("%s: %s (shapes %v)", e.Op, e.Reason, e.Shapes)
}

// Unwrap makes ShapeError match ErrShapeMismatch.
func (e *ShapeError) Unwrap() error {
	return ErrShapeMismatch
}

// NewShapeError builds a ShapeError for op.
func NewShapeError(op, reason string, shapes ...Shape) error {
	return &ShapeError{Op: op, Shapes: shapes, Reason: reason}
}
