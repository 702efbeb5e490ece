// Package tensor provides the storage layer of tensorcore: shapes and strides,
// device buffers, and reference-counted storages with copy-on-write semantics.
package tensor

import "golang.org/x/exp/constraints"

// Element is the constraint for values a Storage can hold.
type Element interface {
	~float32 | ~float64 | ~int32 | ~bool
}

// Float is the constraint for differentiable element types.
type Float interface {
	constraints.Float
}

// DataType represents runtime type information for storages and device buffers.
type DataType int

// Supported data types.
const (
	Float32 DataType = iota
	Float64
	Int32
	Bool
)

// Size returns the host byte size of one element.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64:
		return 8
	case Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Suffix is the tag appended to kernel function names, e.g. "sgd_update_f32".
func (dt DataType) Suffix() string {
	switch dt {
	case Float32:
		return "f32"
	case Float64:
		return "f64"
	case Int32:
		return "i32"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// DTypeOf returns the DataType matching E.
func DTypeOf[E Element]() DataType {
	var zero E
	switch any(zero).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int32:
		return Int32
	case bool:
		return Bool
	default:
		panic("unsupported element type")
	}
}

// KernelName appends the dtype suffix of E to a base kernel name.
func KernelName[E Element](base string) string {
	return base + "_" + DTypeOf[E]().Suffix()
}
