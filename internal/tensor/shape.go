package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Shape represents the extents of a tensor, one entry per axis.
type Shape []int

// NumElements returns the total number of elements (1 for a scalar).
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Rank returns the number of axes.
func (s Shape) Rank() int {
	return len(s)
}

// Validate checks that no extent is negative.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return errors.Wrapf(ErrShapeMismatch, "invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// Strides returns the default row-major strides: stride[i] = product of extents after i.
func (s Shape) Strides() []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// BroadcastShapes implements NumPy-style broadcasting rules.
//
// Shapes are compared right to left; extents are compatible when they are
// equal or one of them is 1, and missing axes count as 1.
//
// Returns the broadcast shape, whether any operand needs broadcasting, and an
// error if the shapes are incompatible.
//
//	(3, 1) + (3, 5) → (3, 5), true, nil
//	(3, 5) + (3, 5) → (3, 5), false, nil
//	(3, 4) + (3, 5) → nil, false, ErrShapeMismatch
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	n := max(len(a), len(b))
	result := make(Shape, n)
	needsBroadcast := len(a) != len(b)

	for i := 0; i < n; i++ {
		aDim, bDim := 1, 1
		if j := len(a) - 1 - i; j >= 0 {
			aDim = a[j]
		}
		if j := len(b) - 1 - i; j >= 0 {
			bDim = b[j]
		}

		switch {
		case aDim == bDim:
			result[n-1-i] = aDim
		case aDim == 1:
			result[n-1-i] = bDim
			needsBroadcast = true
		case bDim == 1:
			result[n-1-i] = aDim
			needsBroadcast = true
		default:
			return nil, false, NewShapeError("broadcast",
				fmt.Sprintf("axis %d: %d vs %d", n-1-i, aDim, bDim), a, b)
		}
	}

	return result, needsBroadcast, nil
}

// NormalizeAxes resolves negative axes against rank, sorts them and rejects duplicates.
func NormalizeAxes(rank int, axes []int) ([]int, error) {
	seen := make([]bool, rank)
	out := make([]int, 0, len(axes))
	for _, ax := range axes {
		if ax < 0 {
			ax += rank
		}
		if ax < 0 || ax >= rank {
			return nil, errors.Wrapf(ErrShapeMismatch, "axis %d out of range for rank %d", ax, rank)
		}
		if seen[ax] {
			return nil, errors.Wrapf(ErrShapeMismatch, "duplicate axis %d", ax)
		}
		seen[ax] = true
	}
	for ax := 0; ax < rank; ax++ {
		if seen[ax] {
			out = append(out, ax)
		}
	}
	return out, nil
}

// ReduceShape removes the given (normalized) axes from s.
func ReduceShape(s Shape, axes []int) Shape {
	out := make(Shape, 0, len(s)-len(axes))
	for i, dim := range s {
		if !containsAxis(axes, i) {
			out = append(out, dim)
		}
	}
	return out
}

func containsAxis(axes []int, ax int) bool {
	for _, a := range axes {
		if a == ax {
			return true
		}
	}
	return false
}
