package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Offset maps the row-major logical index i over dims to a physical offset.
func Offset(i int, dims, strides []int) int {
	off := 0
	for ax := len(dims) - 1; ax >= 0; ax-- {
		d := dims[ax]
		off += (i % d) * strides[ax]
		i /= d
	}
	return off
}

// PhysicalLen returns the buffer length needed to back (shape, strides):
// one past the largest reachable offset, or 0 for an empty shape.
func PhysicalLen(shape Shape, strides []int) int {
	if shape.NumElements() == 0 {
		return 0
	}
	last := 0
	for i, d := range shape {
		last += (d - 1) * strides[i]
	}
	return last + 1
}

// IsContiguous reports whether strides are the default row-major layout of shape.
// Axes of extent 1 are ignored.
func IsContiguous(shape Shape, strides []int) bool {
	expected := 1
	for i := len(shape) - 1; i >= 0; i-- {
		if shape[i] == 1 {
			continue
		}
		if strides[i] != expected {
			return false
		}
		expected *= shape[i]
	}
	return true
}

// BroadcastStrides maps strides of src onto the larger shape dst.
// Shapes are right-aligned; axes missing from src or of extent 1 get stride 0,
// so every logical index along them aliases the same physical element.
func BroadcastStrides(src Shape, srcStrides []int, dst Shape) ([]int, error) {
	if len(src) > len(dst) {
		return nil, NewShapeError("broadcast_to", "target has lower rank", src, dst)
	}
	out := make([]int, len(dst))
	shift := len(dst) - len(src)
	for j := range dst {
		k := j - shift
		if k < 0 {
			continue
		}
		switch {
		case src[k] == dst[j]:
			out[j] = srcStrides[k]
		case src[k] == 1:
			out[j] = 0
		default:
			return nil, NewShapeError("broadcast_to",
				fmt.Sprintf("axis %d: %d cannot broadcast to %d", j, src[k], dst[j]), src, dst)
		}
	}
	return out, nil
}

// PermuteForReduction reorders (dims, strides) so kept axes come first and the
// reduced axes last, preserving relative order within each group, and drops
// zero-stride axes. Walking the result in row-major order visits each output
// slot's contributing elements as one contiguous run of ReductionElemsPerThread.
func PermuteForReduction(dims, strides, axes []int) ([]int, []int) {
	pdims := make([]int, 0, len(dims))
	pstrides := make([]int, 0, len(dims))
	for pass := 0; pass < 2; pass++ {
		reduced := pass == 1
		for ax := range dims {
			if containsAxis(axes, ax) != reduced || strides[ax] == 0 {
				continue
			}
			pdims = append(pdims, dims[ax])
			pstrides = append(pstrides, strides[ax])
		}
	}
	return pdims, pstrides
}

// ReductionElemsPerThread is the number of physical input elements folded
// into one output slot: the product of reduced extents with non-zero stride.
func ReductionElemsPerThread(dims, strides, axes []int) int {
	n := 1
	for _, ax := range axes {
		if strides[ax] != 0 {
			n *= dims[ax]
		}
	}
	return n
}

// ReductionOutputStrides returns the physical length and strides of the
// output of reducing (src, srcStrides) over axes. Kept axes that are
// broadcast in the source stay broadcast (stride 0) in the output, so
//
//	physical * ReductionElemsPerThread(src, srcStrides, axes)
//
// equals the number of physically distinct source elements.
func ReductionOutputStrides(src Shape, srcStrides, axes []int) (int, []int) {
	kept := make([]int, 0, len(src))
	for ax := range src {
		if !containsAxis(axes, ax) {
			kept = append(kept, ax)
		}
	}
	out := make([]int, len(kept))
	acc := 1
	for i := len(kept) - 1; i >= 0; i-- {
		ax := kept[i]
		if srcStrides[ax] == 0 {
			continue
		}
		out[i] = acc
		acc *= src[ax]
	}
	return acc, out
}

// ExpandReducedStrides re-inserts zero strides for the reduced axes, turning
// output strides into strides over the source shape.
func ExpandReducedStrides(dstStrides []int, axes []int, rank int) []int {
	out := make([]int, rank)
	j := 0
	for ax := 0; ax < rank; ax++ {
		if containsAxis(axes, ax) {
			continue
		}
		out[ax] = dstStrides[j]
		j++
	}
	return out
}

// PermuteStrides reorders shape and strides by perm.
func PermuteStrides(shape Shape, strides []int, perm []int) (Shape, []int, error) {
	if len(perm) != len(shape) {
		return nil, nil, errors.Wrapf(ErrShapeMismatch, "permutation %v for rank %d", perm, len(shape))
	}
	seen := make([]bool, len(perm))
	newShape := make(Shape, len(perm))
	newStrides := make([]int, len(perm))
	for i, p := range perm {
		if p < 0 || p >= len(perm) || seen[p] {
			return nil, nil, errors.Wrapf(ErrShapeMismatch, "invalid permutation %v", perm)
		}
		seen[p] = true
		newShape[i] = shape[p]
		newStrides[i] = strides[p]
	}
	return newShape, newStrides, nil
}
