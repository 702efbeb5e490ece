package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024 // 100MB
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// TensorMeta locates one tensor inside the data section.
type TensorMeta struct {
	Name   string
	Offset int64
	Size   int64
}

// ValidateTensorOffsets rejects negative, out-of-bounds and overlapping
// tensor regions.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Err:     ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
		}
	}

	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Err:     ErrNegativeOffset,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Err:     ErrOutOfBounds,
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Err:     ErrOffsetOverlap,
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}
	return nil
}

// ValidateTensorName rejects empty names, path traversal and control bytes.
func ValidateTensorName(name string) error {
	invalid := func(details string) error {
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: details}
	}
	switch {
	case name == "":
		return invalid("empty")
	case len(name) > MaxTensorNameLen:
		return invalid(fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen))
	case name == "__metadata__":
		return invalid("reserved")
	case strings.Contains(name, ".."):
		return invalid("contains '..'")
	case strings.ContainsAny(name, "/\\"):
		return invalid("contains path separator")
	case strings.Contains(name, "\x00"):
		return invalid("contains null byte")
	}
	return nil
}
