package tensor

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// sharedBuffer is a reference-counted device buffer for copy-on-write semantics.
// Storages that alias it (clones, broadcasts, permutations) each hold one reference.
type sharedBuffer struct {
	mem      Memory
	refCount atomic.Int32
}

func newSharedBuffer(mem Memory) *sharedBuffer {
	b := &sharedBuffer{mem: mem}
	b.refCount.Store(1)
	return b
}

func (b *sharedBuffer) addRef() {
	b.refCount.Add(1)
}

func (b *sharedBuffer) release() {
	if b.refCount.Add(-1) == 0 {
		b.mem.Release()
	}
}

func (b *sharedBuffer) isUnique() bool {
	return b.refCount.Load() == 1
}

// Storage is a device buffer viewed through a shape and per-axis strides.
//
// Several storages may share one buffer. Reads through any of them are always
// safe; a mutation must call MakeUnique first, which copies the buffer if it is
// shared so that other aliases keep observing the old values.
type Storage[E Element] struct {
	dev     Device
	buf     *sharedBuffer
	shape   Shape
	strides []int
}

// Wrap takes ownership of mem as the buffer behind (shape, strides).
func Wrap[E Element](dev Device, mem Memory, shape Shape, strides []int) (*Storage[E], error) {
	if mem.DType() != DTypeOf[E]() {
		return nil, errors.Wrapf(ErrUnsupportedDType, "memory holds %s, storage wants %s", mem.DType(), DTypeOf[E]())
	}
	if len(strides) != len(shape) {
		return nil, NewShapeError("wrap", "strides rank differs from shape rank", shape)
	}
	if need := PhysicalLen(shape, strides); need > mem.Len() {
		return nil, errors.Wrapf(ErrShapeMismatch, "strides %v over %v reach %d elements, buffer has %d",
			strides, shape, need, mem.Len())
	}
	return &Storage[E]{
		dev:     dev,
		buf:     newSharedBuffer(mem),
		shape:   shape.Clone(),
		strides: append([]int(nil), strides...),
	}, nil
}

// Alloc creates a contiguous storage whose contents are unspecified.
func Alloc[E Element](dev Device, shape Shape) (*Storage[E], error) {
	return alloc[E](dev, shape, false)
}

// Zeros creates a contiguous zero-filled storage.
func Zeros[E Element](dev Device, shape Shape) (*Storage[E], error) {
	return alloc[E](dev, shape, true)
}

func alloc[E Element](dev Device, shape Shape, zeroed bool) (*Storage[E], error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	var (
		mem Memory
		err error
	)
	if zeroed {
		mem, err = dev.AllocZeroed(DTypeOf[E](), shape.NumElements())
	} else {
		mem, err = dev.Alloc(DTypeOf[E](), shape.NumElements())
	}
	if err != nil {
		return nil, err
	}
	return Wrap[E](dev, mem, shape, shape.Strides())
}

// FromSlice uploads data (row-major) into a new contiguous storage.
func FromSlice[E Element](dev Device, shape Shape, data []E) (*Storage[E], error) {
	if len(data) != shape.NumElements() {
		return nil, errors.Wrapf(ErrShapeMismatch, "%d values for shape %v", len(data), shape)
	}
	s, err := Alloc[E](dev, shape)
	if err != nil {
		return nil, err
	}
	if err := dev.Upload(s.buf.mem, data); err != nil {
		s.Release()
		return nil, err
	}
	return s, nil
}

// Full creates a contiguous storage with every element set to v.
func Full[E Element](dev Device, shape Shape, v E) (*Storage[E], error) {
	data := make([]E, shape.NumElements())
	for i := range data {
		data[i] = v
	}
	return FromSlice(dev, shape, data)
}

// ZerosLike allocates a zeroed buffer with the same shape, strides and
// physical length as s. Gradient accumulators use it so that broadcast axes
// of s alias, and sum into, the same accumulator element.
func ZerosLike[E Element](s *Storage[E]) (*Storage[E], error) {
	mem, err := s.dev.AllocZeroed(DTypeOf[E](), s.buf.mem.Len())
	if err != nil {
		return nil, err
	}
	return Wrap[E](s.dev, mem, s.shape, s.strides)
}

// Device returns the device holding the buffer.
func (s *Storage[E]) Device() Device { return s.dev }

// Shape returns the logical shape.
func (s *Storage[E]) Shape() Shape { return s.shape }

// Strides returns the per-axis strides in elements.
func (s *Storage[E]) Strides() []int { return s.strides }

// DType returns the element type.
func (s *Storage[E]) DType() DataType { return DTypeOf[E]() }

// Memory returns the underlying device buffer.
func (s *Storage[E]) Memory() Memory { return s.buf.mem }

// NumElements returns the logical element count.
func (s *Storage[E]) NumElements() int { return s.shape.NumElements() }

// PhysicalLen returns the length of the shared buffer.
func (s *Storage[E]) PhysicalLen() int { return s.buf.mem.Len() }

// IsContiguous reports whether the storage has the default row-major layout
// and owns exactly NumElements physical slots.
func (s *Storage[E]) IsContiguous() bool {
	return IsContiguous(s.shape, s.strides) && s.buf.mem.Len() == s.NumElements()
}

// IsUnique reports whether s is the only reference to its buffer.
func (s *Storage[E]) IsUnique() bool { return s.buf.isUnique() }

// Clone returns a new storage sharing the buffer (reference count + 1).
func (s *Storage[E]) Clone() *Storage[E] {
	return s.view(s.shape, s.strides)
}

func (s *Storage[E]) view(shape Shape, strides []int) *Storage[E] {
	s.buf.addRef()
	return &Storage[E]{
		dev:     s.dev,
		buf:     s.buf,
		shape:   shape.Clone(),
		strides: append([]int(nil), strides...),
	}
}

// BroadcastTo returns a zero-copy view of s with shape dst.
func (s *Storage[E]) BroadcastTo(dst Shape) (*Storage[E], error) {
	strides, err := BroadcastStrides(s.shape, s.strides, dst)
	if err != nil {
		return nil, err
	}
	return s.view(dst, strides), nil
}

// Permute returns a zero-copy view with axes reordered by perm.
func (s *Storage[E]) Permute(perm ...int) (*Storage[E], error) {
	shape, strides, err := PermuteStrides(s.shape, s.strides, perm)
	if err != nil {
		return nil, err
	}
	return s.view(shape, strides), nil
}

// Reshape returns a zero-copy view with a new shape. Only contiguous storages
// can be reshaped; make a contiguous copy first otherwise.
func (s *Storage[E]) Reshape(shape Shape) (*Storage[E], error) {
	if shape.NumElements() != s.NumElements() {
		return nil, NewShapeError("reshape", "element count differs", s.shape, shape)
	}
	if !s.IsContiguous() {
		return nil, NewShapeError("reshape", "storage is not contiguous", s.shape, shape)
	}
	return s.view(shape, shape.Strides()), nil
}

// MakeUnique ensures s exclusively owns its buffer, copying it when shared.
// Every in-place mutation calls it first.
func (s *Storage[E]) MakeUnique() error {
	if s.buf.isUnique() {
		return nil
	}
	mem, err := s.dev.Alloc(DTypeOf[E](), s.buf.mem.Len())
	if err != nil {
		return err
	}
	if err := s.dev.Copy(mem, s.buf.mem); err != nil {
		mem.Release()
		return err
	}
	s.buf.release()
	s.buf = newSharedBuffer(mem)
	return nil
}

// Release drops this reference; the buffer is freed with its last reference.
func (s *Storage[E]) Release() {
	if s.buf == nil {
		return
	}
	s.buf.release()
	s.buf = nil
}

// Data downloads the physical buffer.
func (s *Storage[E]) Data() ([]E, error) {
	out := make([]E, s.buf.mem.Len())
	if err := s.dev.Download(s.buf.mem, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Values downloads the logical contents in row-major order.
func (s *Storage[E]) Values() ([]E, error) {
	phys, err := s.Data()
	if err != nil {
		return nil, err
	}
	out := make([]E, s.NumElements())
	for i := range out {
		out[i] = phys[Offset(i, s.shape, s.strides)]
	}
	return out, nil
}
