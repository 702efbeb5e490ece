package autodiff

import (
	"sync/atomic"

	"github.com/born-ml/tensorcore/internal/tensor"
)

var nextID atomic.Uint64

// Tensor is a storage with an identity. Gradients are keyed by identity, so a
// traced copy of a parameter shares the parameter's gradient slot.
type Tensor[E tensor.Float] struct {
	id   uint64
	s    *tensor.Storage[E]
	tape *Tape
}

// NewTensor wraps s as an untracked tensor with a fresh identity. The tensor
// takes over the caller's reference to s.
func NewTensor[E tensor.Float](s *tensor.Storage[E]) *Tensor[E] {
	return &Tensor[E]{id: nextID.Add(1), s: s}
}

// NewResult wraps an operation result. tape may be nil.
func NewResult[E tensor.Float](tape *Tape, s *tensor.Storage[E]) *Tensor[E] {
	return &Tensor[E]{id: nextID.Add(1), s: s, tape: tape}
}

// Trace returns a tensor with the same identity and storage that records its
// operations on tape.
func (t *Tensor[E]) Trace(tape *Tape) *Tensor[E] {
	return &Tensor[E]{id: t.id, s: t.s, tape: tape}
}

// ID returns the tensor's identity.
func (t *Tensor[E]) ID() uint64 { return t.id }

// Tape returns the tape t records on, or nil.
func (t *Tensor[E]) Tape() *Tape { return t.tape }

// Storage returns the underlying storage.
func (t *Tensor[E]) Storage() *tensor.Storage[E] { return t.s }

// Shape returns the logical shape.
func (t *Tensor[E]) Shape() tensor.Shape { return t.s.Shape() }

// Device returns the device holding the data.
func (t *Tensor[E]) Device() tensor.Device { return t.s.Device() }

// Values downloads the logical contents.
func (t *Tensor[E]) Values() ([]E, error) { return t.s.Values() }

// Release drops the tensor's reference to its storage. Traced copies share
// the storage, so release only one of them.
func (t *Tensor[E]) Release() {
	if t.s != nil {
		t.s.Release()
	}
}

// Traced is implemented by every Tensor instantiation.
type Traced interface {
	Tape() *Tape
}

// TapeOf returns the tape shared by the traced operands, or nil when none is
// traced. Operands traced on different tapes fail with ErrTapeMismatch.
func TapeOf(operands ...Traced) (*Tape, error) {
	var tape *Tape
	for _, o := range operands {
		t := o.Tape()
		if t == nil {
			continue
		}
		if tape != nil && t != tape {
			return nil, ErrTapeMismatch
		}
		tape = t
	}
	if tape != nil && tape.Consumed() {
		return nil, ErrTapeConsumed
	}
	return tape, nil
}
