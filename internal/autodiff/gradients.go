package autodiff

import (
	"sort"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Gradients maps tensor identities to gradient accumulators. Each
// accumulator has the layout of its tensor (tensor.ZerosLike), so broadcast
// views accumulate into their shared physical element.
type Gradients struct {
	grads map[uint64]releaser
}

type releaser interface {
	Release()
}

func newGradients() *Gradients {
	return &Gradients{grads: make(map[uint64]releaser)}
}

// Grad returns the gradient of t, if one was accumulated.
func Grad[E tensor.Float](g *Gradients, t *Tensor[E]) (*tensor.Storage[E], bool) {
	return Lookup[E](g, t.ID())
}

// Lookup returns the accumulator for id.
func Lookup[E tensor.Float](g *Gradients, id uint64) (*tensor.Storage[E], bool) {
	s, ok := g.grads[id].(*tensor.Storage[E])
	return s, ok
}

// Accumulator returns the accumulator for id, allocating a zeroed one with
// the layout of like on first use.
func Accumulator[E tensor.Float](g *Gradients, id uint64, like *tensor.Storage[E]) (*tensor.Storage[E], error) {
	if s, ok := Lookup[E](g, id); ok {
		return s, nil
	}
	s, err := tensor.ZerosLike(like)
	if err != nil {
		return nil, err
	}
	g.grads[id] = s
	return s, nil
}

// Len returns the number of accumulators.
func (g *Gradients) Len() int { return len(g.grads) }

// IDs returns the identities holding a gradient, in ascending order.
func (g *Gradients) IDs() []uint64 {
	ids := make([]uint64, 0, len(g.grads))
	for id := range g.grads {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Drop releases the accumulator for id.
func (g *Gradients) Drop(id uint64) {
	if s, ok := g.grads[id]; ok {
		s.Release()
		delete(g.grads, id)
	}
}

// Release frees every accumulator.
func (g *Gradients) Release() {
	for id, s := range g.grads {
		s.Release()
		delete(g.grads, id)
	}
}
