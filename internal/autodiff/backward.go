package autodiff

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Backward seeds the gradient of every logical element of t with one and
// replays its tape.
//
// The tape is consumed: a second call fails with ErrTapeConsumed and a call
// while another pass runs fails with ErrTapeBusy. If a backward kernel fails
// the traversal stops and the partial gradients are released.
func (t *Tensor[E]) Backward() (*Gradients, error) {
	return t.backward(func(acc *tensor.Storage[E]) error {
		if acc.IsContiguous() {
			return kernels.Fill(acc, 1)
		}
		// Broadcast outputs alias physical elements; each alias adds its one.
		ones, err := tensor.Full[E](acc.Device(), acc.Shape(), 1)
		if err != nil {
			return err
		}
		defer ones.Release()
		return kernels.ContiguousBackward(acc, ones)
	})
}

// BackwardWithSeed is Backward with an explicit output gradient, which must
// have t's shape.
func (t *Tensor[E]) BackwardWithSeed(seed *tensor.Storage[E]) (*Gradients, error) {
	if !seed.Shape().Equal(t.Shape()) {
		return nil, tensor.NewShapeError("backward", "seed shape differs from output", seed.Shape(), t.Shape())
	}
	return t.backward(func(acc *tensor.Storage[E]) error {
		if seed.IsContiguous() {
			return kernels.ContiguousBackward(acc, seed)
		}
		c, err := kernels.Contiguous(seed)
		if err != nil {
			return err
		}
		defer c.Release()
		return kernels.ContiguousBackward(acc, c)
	})
}

func (t *Tensor[E]) backward(seed func(acc *tensor.Storage[E]) error) (*Gradients, error) {
	if t.tape == nil {
		return nil, ErrNoTape
	}
	if t.tape.busy.Load() {
		return nil, ErrTapeBusy
	}
	if t.tape.Consumed() {
		return nil, ErrTapeConsumed
	}

	g := newGradients()
	acc, err := Accumulator(g, t.id, t.s)
	if err != nil {
		return nil, err
	}
	if err := seed(acc); err != nil {
		g.Release()
		return nil, errors.Wrap(err, "seed gradient")
	}
	if err := t.tape.replay(g); err != nil {
		g.Release()
		return nil, err
	}
	return g, nil
}
