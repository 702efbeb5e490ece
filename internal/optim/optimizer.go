// Package optim implements optimization algorithms that update parameters
// in place from the gradients of one backward pass.
//
// This package provides:
//   - Optimizer interface: Update, GetLR/SetLR and state dictionaries
//   - SGD: optional momentum (classic or Nesterov) and weight decay
//   - RMSprop: optional centering, momentum and weight decay
//
// Per-parameter state is keyed by tensor identity, created on the first
// update that sees the parameter and mutated in place afterwards.
//
// Example usage:
//
//	opt := optim.NewSGD(optim.SGDConfig[float32]{
//	    LR:       0.01,
//	    Momentum: optim.Momentum[float32]{Kind: optim.MomentumNesterov, Mu: 0.9},
//	})
//
//	for step := range steps {
//	    tape := autodiff.NewTape()
//	    loss := computeLoss(params, tape)
//	    grads, err := loss.Backward()
//	    ...
//	    err = opt.Update(params, grads)
//	    grads.Release()
//	}
package optim

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// ErrUnusedParams is matched by UnusedParamsError.
var ErrUnusedParams = errors.New("optim: parameters received no gradient")

// UnusedParamsError lists the parameters that had no gradient in an update.
// Every other parameter was updated.
type UnusedParamsError struct {
	IDs []uint64
}

func (e *UnusedParamsError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%v: tensors [%s]", ErrUnusedParams, strings.Join(ids, " "))
}

func (e *UnusedParamsError) Unwrap() error { return ErrUnusedParams }

// Optimizer is the interface shared by all update rules.
type Optimizer[E tensor.Float] interface {
	// Update applies one step to every parameter that has a gradient in
	// grads. Parameters without one are left untouched and reported through
	// an *UnusedParamsError after the others were updated.
	Update(params []*autodiff.Tensor[E], grads *autodiff.Gradients) error

	// StateDict exports the state of params, keyed "<buffer>.<index>".
	StateDict(params []*autodiff.Tensor[E]) map[string]*tensor.Storage[E]

	// LoadStateDict replaces the state of params from a StateDict export.
	LoadStateDict(params []*autodiff.Tensor[E], state map[string]*tensor.Storage[E]) error

	// GetLR returns the current learning rate.
	GetLR() E

	// SetLR updates the learning rate, for scheduling.
	SetLR(lr E)

	// Release frees all state buffers.
	Release()
}

// MomentumKind selects the SGD and RMSprop momentum rule.
type MomentumKind = kernels.MomentumKind

// Momentum rules.
const (
	MomentumNone     = kernels.MomentumNone
	MomentumClassic  = kernels.MomentumClassic
	MomentumNesterov = kernels.MomentumNesterov
)

// Momentum configures SGD momentum. The zero value disables it.
type Momentum[E tensor.Float] struct {
	Kind MomentumKind
	Mu   E
}

// DecayKind selects how weight decay enters the update.
type DecayKind = kernels.DecayKind

// Weight decay rules.
const (
	DecayNone      = kernels.DecayNone
	DecayL2        = kernels.DecayL2
	DecayDecoupled = kernels.DecayDecoupled
)

// WeightDecay configures weight decay. The zero value disables it.
type WeightDecay[E tensor.Float] struct {
	Kind   DecayKind
	Lambda E
}

// eachParam calls update for every parameter with a gradient and collects
// the ones without.
func eachParam[E tensor.Float](params []*autodiff.Tensor[E], grads *autodiff.Gradients,
	update func(i int, p *autodiff.Tensor[E], grad *tensor.Storage[E]) error) error {
	var unused []uint64
	for i, p := range params {
		grad, ok := autodiff.Grad(grads, p)
		if !ok {
			unused = append(unused, p.ID())
			continue
		}
		if err := update(i, p, grad); err != nil {
			return errors.Wrapf(err, "parameter %d", i)
		}
	}
	if len(unused) > 0 {
		klog.Warningf("optim: %d of %d parameters received no gradient", len(unused), len(params))
		return &UnusedParamsError{IDs: unused}
	}
	return nil
}

// state holds one named buffer per parameter identity.
type state[E tensor.Float] struct {
	name string
	bufs map[uint64]*tensor.Storage[E]
}

func newState[E tensor.Float](name string) *state[E] {
	return &state[E]{name: name, bufs: make(map[uint64]*tensor.Storage[E])}
}

// get returns the buffer of p, allocating zeros with p's layout on first use.
func (s *state[E]) get(p *autodiff.Tensor[E]) (*tensor.Storage[E], error) {
	if b, ok := s.bufs[p.ID()]; ok {
		return b, nil
	}
	b, err := tensor.ZerosLike(p.Storage())
	if err != nil {
		return nil, errors.Wrapf(err, "optim: allocate %s", s.name)
	}
	s.bufs[p.ID()] = b
	return b, nil
}

func (s *state[E]) export(params []*autodiff.Tensor[E], out map[string]*tensor.Storage[E]) {
	for i, p := range params {
		if b, ok := s.bufs[p.ID()]; ok {
			out[fmt.Sprintf("%s.%d", s.name, i)] = b
		}
	}
}

// load replaces the buffers of params from in. Missing keys leave the
// parameter to be initialized on its next update.
func (s *state[E]) load(params []*autodiff.Tensor[E], in map[string]*tensor.Storage[E]) error {
	for i, p := range params {
		key := fmt.Sprintf("%s.%d", s.name, i)
		b, ok := in[key]
		if !ok {
			continue
		}
		ps := p.Storage()
		if !b.Shape().Equal(ps.Shape()) || !equalStrides(b.Strides(), ps.Strides()) {
			return errors.Wrap(tensor.NewShapeError("load_state_dict",
				fmt.Sprintf("%s does not match parameter %d", key, i), b.Shape(), ps.Shape()), "optim")
		}
		if old, ok := s.bufs[p.ID()]; ok {
			old.Release()
		}
		s.bufs[p.ID()] = b.Clone()
	}
	return nil
}

func (s *state[E]) release() {
	for id, b := range s.bufs {
		b.Release()
		delete(s.bufs, id)
	}
}

func equalStrides(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
