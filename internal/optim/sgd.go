package optim

import (
	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// SGD implements stochastic gradient descent.
//
// Update rule:
//
//	g = grad (+ λ·param with L2 decay)
//	classic:  v = μ·v + g;  step = lr·v
//	nesterov: v = μ·v + g;  step = lr·(g + μ·v)
//	otherwise step = lr·g
//	step += λ·lr·param with decoupled decay
//	param -= step
type SGD[E tensor.Float] struct {
	cfg      SGDConfig[E]
	velocity *state[E]
}

// SGDConfig holds configuration for SGD.
type SGDConfig[E tensor.Float] struct {
	LR          E // default: 0.01
	Momentum    Momentum[E]
	WeightDecay WeightDecay[E]
}

var _ Optimizer[float32] = (*SGD[float32])(nil)

// NewSGD creates an SGD optimizer.
func NewSGD[E tensor.Float](cfg SGDConfig[E]) *SGD[E] {
	if cfg.LR == 0 {
		cfg.LR = 0.01
	}
	return &SGD[E]{cfg: cfg, velocity: newState[E]("velocity")}
}

// Update performs one SGD step.
func (s *SGD[E]) Update(params []*autodiff.Tensor[E], grads *autodiff.Gradients) error {
	step := kernels.SGDStep{
		LR:       float64(s.cfg.LR),
		Momentum: s.cfg.Momentum.Kind,
		Mu:       float64(s.cfg.Momentum.Mu),
		Decay:    s.cfg.WeightDecay.Kind,
		Lambda:   float64(s.cfg.WeightDecay.Lambda),
	}
	return eachParam(params, grads, func(_ int, p *autodiff.Tensor[E], grad *tensor.Storage[E]) error {
		// The kernel binds a velocity buffer even without momentum.
		v, err := s.velocity.get(p)
		if err != nil {
			return err
		}
		return kernels.SGDUpdate(step, p.Storage(), grad, v)
	})
}

// StateDict exports the velocity buffers ("velocity.<index>"). Without
// momentum it is empty.
func (s *SGD[E]) StateDict(params []*autodiff.Tensor[E]) map[string]*tensor.Storage[E] {
	out := make(map[string]*tensor.Storage[E])
	if s.cfg.Momentum.Kind == MomentumNone {
		return out
	}
	s.velocity.export(params, out)
	return out
}

// LoadStateDict restores velocity buffers. It ignores state when momentum
// is disabled.
func (s *SGD[E]) LoadStateDict(params []*autodiff.Tensor[E], state map[string]*tensor.Storage[E]) error {
	if s.cfg.Momentum.Kind == MomentumNone {
		return nil
	}
	return s.velocity.load(params, state)
}

// GetLR returns the current learning rate.
func (s *SGD[E]) GetLR() E { return s.cfg.LR }

// SetLR updates the learning rate.
func (s *SGD[E]) SetLR(lr E) { s.cfg.LR = lr }

// Release frees the velocity buffers.
func (s *SGD[E]) Release() { s.velocity.release() }
