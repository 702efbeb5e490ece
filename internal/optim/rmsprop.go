package optim

import (
	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// RMSprop divides the gradient by a running root mean square.
//
// Update rule:
//
//	g = grad (+ λ·param with L2 decay)
//	sa = α·sa + (1-α)·g²
//	centered: ga = α·ga + (1-α)·g;  avg = sqrt(sa - ga² + eps)
//	otherwise avg = sqrt(sa + eps)
//	g = g / avg
//	momentum: buf = μ·buf + g;  step = lr·buf, otherwise step = lr·g
//	step += λ·lr·param with decoupled decay
//	param -= step
//
// eps sits inside the square root.
type RMSprop[E tensor.Float] struct {
	cfg       RMSpropConfig[E]
	squareAvg *state[E]
	gradAvg   *state[E]
	buf       *state[E]
}

// RMSpropConfig holds configuration for RMSprop.
type RMSpropConfig[E tensor.Float] struct {
	LR    E // default: 0.01
	Alpha E // default: 0.9
	Eps   E // default: 1e-8

	// Momentum enables the momentum buffer with the given factor when set.
	Momentum *E

	Centered    bool
	WeightDecay WeightDecay[E]
}

var _ Optimizer[float64] = (*RMSprop[float64])(nil)

// NewRMSprop creates an RMSprop optimizer.
func NewRMSprop[E tensor.Float](cfg RMSpropConfig[E]) *RMSprop[E] {
	if cfg.LR == 0 {
		cfg.LR = 0.01
	}
	if cfg.Alpha == 0 {
		cfg.Alpha = 0.9
	}
	if cfg.Eps == 0 {
		cfg.Eps = 1e-8
	}
	return &RMSprop[E]{
		cfg:       cfg,
		squareAvg: newState[E]("square_avg"),
		gradAvg:   newState[E]("grad_avg"),
		buf:       newState[E]("momentum_buffer"),
	}
}

// Update performs one RMSprop step.
func (r *RMSprop[E]) Update(params []*autodiff.Tensor[E], grads *autodiff.Gradients) error {
	step := kernels.RMSpropStep{
		LR:       float64(r.cfg.LR),
		Alpha:    float64(r.cfg.Alpha),
		Eps:      float64(r.cfg.Eps),
		Centered: r.cfg.Centered,
		Momentum: r.cfg.Momentum != nil,
		Decay:    r.cfg.WeightDecay.Kind,
		Lambda:   float64(r.cfg.WeightDecay.Lambda),
	}
	if r.cfg.Momentum != nil {
		step.Mu = float64(*r.cfg.Momentum)
	}
	return eachParam(params, grads, func(_ int, p *autodiff.Tensor[E], grad *tensor.Storage[E]) error {
		sa, err := r.squareAvg.get(p)
		if err != nil {
			return err
		}
		var ga, buf *tensor.Storage[E]
		if step.Centered {
			if ga, err = r.gradAvg.get(p); err != nil {
				return err
			}
		}
		if step.Momentum {
			if buf, err = r.buf.get(p); err != nil {
				return err
			}
		}
		return kernels.RMSpropUpdate(step, p.Storage(), grad, sa, ga, buf)
	})
}

// StateDict exports "square_avg.<index>" and, when enabled,
// "grad_avg.<index>" and "momentum_buffer.<index>".
func (r *RMSprop[E]) StateDict(params []*autodiff.Tensor[E]) map[string]*tensor.Storage[E] {
	out := make(map[string]*tensor.Storage[E])
	r.squareAvg.export(params, out)
	if r.cfg.Centered {
		r.gradAvg.export(params, out)
	}
	if r.cfg.Momentum != nil {
		r.buf.export(params, out)
	}
	return out
}

// LoadStateDict restores the buffers exported by StateDict.
func (r *RMSprop[E]) LoadStateDict(params []*autodiff.Tensor[E], state map[string]*tensor.Storage[E]) error {
	if err := r.squareAvg.load(params, state); err != nil {
		return err
	}
	if r.cfg.Centered {
		if err := r.gradAvg.load(params, state); err != nil {
			return err
		}
	}
	if r.cfg.Momentum != nil {
		return r.buf.load(params, state)
	}
	return nil
}

// GetLR returns the current learning rate.
func (r *RMSprop[E]) GetLR() E { return r.cfg.LR }

// SetLR updates the learning rate.
func (r *RMSprop[E]) SetLR(lr E) { r.cfg.LR = lr }

// Release frees all state buffers.
func (r *RMSprop[E]) Release() {
	r.squareAvg.release()
	r.gradAvg.release()
	r.buf.release()
}
