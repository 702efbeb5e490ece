package kernels

import (
	"github.com/born-ml/tensorcore/internal/tensor"
)

// MomentumKind selects the momentum rule of SGD.
type MomentumKind int

// Momentum rules.
const (
	MomentumNone MomentumKind = iota
	MomentumClassic
	MomentumNesterov
)

// DecayKind selects how weight decay enters an update.
type DecayKind int

// Weight decay rules. L2 adds Lambda*param to the gradient before anything
// else; decoupled adds Lambda*LR*param to the final step.
const (
	DecayNone DecayKind = iota
	DecayL2
	DecayDecoupled
)

// SGDStep holds the hyperparameters of one SGD update.
type SGDStep struct {
	LR       float64
	Momentum MomentumKind
	Mu       float64
	Decay    DecayKind
	Lambda   float64
}

// SGDUpdate applies one SGD step in place, elementwise over the physical
// buffers of param, grad and velocity (which share a layout):
//
//	g = grad (+ λ·p for L2)
//	classic:  v = g + μ·v; g = lr·v
//	nesterov: v = g + μ·v; g = lr·(g + μ·v)
//	none:     g = lr·g
//	g += λ·lr·p for decoupled decay
//	p -= g
//
// Launch: optim/sgd_update_<dt>(lr, momentum, mu, decay, lambda, param, grad, velocity).
func SGDUpdate[E tensor.Float](step SGDStep, param, grad, velocity *tensor.Storage[E]) error {
	dev, err := sameDevice("sgd_update", param, grad, velocity)
	if err != nil {
		return err
	}
	if err := sameLayout("sgd_update", param, grad); err != nil {
		return err
	}
	if err := sameLayout("sgd_update", param, velocity); err != nil {
		return err
	}
	if err := makeUnique(param, velocity); err != nil {
		return err
	}
	return launch(dev, ModuleOptim, "sgd_update", param.DType(), param.PhysicalLen(),
		step.LR, int(step.Momentum), step.Mu, int(step.Decay), step.Lambda,
		param.Memory(), grad.Memory(), velocity.Memory())
}

// RMSpropStep holds the hyperparameters of one RMSprop update.
type RMSpropStep struct {
	LR       float64
	Alpha    float64
	Eps      float64
	Centered bool
	Momentum bool
	Mu       float64
	Decay    DecayKind
	Lambda   float64
}

// RMSpropUpdate applies one RMSprop step in place:
//
//	g = grad (+ λ·p for L2)
//	sa += (1-α)·(g² - sa)
//	centered: ga += (1-α)·(g - ga); avg = sqrt(sa - ga² + eps)
//	otherwise: avg = sqrt(sa + eps)
//	g = g / avg
//	momentum: m = μ·m + g; g = lr·m, otherwise g = lr·g
//	g += λ·lr·p for decoupled decay
//	p -= g
//
// eps sits inside the square root. gradAvg may be nil unless Centered and
// momentumBuf may be nil unless Momentum.
//
// Launch: optim/rmsprop_update_<dt>(lr, alpha, eps, centered, momentum, mu, decay, lambda,
// param, grad, squareAvg, gradAvg, momentumBuf).
func RMSpropUpdate[E tensor.Float](step RMSpropStep, param, grad, squareAvg, gradAvg, momentumBuf *tensor.Storage[E]) error {
	dev, err := sameDevice("rmsprop_update", param, grad, squareAvg)
	if err != nil {
		return err
	}
	for _, s := range []*tensor.Storage[E]{grad, squareAvg} {
		if err := sameLayout("rmsprop_update", param, s); err != nil {
			return err
		}
	}
	if err := makeUnique(param, squareAvg); err != nil {
		return err
	}

	optional := func(s *tensor.Storage[E], used bool) (tensor.Memory, func(), error) {
		if used {
			if err := sameLayout("rmsprop_update", param, s); err != nil {
				return nil, nil, err
			}
			if err := s.MakeUnique(); err != nil {
				return nil, nil, err
			}
			return s.Memory(), func() {}, nil
		}
		// Unused state still needs a distinct binding on accelerators.
		mem, err := dev.AllocZeroed(param.DType(), 1)
		if err != nil {
			return nil, nil, err
		}
		return mem, mem.Release, nil
	}
	gaMem, releaseGA, err := optional(gradAvg, step.Centered)
	if err != nil {
		return err
	}
	defer releaseGA()
	mMem, releaseM, err := optional(momentumBuf, step.Momentum)
	if err != nil {
		return err
	}
	defer releaseM()

	return launch(dev, ModuleOptim, "rmsprop_update", param.DType(), param.PhysicalLen(),
		step.LR, step.Alpha, step.Eps, boolInt(step.Centered), boolInt(step.Momentum), step.Mu,
		int(step.Decay), step.Lambda,
		param.Memory(), grad.Memory(), squareAvg.Memory(), gaMem, mMem)
}
