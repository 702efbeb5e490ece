// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/tensorcore/internal/optim"
	"github.com/born-ml/tensorcore/tensor"
)

// Optimizer is the interface shared by all update rules.
type Optimizer[E tensor.Float] = optim.Optimizer[E]

// ErrUnusedParams is matched by UnusedParamsError.
var ErrUnusedParams = optim.ErrUnusedParams

// UnusedParamsError lists the parameters that had no gradient in an update.
type UnusedParamsError = optim.UnusedParamsError

// MomentumKind selects the momentum rule.
type MomentumKind = optim.MomentumKind

// Momentum rules.
const (
	MomentumNone     = optim.MomentumNone
	MomentumClassic  = optim.MomentumClassic
	MomentumNesterov = optim.MomentumNesterov
)

// Momentum configures SGD momentum. The zero value disables it.
type Momentum[E tensor.Float] = optim.Momentum[E]

// DecayKind selects how weight decay enters the update.
type DecayKind = optim.DecayKind

// Weight decay rules.
const (
	DecayNone      = optim.DecayNone
	DecayL2        = optim.DecayL2
	DecayDecoupled = optim.DecayDecoupled
)

// WeightDecay configures weight decay. The zero value disables it.
type WeightDecay[E tensor.Float] = optim.WeightDecay[E]

// SGD (Stochastic Gradient Descent)

// SGD is stochastic gradient descent with optional momentum.
type SGD[E tensor.Float] = optim.SGD[E]

// SGDConfig configures SGD. A zero LR means 0.01.
type SGDConfig[E tensor.Float] = optim.SGDConfig[E]

// NewSGD creates an SGD optimizer.
//
// Example:
//
//	opt := optim.NewSGD(optim.SGDConfig[float64]{
//	    LR:          0.1,
//	    Momentum:    optim.Momentum[float64]{Kind: optim.MomentumClassic, Mu: 0.9},
//	    WeightDecay: optim.WeightDecay[float64]{Kind: optim.DecayL2, Lambda: 1e-4},
//	})
func NewSGD[E tensor.Float](cfg SGDConfig[E]) *SGD[E] {
	return optim.NewSGD(cfg)
}

// RMSprop

// RMSprop divides each step by a running average of squared gradients.
type RMSprop[E tensor.Float] = optim.RMSprop[E]

// RMSpropConfig configures RMSprop. Zero LR, Alpha and Eps select 0.01, 0.9
// and 1e-8.
type RMSpropConfig[E tensor.Float] = optim.RMSpropConfig[E]

// NewRMSprop creates an RMSprop optimizer.
//
// Example:
//
//	mu := float32(0.9)
//	opt := optim.NewRMSprop(optim.RMSpropConfig[float32]{
//	    LR:       1e-3,
//	    Centered: true,
//	    Momentum: &mu,
//	})
func NewRMSprop[E tensor.Float](cfg RMSpropConfig[E]) *RMSprop[E] {
	return optim.NewRMSprop(cfg)
}
