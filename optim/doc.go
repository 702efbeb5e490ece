// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers that update parameters from the
// gradients of a backward pass.
//
// # Overview
//
// This package contains:
//   - SGD: optional classic or Nesterov momentum and weight decay
//   - RMSprop: optional centering, momentum and weight decay
//   - Optimizer interface shared by both
//
// Optimizer state lives on the parameter's device and is keyed by tensor
// identity, so the same parameter tensors must be passed to every Update.
//
// # Training Loop Pattern
//
//	opt := optim.NewSGD(optim.SGDConfig[float32]{
//	    LR:       0.01,
//	    Momentum: optim.Momentum[float32]{Kind: optim.MomentumNesterov, Mu: 0.9},
//	})
//	defer opt.Release()
//
//	for step := range steps {
//	    tape := autodiff.NewTape()
//	    loss, err := forward(params, tape)
//	    if err != nil {
//	        return err
//	    }
//	    grads, err := loss.Backward()
//	    if err != nil {
//	        return err
//	    }
//	    err = opt.Update(params, grads)
//	    grads.Release()
//	    if err != nil {
//	        return err
//	    }
//	}
//
// # Unused Parameters
//
// A parameter with no gradient is skipped. Update still updates the others
// and then returns an *UnusedParamsError, which matches ErrUnusedParams.
package optim
