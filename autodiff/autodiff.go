// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// Operations on tensors traced on a Tape record a backward closure. The tape
// is single use: Backward replays it once, in reverse, and consumes it.
//
// Example:
//
//	import (
//	    "github.com/born-ml/tensorcore/autodiff"
//	    "github.com/born-ml/tensorcore/backend/cpu"
//	    "github.com/born-ml/tensorcore/tensor"
//	)
//
//	func main() {
//	    dev := cpu.New()
//	    s, _ := tensor.FromSlice(dev, tensor.Shape{3}, []float64{1, 2, 3})
//
//	    tape := autodiff.NewTape()
//	    x := autodiff.NewTensor(s).Trace(tape)
//	    y, _ := autodiff.Square(x)
//	    loss, _ := autodiff.SumTo(y)
//
//	    grads, _ := loss.Backward()
//	    dx, _ := autodiff.Grad(grads, x) // [2 4 6]
//	}
package autodiff

import (
	"github.com/born-ml/tensorcore/internal/autodiff"
	"github.com/born-ml/tensorcore/tensor"
)

// Tape records backward closures for one backward pass.
type Tape = autodiff.Tape

// NewTape creates an empty tape.
func NewTape() *Tape {
	return autodiff.NewTape()
}

// Tensor is a storage with an identity and an optional tape.
type Tensor[E tensor.Float] = autodiff.Tensor[E]

// NewTensor wraps s in an untraced tensor with a fresh identity.
func NewTensor[E tensor.Float](s *tensor.Storage[E]) *Tensor[E] {
	return autodiff.NewTensor(s)
}

// Gradients holds the result of a backward pass, keyed by tensor identity.
type Gradients = autodiff.Gradients

// Grad returns the gradient of t, if the backward pass reached it.
func Grad[E tensor.Float](g *Gradients, t *Tensor[E]) (*tensor.Storage[E], bool) {
	return autodiff.Grad(g, t)
}

// Tape errors.
var (
	ErrTapeConsumed = autodiff.ErrTapeConsumed
	ErrTapeBusy     = autodiff.ErrTapeBusy
	ErrTapeMismatch = autodiff.ErrTapeMismatch
	ErrNoTape       = autodiff.ErrNoTape
)
