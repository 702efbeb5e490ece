// Package autodiff implements reverse-mode automatic differentiation with an
// explicit, single-use gradient tape.
//
// Architecture:
//   - Tensor[E]: a storage plus an identity and an optional tape
//   - Tape: append-only log of backward closures, replayed in reverse once
//   - Gradients: accumulators keyed by tensor identity
//   - ops (subpackage): differentiable operations that record onto the tape
//
// Only tensors traced on a tape record anything; untracked tensors run the
// forward kernels and nothing else.
//
// Usage:
//
//	tape := autodiff.NewTape()
//	x := autodiff.NewTensor(storage).Trace(tape)
//	y, _ := ops.Square(x)
//	loss, _ := ops.SumTo(y)
//	grads, _ := loss.Backward()
//	dx, _ := autodiff.Grad(grads, x) // 2x
package autodiff

import "github.com/pkg/errors"

// Tape errors.
var (
	// ErrTapeConsumed is returned when a tape is used after its backward pass.
	ErrTapeConsumed = errors.New("autodiff: tape already consumed")

	// ErrTapeBusy is returned when a backward pass is already running on the tape.
	ErrTapeBusy = errors.New("autodiff: backward pass in progress")

	// ErrTapeMismatch is returned when operands are traced on different tapes.
	ErrTapeMismatch = errors.New("autodiff: operands traced on different tapes")

	// ErrNoTape is returned by Backward on a tensor that is not traced.
	ErrNoTape = errors.New("autodiff: tensor is not traced")
)
