package autodiff

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// BackwardFunc accumulates the gradients of one recorded operation's inputs.
type BackwardFunc func(g *Gradients) error

// Releaser is a value saved for the backward pass, released when the tape is
// replayed or discarded.
type Releaser interface {
	Release()
}

// Tape records operations during the forward pass and replays them in
// reverse during Backward. A tape supports exactly one backward pass.
//
// Usage:
//
//	tape := NewTape()
//	x := NewTensor(s).Trace(tape)
//	// ... operations on x ...
//	grads, err := loss.Backward()
type Tape struct {
	mu       sync.Mutex
	entries  []entry // in recording order
	consumed bool

	busy atomic.Bool
}

type entry struct {
	name     string
	backward BackwardFunc
	saved    []Releaser
}

// NewTape creates an empty tape.
func NewTape() *Tape {
	return &Tape{entries: make([]entry, 0, 64)}
}

// Len returns the number of recorded operations.
func (t *Tape) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Consumed reports whether the tape's backward pass has started.
func (t *Tape) Consumed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consumed
}

// Record appends an operation. saved values are released after the operation's
// backward closure has run, or immediately when recording fails.
func (t *Tape) Record(name string, backward BackwardFunc, saved ...Releaser) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.consumed {
		releaseAll(saved)
		return errors.Wrapf(ErrTapeConsumed, "record %s", name)
	}
	t.entries = append(t.entries, entry{name: name, backward: backward, saved: saved})
	return nil
}

// Discard drops every recorded operation without running it and marks the
// tape consumed.
func (t *Tape) Discard() {
	t.mu.Lock()
	entries := t.entries
	t.entries = nil
	t.consumed = true
	t.mu.Unlock()
	for _, e := range entries {
		releaseAll(e.saved)
	}
}

// replay runs every backward closure in reverse recording order. The first
// failing closure aborts the traversal; the tape is consumed either way.
func (t *Tape) replay(g *Gradients) error {
	if !t.busy.CompareAndSwap(false, true) {
		return ErrTapeBusy
	}
	defer t.busy.Store(false)

	t.mu.Lock()
	if t.consumed {
		t.mu.Unlock()
		return ErrTapeConsumed
	}
	t.consumed = true
	entries := t.entries
	t.entries = nil
	t.mu.Unlock()

	klog.V(3).Infof("autodiff: replaying %d operations", len(entries))
	defer func() {
		for _, e := range entries {
			releaseAll(e.saved)
		}
	}()
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		klog.V(3).Infof("autodiff: backward %s (%d)", e.name, i)
		if err := e.backward(g); err != nil {
			return errors.Wrapf(err, "backward %s", e.name)
		}
	}
	return nil
}

func releaseAll(rs []Releaser) {
	for _, r := range rs {
		r.Release()
	}
}
