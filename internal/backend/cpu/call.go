package cpu

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// kernelFunc is a host kernel. It decodes its launch arguments from c in
// order and runs to completion.
type kernelFunc func(c *call) error

// call carries one launch: the thread count and the positional arguments.
// Decoding errors are sticky and reported by done.
type call struct {
	dev     *Device
	threads int
	par     parallel.Config
	args    []any
	pos     int
	err     error
}

func (c *call) next() any {
	if c.err != nil {
		return nil
	}
	if c.pos >= len(c.args) {
		c.err = errors.Wrapf(tensor.ErrBadArgument, "missing argument %d", c.pos)
		return nil
	}
	v := c.args[c.pos]
	c.pos++
	return v
}

func (c *call) int() int {
	v := c.next()
	if c.err != nil {
		return 0
	}
	i, ok := v.(int)
	if !ok {
		c.err = errors.Wrapf(tensor.ErrBadArgument, "argument %d: want int, got %T", c.pos-1, v)
	}
	return i
}

func (c *call) float() float64 {
	v := c.next()
	if c.err != nil {
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		c.err = errors.Wrapf(tensor.ErrBadArgument, "argument %d: want float64, got %T", c.pos-1, v)
	}
	return f
}

// ints decodes a []int argument and checks it splits into parts equal pieces.
func (c *call) ints(parts int) []int {
	v := c.next()
	if c.err != nil {
		return nil
	}
	s, ok := v.([]int)
	if !ok {
		c.err = errors.Wrapf(tensor.ErrBadArgument, "argument %d: want []int, got %T", c.pos-1, v)
		return nil
	}
	if parts > 0 && len(s)%parts != 0 {
		c.err = errors.Wrapf(tensor.ErrBadArgument, "argument %d: %d values do not split into %d parts",
			c.pos-1, len(s), parts)
	}
	return s
}

// done reports decoding errors and rejects unconsumed arguments.
func (c *call) done() error {
	if c.err == nil && c.pos != len(c.args) {
		c.err = errors.Wrapf(tensor.ErrBadArgument, "%d arguments, kernel consumed %d", len(c.args), c.pos)
	}
	return c.err
}

// slice decodes a buffer argument of element type T.
func slice[T tensor.Element](c *call) []T {
	v := c.next()
	if c.err != nil {
		return nil
	}
	b, err := c.dev.own(asMemory(v))
	if err != nil {
		c.err = err
		return nil
	}
	s, ok := b.data.([]T)
	if !ok {
		c.err = errors.Wrapf(tensor.ErrUnsupportedDType, "argument %d: buffer holds %s", c.pos-1, b.dt)
	}
	return s
}

func asMemory(v any) tensor.Memory {
	m, _ := v.(tensor.Memory)
	return m
}

// forEach runs f over [0, c.threads) in parallel chunks. f must only write
// to locations owned by its own index.
func (c *call) forEach(f func(i int)) {
	parallel.For(c.threads, f, c.par)
}

// forEachErr is forEach for bodies that can fail; the first error wins.
func (c *call) forEachErr(f func(i int) error) error {
	var (
		once     sync.Once
		firstErr error
	)
	parallel.Range(c.threads, func(start, end int) {
		for i := start; i < end; i++ {
			if err := f(i); err != nil {
				once.Do(func() { firstErr = err })
				return
			}
		}
	}, c.par)
	return firstErr
}

// serial runs f over [0, c.threads) in order. Backward kernels use it: their
// targets may alias through zero strides.
func (c *call) serial(f func(i int)) {
	for i := 0; i < c.threads; i++ {
		f(i)
	}
}
