package cpu

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// convInfo mirrors kernels.Conv2DOp as launched.
type convInfo struct {
	batch, chanIn, chanOut, kernel    int
	hIn, wIn, hOut, wOut, stride, pad int
}

func decodeConv(c *call) convInfo {
	m := c.ints(0)
	if c.err != nil {
		return convInfo{}
	}
	if len(m) != 10 {
		c.err = errors.Wrapf(tensor.ErrBadArgument, "conv2d: %d info values, want 10", len(m))
		return convInfo{}
	}
	return convInfo{m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8], m[9]}
}

// unfoldInput writes patches laid out as (B, C, K, K, HOut, WOut).
func unfoldInput[E tensor.Float](c *call) error {
	p := decodeConv(c)
	img, patches := slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	c.forEach(func(i int) {
		ow := i % p.wOut
		r := i / p.wOut
		oh := r % p.hOut
		r /= p.hOut
		k2 := r % p.kernel
		r /= p.kernel
		k1 := r % p.kernel
		plane := r / p.kernel // b*C + c

		y := oh*p.stride + k1 - p.pad
		x := ow*p.stride + k2 - p.pad
		if y < 0 || y >= p.hIn || x < 0 || x >= p.wIn {
			patches[i] = 0
			return
		}
		patches[i] = img[(plane*p.hIn+y)*p.wIn+x]
	})
	return nil
}

// unfoldOutput writes the output gradient seen from each input position,
// laid out as (B, O, K, K, HIn, WIn).
func unfoldOutput[E tensor.Float](c *call) error {
	p := decodeConv(c)
	gradOut, patches := slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	c.forEach(func(i int) {
		x := i % p.wIn
		r := i / p.wIn
		y := r % p.hIn
		r /= p.hIn
		k2 := r % p.kernel
		r /= p.kernel
		k1 := r % p.kernel
		plane := r / p.kernel // b*O + o

		patches[i] = 0
		ohs, ows := y+p.pad-k1, x+p.pad-k2
		if ohs < 0 || ows < 0 || ohs%p.stride != 0 || ows%p.stride != 0 {
			return
		}
		oh, ow := ohs/p.stride, ows/p.stride
		if oh >= p.hOut || ow >= p.wOut {
			return
		}
		patches[i] = gradOut[(plane*p.hOut+oh)*p.wOut+ow]
	})
	return nil
}

// transposeFilters maps (O, C, K, K) to (C, O, K, K).
func transposeFilters[E tensor.Float](c *call) error {
	p := decodeConv(c)
	filters, ft := slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	kk := p.kernel * p.kernel
	c.forEach(func(i int) {
		k := i % kk
		o := (i / kk) % p.chanOut
		ch := i / (kk * p.chanOut)
		ft[i] = filters[(o*p.chanIn+ch)*kk+k]
	})
	return nil
}

// sumTransposedFilters folds the per-batch (B, C, O, K, K) filter gradients
// into the (O, C, K, K) accumulator.
func sumTransposedFilters[E tensor.Float](c *call) error {
	p := decodeConv(c)
	gradFB, gradFilters := slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	kk := p.kernel * p.kernel
	per := p.chanIn * p.chanOut * kk
	c.forEach(func(i int) {
		k := i % kk
		o := (i / kk) % p.chanOut
		ch := i / (kk * p.chanOut)
		var sum E
		for b := 0; b < p.batch; b++ {
			sum += gradFB[b*per+i]
		}
		gradFilters[(o*p.chanIn+ch)*kk+k] += sum
	})
	return nil
}
