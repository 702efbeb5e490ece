package cpu

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// poolInfo mirrors kernels.Pool2DOp as launched.
type poolInfo struct {
	batch, chans, hIn, wIn, hOut, wOut, kernel, stride, padding int
}

func decodePool(c *call) poolInfo {
	m := c.ints(0)
	if c.err != nil {
		return poolInfo{}
	}
	if len(m) != 9 {
		c.err = errors.Wrapf(tensor.ErrBadArgument, "pool2d: %d info values, want 9", len(m))
		return poolInfo{}
	}
	return poolInfo{m[0], m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8]}
}

func pool2DFwd[E tensor.Float](kind kernels.PoolKind) kernelFunc {
	return func(c *call) error {
		p := decodePool(c)
		inp, out := slice[E](c), slice[E](c)
		if err := c.done(); err != nil {
			return err
		}
		area := E(p.kernel * p.kernel)
		c.forEach(func(i int) {
			ow := i % p.wOut
			oh := (i / p.wOut) % p.hOut
			plane := i / (p.wOut * p.hOut)
			base := plane * p.hIn * p.wIn

			var acc E
			switch kind {
			case kernels.PoolMax:
				acc = E(math.Inf(-1))
			case kernels.PoolMin:
				acc = E(math.Inf(1))
			}
			for k1 := 0; k1 < p.kernel; k1++ {
				y := oh*p.stride + k1 - p.padding
				if y < 0 || y >= p.hIn {
					continue
				}
				for k2 := 0; k2 < p.kernel; k2++ {
					x := ow*p.stride + k2 - p.padding
					if x < 0 || x >= p.wIn {
						continue
					}
					v := inp[base+y*p.wIn+x]
					switch kind {
					case kernels.PoolMax:
						acc = max(acc, v)
					case kernels.PoolMin:
						acc = min(acc, v)
					default:
						acc += v
					}
				}
			}
			if kind == kernels.PoolAvg {
				acc /= area
			}
			out[i] = acc
		})
		return nil
	}
}

// pool2DBwd runs one work item per input element and gathers from every
// window that covers it, so items never write the same slot.
func pool2DBwd[E tensor.Float](kind kernels.PoolKind) kernelFunc {
	return func(c *call) error {
		p := decodePool(c)
		inp, out, gradInp, gradOut := slice[E](c), slice[E](c), slice[E](c), slice[E](c)
		if err := c.done(); err != nil {
			return err
		}
		area := E(p.kernel * p.kernel)
		c.forEach(func(i int) {
			x := i % p.wIn
			y := (i / p.wIn) % p.hIn
			plane := i / (p.wIn * p.hIn)
			base := plane * p.hOut * p.wOut

			var g E
			for k1 := 0; k1 < p.kernel; k1++ {
				ohs := y + p.padding - k1
				if ohs < 0 || ohs%p.stride != 0 || ohs/p.stride >= p.hOut {
					continue
				}
				oh := ohs / p.stride
				for k2 := 0; k2 < p.kernel; k2++ {
					ows := x + p.padding - k2
					if ows < 0 || ows%p.stride != 0 || ows/p.stride >= p.wOut {
						continue
					}
					o := base + oh*p.wOut + ows/p.stride
					if kind == kernels.PoolAvg {
						g += gradOut[o] / area
					} else if inp[i] == out[o] {
						g += gradOut[o]
					}
				}
			}
			gradInp[i] += g
		})
		return nil
	}
}
