package cpu

import (
	"math"

	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

func reduceIdentity[E tensor.Float](op kernels.ReduceOp) E {
	switch op {
	case kernels.ReduceMin:
		return E(math.Inf(1))
	case kernels.ReduceMax:
		return E(math.Inf(-1))
	default:
		return 0
	}
}

func reduceCombine[E tensor.Float](op kernels.ReduceOp, acc, x E) E {
	switch op {
	case kernels.ReduceMin:
		return min(acc, x)
	case kernels.ReduceMax:
		return max(acc, x)
	default:
		return acc + x
	}
}

// reduceFwd folds chunk consecutive elements of the permuted input into each
// output slot. Sums are scaled by the extent of broadcast reduced axes.
func reduceFwd[E tensor.Float](op kernels.ReduceOp) kernelFunc {
	return func(c *call) error {
		chunk, scale, meta := c.int(), E(c.float()), c.ints(2)
		inp, out := slice[E](c), slice[E](c)
		if err := c.done(); err != nil {
			return err
		}
		pdims, pstrides := meta[:len(meta)/2], meta[len(meta)/2:]
		id := reduceIdentity[E](op)
		c.forEach(func(s int) {
			acc := id
			for j := 0; j < chunk; j++ {
				acc = reduceCombine(op, acc, inp[tensor.Offset(s*chunk+j, pdims, pstrides)])
			}
			if op == kernels.ReduceSum {
				acc *= scale
			}
			out[s] = acc
		})
		return nil
	}
}

func reduceBwd[E tensor.Float](op kernels.ReduceOp) kernelFunc {
	return func(c *call) error {
		meta := c.ints(3)
		inp, out, gradInp, gradOut := slice[E](c), slice[E](c), slice[E](c), slice[E](c)
		if err := c.done(); err != nil {
			return err
		}
		dims, st := splitMeta(meta, 2)
		c.serial(func(i int) {
			xo, yo := tensor.Offset(i, dims, st[0]), tensor.Offset(i, dims, st[1])
			if op == kernels.ReduceSum || inp[xo] == out[yo] {
				gradInp[xo] += gradOut[yo]
			}
		})
		return nil
	}
}
