package cpu

import (
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

func fill[E tensor.Float](c *call) error {
	v := E(c.float())
	out := slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	c.forEach(func(i int) { out[i] = v })
	return nil
}

func copyStridedFwd[E tensor.Float](c *call) error {
	meta := c.ints(2)
	inp, out := slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	dims, strides := meta[:len(meta)/2], meta[len(meta)/2:]
	c.forEach(func(i int) {
		out[i] = inp[tensor.Offset(i, dims, strides)]
	})
	return nil
}

func copyStridedBwd[E tensor.Float](c *call) error {
	meta := c.ints(2)
	gradInp, gradOut := slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	dims, strides := meta[:len(meta)/2], meta[len(meta)/2:]
	c.serial(func(i int) {
		gradInp[tensor.Offset(i, dims, strides)] += gradOut[i]
	})
	return nil
}

func unaryFwd[E tensor.Float](c *call) error {
	op, s, meta := kernels.UnaryOp(c.int()), E(c.float()), c.ints(2)
	inp, out := slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	if _, err := unaryValue(op, s, 0); err != nil {
		return err
	}
	dims, strides := meta[:len(meta)/2], meta[len(meta)/2:]
	c.forEach(func(i int) {
		out[i], _ = unaryValue(op, s, inp[tensor.Offset(i, dims, strides)])
	})
	return nil
}

func unaryBwd[E tensor.Float](c *call) error {
	op, s, meta := kernels.UnaryOp(c.int()), E(c.float()), c.ints(2)
	inp, out, gradInp, gradOut := slice[E](c), slice[E](c), slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	if _, err := unaryValue(op, s, 0); err != nil {
		return err
	}
	dims, strides := meta[:len(meta)/2], meta[len(meta)/2:]
	c.serial(func(i int) {
		off := tensor.Offset(i, dims, strides)
		gradInp[off] += unaryDeriv(op, s, inp[off], out[i]) * gradOut[i]
	})
	return nil
}

func unaryValue[E tensor.Float](op kernels.UnaryOp, s, x E) (E, error) {
	f := float64(x)
	switch op {
	case kernels.UnaryNeg:
		return -x, nil
	case kernels.UnarySin:
		return E(math.Sin(f)), nil
	case kernels.UnaryCos:
		return E(math.Cos(f)), nil
	case kernels.UnaryExp:
		return E(math.Exp(f)), nil
	case kernels.UnaryLn:
		return E(math.Log(f)), nil
	case kernels.UnarySqrt:
		return E(math.Sqrt(f)), nil
	case kernels.UnarySquare:
		return x * x, nil
	case kernels.UnaryAbs:
		return E(math.Abs(f)), nil
	case kernels.UnaryReLU:
		return max(x, 0), nil
	case kernels.UnaryTanh:
		return E(math.Tanh(f)), nil
	case kernels.UnarySigmoid:
		return E(1 / (1 + math.Exp(-f))), nil
	case kernels.UnaryAddScalar:
		return x + s, nil
	case kernels.UnaryMulScalar:
		return x * s, nil
	case kernels.UnaryPowScalar:
		return E(math.Pow(f, float64(s))), nil
	default:
		return 0, errors.Wrapf(tensor.ErrBadArgument, "unary op %d", op)
	}
}

// unaryDeriv returns d(op)/dx at x, where y = op(x).
func unaryDeriv[E tensor.Float](op kernels.UnaryOp, s, x, y E) E {
	switch op {
	case kernels.UnaryNeg:
		return -1
	case kernels.UnarySin:
		return E(math.Cos(float64(x)))
	case kernels.UnaryCos:
		return -E(math.Sin(float64(x)))
	case kernels.UnaryExp:
		return y
	case kernels.UnaryLn:
		return 1 / x
	case kernels.UnarySqrt:
		return 0.5 / y
	case kernels.UnarySquare:
		return 2 * x
	case kernels.UnaryAbs:
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		}
		return 0
	case kernels.UnaryReLU:
		if x > 0 {
			return 1
		}
		return 0
	case kernels.UnaryTanh:
		return 1 - y*y
	case kernels.UnarySigmoid:
		return y * (1 - y)
	case kernels.UnaryAddScalar:
		return 1
	case kernels.UnaryMulScalar:
		return s
	case kernels.UnaryPowScalar:
		return s * E(math.Pow(float64(x), float64(s-1)))
	default:
		return 0
	}
}

// splitMeta splits meta into dims followed by n stride arrays.
func splitMeta(meta []int, n int) (dims []int, strides [][]int) {
	rank := len(meta) / (n + 1)
	dims = meta[:rank]
	for k := 1; k <= n; k++ {
		strides = append(strides, meta[k*rank:(k+1)*rank])
	}
	return dims, strides
}

func binaryFwd[E tensor.Float](c *call) error {
	op, meta := kernels.BinaryOp(c.int()), c.ints(3)
	lhs, rhs, out := slice[E](c), slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	if op < kernels.BinaryAdd || op > kernels.BinaryMinimum {
		return errors.Wrapf(tensor.ErrBadArgument, "binary op %d", op)
	}
	dims, st := splitMeta(meta, 2)
	c.forEach(func(i int) {
		l, r := lhs[tensor.Offset(i, dims, st[0])], rhs[tensor.Offset(i, dims, st[1])]
		out[i] = binaryValue(op, l, r)
	})
	return nil
}

func binaryBwd[E tensor.Float](c *call) error {
	op, meta := kernels.BinaryOp(c.int()), c.ints(3)
	lhs, rhs, gradLhs, gradRhs, gradOut := slice[E](c), slice[E](c), slice[E](c), slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	dims, st := splitMeta(meta, 2)
	c.serial(func(i int) {
		lo, ro := tensor.Offset(i, dims, st[0]), tensor.Offset(i, dims, st[1])
		dl, dr := binaryDeriv(op, lhs[lo], rhs[ro])
		gradLhs[lo] += dl * gradOut[i]
		gradRhs[ro] += dr * gradOut[i]
	})
	return nil
}

func binaryValue[E tensor.Float](op kernels.BinaryOp, l, r E) E {
	switch op {
	case kernels.BinaryAdd:
		return l + r
	case kernels.BinarySub:
		return l - r
	case kernels.BinaryMul:
		return l * r
	case kernels.BinaryDiv:
		return l / r
	case kernels.BinaryMaximum:
		return max(l, r)
	default:
		return min(l, r)
	}
}

// binaryDeriv returns the partial derivatives with respect to l and r.
// Maximum and minimum split ties evenly.
func binaryDeriv[E tensor.Float](op kernels.BinaryOp, l, r E) (E, E) {
	switch op {
	case kernels.BinaryAdd:
		return 1, 1
	case kernels.BinarySub:
		return 1, -1
	case kernels.BinaryMul:
		return r, l
	case kernels.BinaryDiv:
		return 1 / r, -l / (r * r)
	case kernels.BinaryMaximum:
		switch {
		case l > r:
			return 1, 0
		case l < r:
			return 0, 1
		}
		return 0.5, 0.5
	default:
		switch {
		case l < r:
			return 1, 0
		case l > r:
			return 0, 1
		}
		return 0.5, 0.5
	}
}

func compare[E tensor.Float](op kernels.CmpOp, l, r E) bool {
	switch op {
	case kernels.CmpEq:
		return l == r
	case kernels.CmpNe:
		return l != r
	case kernels.CmpGt:
		return l > r
	case kernels.CmpGe:
		return l >= r
	case kernels.CmpLt:
		return l < r
	default:
		return l <= r
	}
}

func cmp[E tensor.Float](c *call) error {
	op, meta := kernels.CmpOp(c.int()), c.ints(3)
	lhs, rhs, out := slice[E](c), slice[E](c), slice[bool](c)
	if err := c.done(); err != nil {
		return err
	}
	if op < kernels.CmpEq || op > kernels.CmpLe {
		return errors.Wrapf(tensor.ErrBadArgument, "cmp op %d", op)
	}
	dims, st := splitMeta(meta, 2)
	c.forEach(func(i int) {
		out[i] = compare(op, lhs[tensor.Offset(i, dims, st[0])], rhs[tensor.Offset(i, dims, st[1])])
	})
	return nil
}

func scalarCmp[E tensor.Float](c *call) error {
	op, s, meta := kernels.CmpOp(c.int()), E(c.float()), c.ints(2)
	inp, out := slice[E](c), slice[bool](c)
	if err := c.done(); err != nil {
		return err
	}
	if op < kernels.CmpEq || op > kernels.CmpLe {
		return errors.Wrapf(tensor.ErrBadArgument, "cmp op %d", op)
	}
	dims, strides := meta[:len(meta)/2], meta[len(meta)/2:]
	c.forEach(func(i int) {
		out[i] = compare(op, inp[tensor.Offset(i, dims, strides)], s)
	})
	return nil
}

func chooseFwd[E tensor.Float](c *call) error {
	meta := c.ints(4)
	cond, lhs, rhs, out := slice[bool](c), slice[E](c), slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	dims, st := splitMeta(meta, 3)
	c.forEach(func(i int) {
		if cond[tensor.Offset(i, dims, st[0])] {
			out[i] = lhs[tensor.Offset(i, dims, st[1])]
		} else {
			out[i] = rhs[tensor.Offset(i, dims, st[2])]
		}
	})
	return nil
}

func chooseBwd[E tensor.Float](c *call) error {
	meta := c.ints(4)
	cond, gradLhs, gradRhs, gradOut := slice[bool](c), slice[E](c), slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	dims, st := splitMeta(meta, 3)
	c.serial(func(i int) {
		if cond[tensor.Offset(i, dims, st[0])] {
			gradLhs[tensor.Offset(i, dims, st[1])] += gradOut[i]
		} else {
			gradRhs[tensor.Offset(i, dims, st[2])] += gradOut[i]
		}
	})
	return nil
}
