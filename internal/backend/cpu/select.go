package cpu

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/kernels"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// indexCall holds the decoded scalars of a select launch.
type indexCall struct {
	mode                            kernels.IndexMode
	axis, axisLen, srcRank, idxRank int
	outDims, srcStrides, idxStrides []int
}

func decodeIndex(c *call) indexCall {
	ic := indexCall{
		mode:    kernels.IndexMode(c.int()),
		axis:    c.int(),
		axisLen: c.int(),
		srcRank: c.int(),
		idxRank: c.int(),
	}
	meta := c.ints(0)
	if c.err != nil {
		return ic
	}
	outRank := ic.srcRank - 1
	if ic.mode == kernels.ReplaceDim {
		outRank = ic.srcRank + ic.idxRank - ic.axis - 1
	}
	if len(meta) != outRank+ic.srcRank+ic.idxRank || ic.axis < 0 || ic.axis >= ic.srcRank {
		c.err = errors.Wrapf(tensor.ErrBadArgument, "select: %d info values for ranks src=%d idx=%d",
			len(meta), ic.srcRank, ic.idxRank)
		return ic
	}
	ic.outDims = meta[:outRank]
	ic.srcStrides = meta[outRank : outRank+ic.srcRank]
	ic.idxStrides = meta[outRank+ic.srcRank:]
	return ic
}

// offsets returns the source offset read by output element i.
func (ic indexCall) offsets(i int, idx []int32) (int, error) {
	coords := make([]int, len(ic.outDims))
	for j := len(ic.outDims) - 1; j >= 0; j-- {
		coords[j] = i % ic.outDims[j]
		i /= ic.outDims[j]
	}
	idxOff := 0
	for j := 0; j < ic.idxRank; j++ {
		idxOff += coords[j] * ic.idxStrides[j]
	}
	v := int(idx[idxOff])
	if v < 0 || v >= ic.axisLen {
		return 0, errors.Wrapf(tensor.ErrIndexOutOfRange, "%s: index %d on axis of length %d", ic.mode, v, ic.axisLen)
	}
	off := v * ic.srcStrides[ic.axis]
	for j := 0; j < ic.srcRank; j++ {
		if j == ic.axis {
			continue
		}
		k := j
		if ic.mode == kernels.RemoveDim && j > ic.axis {
			k--
		}
		off += coords[k] * ic.srcStrides[j]
	}
	return off, nil
}

func selectFwd[E tensor.Float](c *call) error {
	ic := decodeIndex(c)
	src, idx, out := slice[E](c), slice[int32](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	return c.forEachErr(func(i int) error {
		off, err := ic.offsets(i, idx)
		if err != nil {
			return err
		}
		out[i] = src[off]
		return nil
	})
}

func selectBwd[E tensor.Float](c *call) error {
	ic := decodeIndex(c)
	idx, gradSrc, gradOut := slice[int32](c), slice[E](c), slice[E](c)
	if err := c.done(); err != nil {
		return err
	}
	for i := 0; i < c.threads; i++ {
		off, err := ic.offsets(i, idx)
		if err != nil {
			return err
		}
		gradSrc[off] += gradOut[i]
	}
	return nil
}
