package webgpu

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// packArgs encodes a launch into the words of the args binding and the
// buffers bound before it. Word 0 is the thread count. Each int and float64
// takes one word (floats as f32 bits); a []int takes a length word followed
// by its values.
func packArgs(threads int, args []any) ([]uint32, []tensor.Memory, error) {
	if threads < 0 || int64(threads) > math.MaxUint32 {
		return nil, nil, errors.Wrapf(tensor.ErrBadArgument, "thread count %d", threads)
	}
	words := []uint32{uint32(threads)}
	var (
		mems    []tensor.Memory
		sawInfo bool
	)
	for i, a := range args {
		if _, isMem := a.(tensor.Memory); !isMem && len(mems) > 0 {
			return nil, nil, errors.Wrapf(tensor.ErrBadArgument, "argument %d: %T after buffers", i, a)
		}
		switch v := a.(type) {
		case int:
			if sawInfo {
				return nil, nil, errors.Wrapf(tensor.ErrBadArgument, "argument %d: scalar after info slice", i)
			}
			w, err := word(v)
			if err != nil {
				return nil, nil, errors.Wrapf(err, "argument %d", i)
			}
			words = append(words, w)
		case float64:
			if sawInfo {
				return nil, nil, errors.Wrapf(tensor.ErrBadArgument, "argument %d: scalar after info slice", i)
			}
			words = append(words, math.Float32bits(float32(v)))
		case []int:
			if sawInfo {
				return nil, nil, errors.Wrapf(tensor.ErrBadArgument, "argument %d: second info slice", i)
			}
			sawInfo = true
			words = append(words, uint32(len(v)))
			for _, x := range v {
				w, err := word(x)
				if err != nil {
					return nil, nil, errors.Wrapf(err, "argument %d", i)
				}
				words = append(words, w)
			}
		case tensor.Memory:
			if v == nil {
				return nil, nil, errors.Wrapf(tensor.ErrBadArgument, "argument %d: nil buffer", i)
			}
			mems = append(mems, v)
		default:
			return nil, nil, errors.Wrapf(tensor.ErrBadArgument, "argument %d: unsupported type %T", i, a)
		}
	}
	return words, mems, nil
}

// word stores v as its two's complement low 32 bits.
func word(v int) (uint32, error) {
	if int64(v) < math.MinInt32 || int64(v) > math.MaxUint32 {
		return 0, errors.Wrapf(tensor.ErrBadArgument, "%d does not fit in 32 bits", v)
	}
	return uint32(v), nil
}

func wordBytes(words []uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

// dispatchSize splits threads into a 2D grid of workgroups. Shaders
// recover the linear index as x + y*groupsX*workgroupSize.
func dispatchSize(threads int) (x, y uint32) {
	groups := (threads + workgroupSize - 1) / workgroupSize
	if groups <= maxWorkgroupsPerDim {
		return uint32(groups), 1
	}
	rows := (groups + maxWorkgroupsPerDim - 1) / maxWorkgroupsPerDim
	return maxWorkgroupsPerDim, uint32(rows)
}

// elemBytes is the device width of one element. Every supported type
// occupies one 32-bit word.
const elemBytes = 4

// supported reports whether dt has a device representation.
func supported(dt tensor.DataType) bool {
	switch dt {
	case tensor.Float32, tensor.Int32, tensor.Bool:
		return true
	default:
		return false
	}
}

// encodeHost converts a host slice of dt into device bytes.
func encodeHost(dt tensor.DataType, n int, src any) ([]byte, error) {
	out := make([]byte, elemBytes*n)
	put := func(i int, w uint32) { binary.LittleEndian.PutUint32(out[elemBytes*i:], w) }
	switch s := src.(type) {
	case []float32:
		if dt != tensor.Float32 || len(s) != n {
			break
		}
		for i, v := range s {
			put(i, math.Float32bits(v))
		}
		return out, nil
	case []int32:
		if dt != tensor.Int32 || len(s) != n {
			break
		}
		for i, v := range s {
			put(i, uint32(v))
		}
		return out, nil
	case []bool:
		if dt != tensor.Bool || len(s) != n {
			break
		}
		for i, v := range s {
			if v {
				put(i, 1)
			}
		}
		return out, nil
	}
	return nil, errors.Wrapf(tensor.ErrUnsupportedDType, "webgpu: cannot upload %T into %d elements of %s", src, n, dt)
}

// decodeHost fills a host slice of dt from device bytes.
func decodeHost(dt tensor.DataType, data []byte, dst any) error {
	n := len(data) / elemBytes
	get := func(i int) uint32 { return binary.LittleEndian.Uint32(data[elemBytes*i:]) }
	switch d := dst.(type) {
	case []float32:
		if dt != tensor.Float32 || len(d) != n {
			break
		}
		for i := range d {
			d[i] = math.Float32frombits(get(i))
		}
		return nil
	case []int32:
		if dt != tensor.Int32 || len(d) != n {
			break
		}
		for i := range d {
			d[i] = int32(get(i))
		}
		return nil
	case []bool:
		if dt != tensor.Bool || len(d) != n {
			break
		}
		for i := range d {
			d[i] = get(i) != 0
		}
		return nil
	}
	return errors.Wrapf(tensor.ErrUnsupportedDType, "webgpu: cannot download %d elements of %s into %T", n, dt, dst)
}
