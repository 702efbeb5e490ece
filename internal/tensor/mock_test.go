package tensor

import (
	"github.com/pkg/errors"
)

// mockMemory is a plain Go slice posing as device memory.
type mockMemory struct {
	dt       DataType
	data     any
	n        int
	released int
}

func (m *mockMemory) DType() DataType { return m.dt }
func (m *mockMemory) Len() int        { return m.n }
func (m *mockMemory) Release()        { m.released++ }

// mockDevice is a minimal host Device for storage tests. It has no kernels.
type mockDevice struct {
	allocs int
}

func (d *mockDevice) Name() string     { return "mock" }
func (d *mockDevice) Kind() DeviceKind { return Host }

func (d *mockDevice) Alloc(dt DataType, n int) (Memory, error) {
	return d.AllocZeroed(dt, n)
}

func (d *mockDevice) AllocZeroed(dt DataType, n int) (Memory, error) {
	d.allocs++
	m := &mockMemory{dt: dt, n: n}
	switch dt {
	case Float32:
		m.data = make([]float32, n)
	case Float64:
		m.data = make([]float64, n)
	case Int32:
		m.data = make([]int32, n)
	case Bool:
		m.data = make([]bool, n)
	default:
		return nil, ErrUnsupportedDType
	}
	return m, nil
}

func (d *mockDevice) Upload(dst Memory, src any) error {
	return copyAny(dst.(*mockMemory).data, src)
}

func (d *mockDevice) Download(src Memory, dst any) error {
	return copyAny(dst, src.(*mockMemory).data)
}

func (d *mockDevice) Copy(dst, src Memory) error {
	return copyAny(dst.(*mockMemory).data, src.(*mockMemory).data)
}

func (d *mockDevice) Run(module, function string, _ LaunchConfig, _ ...any) error {
	return errors.Wrapf(ErrKernelLoad, "%s/%s", module, function)
}

func (d *mockDevice) Synchronize() error { return nil }
func (d *mockDevice) Close() error       { return nil }

func copyAny(dst, src any) error {
	switch d := dst.(type) {
	case []float32:
		copy(d, src.([]float32))
	case []float64:
		copy(d, src.([]float64))
	case []int32:
		copy(d, src.([]int32))
	case []bool:
		copy(d, src.([]bool))
	default:
		return ErrUnsupportedDType
	}
	return nil
}
