// Package cpu implements the synchronous host device: buffers are Go slices
// and kernels are Go functions looked up by (module, function) name.
package cpu

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/internal/tensor"
)

// Name is the registry name of the host device.
const Name = "cpu"

// Config configures the host device. Zero values select defaults.
type Config struct {
	// Parallel controls how forward kernels split their loops.
	// The zero value runs sequentially; New uses parallel.DefaultConfig().
	Parallel parallel.Config

	// MemoryLimit caps live allocations in bytes. 0 means unlimited.
	MemoryLimit int64
}

// Device is the host implementation of tensor.Device. Every Run completes
// before it returns.
type Device struct {
	cfg Config

	kernels sync.Map // module/function -> kernelFunc
	loads   singleflight.Group

	allocated atomic.Int64
}

var _ tensor.Device = (*Device)(nil)

// New creates a host device with parallel loops enabled.
func New() *Device {
	return NewWithConfig(Config{Parallel: parallel.DefaultConfig()})
}

// NewWithConfig creates a host device from cfg.
func NewWithConfig(cfg Config) *Device {
	klog.V(1).Infof("cpu: device created (parallel=%v workers=%d limit=%d)",
		cfg.Parallel.Enabled, cfg.Parallel.NumWorkers, cfg.MemoryLimit)
	return &Device{cfg: cfg}
}

// Name returns "cpu".
func (d *Device) Name() string { return Name }

// Kind returns tensor.Host.
func (d *Device) Kind() tensor.DeviceKind { return tensor.Host }

// Allocated returns the bytes held by live buffers.
func (d *Device) Allocated() int64 { return d.allocated.Load() }

// Alloc allocates n elements. Go zeroes fresh slices, so this is AllocZeroed.
func (d *Device) Alloc(dt tensor.DataType, n int) (tensor.Memory, error) {
	return d.AllocZeroed(dt, n)
}

// AllocZeroed allocates n zero-initialized elements.
func (d *Device) AllocZeroed(dt tensor.DataType, n int) (tensor.Memory, error) {
	if n < 0 {
		return nil, errors.Wrapf(tensor.ErrAlloc, "cpu: negative length %d", n)
	}
	bytes := int64(n) * int64(dt.Size())
	if total := d.allocated.Add(bytes); d.cfg.MemoryLimit > 0 && total > d.cfg.MemoryLimit {
		d.allocated.Add(-bytes)
		return nil, errors.Wrapf(tensor.ErrAlloc, "cpu: %d bytes of %s exceed the %d byte limit",
			bytes, dt, d.cfg.MemoryLimit)
	}

	b := &buffer{dev: d, dt: dt, n: n}
	switch dt {
	case tensor.Float32:
		b.data = make([]float32, n)
	case tensor.Float64:
		b.data = make([]float64, n)
	case tensor.Int32:
		b.data = make([]int32, n)
	case tensor.Bool:
		b.data = make([]bool, n)
	default:
		d.allocated.Add(-bytes)
		return nil, errors.Wrapf(tensor.ErrUnsupportedDType, "cpu: %s", dt)
	}
	return b, nil
}

// Upload copies a host slice into dst.
func (d *Device) Upload(dst tensor.Memory, src any) error {
	b, err := d.own(dst)
	if err != nil {
		return err
	}
	return copyInto(b.data, src)
}

// Download copies src into a host slice.
func (d *Device) Download(src tensor.Memory, dst any) error {
	b, err := d.own(src)
	if err != nil {
		return err
	}
	return copyInto(dst, b.data)
}

// Copy copies src into dst.
func (d *Device) Copy(dst, src tensor.Memory) error {
	db, err := d.own(dst)
	if err != nil {
		return err
	}
	sb, err := d.own(src)
	if err != nil {
		return err
	}
	return copyInto(db.data, sb.data)
}

// Synchronize is a no-op: host kernels complete inside Run.
func (d *Device) Synchronize() error { return nil }

// Close drops the kernel cache.
func (d *Device) Close() error {
	d.kernels.Range(func(k, _ any) bool {
		d.kernels.Delete(k)
		return true
	})
	klog.V(1).Infof("cpu: device closed")
	return nil
}

// Run resolves module/function and executes it on the calling goroutine.
func (d *Device) Run(module, function string, cfg tensor.LaunchConfig, args ...any) error {
	k, err := d.kernel(module, function)
	if err != nil {
		return err
	}
	c := &call{dev: d, threads: cfg.Threads, par: d.cfg.Parallel, args: args}
	if err := k(c); err != nil {
		return errors.Wrapf(err, "cpu: %s/%s", module, function)
	}
	return nil
}

// kernel returns the cached kernel, loading it from the module table on first
// use. Concurrent first uses of one name share a single load.
func (d *Device) kernel(module, function string) (kernelFunc, error) {
	key := module + "/" + function
	if k, ok := d.kernels.Load(key); ok {
		return k.(kernelFunc), nil
	}
	v, err, _ := d.loads.Do(key, func() (any, error) {
		if k, ok := d.kernels.Load(key); ok {
			return k, nil
		}
		k, ok := lookup(module, function)
		if !ok {
			return nil, errors.Wrapf(tensor.ErrKernelLoad, "cpu: no kernel %s", key)
		}
		klog.V(2).Infof("cpu: loaded kernel %s", key)
		d.kernels.Store(key, k)
		return k, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(kernelFunc), nil
}

// own checks that m is a live buffer of this device.
func (d *Device) own(m tensor.Memory) (*buffer, error) {
	b, ok := m.(*buffer)
	if !ok || b.dev != d {
		return nil, errors.Wrapf(tensor.ErrDeviceMismatch, "cpu: foreign buffer %T", m)
	}
	if b.data == nil {
		return nil, errors.Wrap(tensor.ErrBadArgument, "cpu: buffer used after release")
	}
	return b, nil
}

// buffer is host memory: one typed Go slice.
type buffer struct {
	dev  *Device
	dt   tensor.DataType
	n    int
	data any // []float32 | []float64 | []int32 | []bool
}

func (b *buffer) DType() tensor.DataType { return b.dt }
func (b *buffer) Len() int               { return b.n }

// Release returns the buffer's bytes to the device budget.
func (b *buffer) Release() {
	if b.data == nil {
		return
	}
	b.data = nil
	b.dev.allocated.Add(-int64(b.n) * int64(b.dt.Size()))
}

// copyInto copies between two slices of the same element type and length.
func copyInto(dst, src any) error {
	switch d := dst.(type) {
	case []float32:
		if s, ok := src.([]float32); ok {
			return copySame(d, s)
		}
	case []float64:
		if s, ok := src.([]float64); ok {
			return copySame(d, s)
		}
	case []int32:
		if s, ok := src.([]int32); ok {
			return copySame(d, s)
		}
	case []bool:
		if s, ok := src.([]bool); ok {
			return copySame(d, s)
		}
	}
	return errors.Wrapf(tensor.ErrUnsupportedDType, "cpu: cannot copy %T into %T", src, dst)
}

func copySame[T any](dst, src []T) error {
	if len(dst) != len(src) {
		return errors.Wrapf(tensor.ErrShapeMismatch, "cpu: copy of %d elements into %d", len(src), len(dst))
	}
	copy(dst, src)
	return nil
}
