//go:build windows

package webgpu

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"
	"k8s.io/klog/v2"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Device is the WebGPU implementation of tensor.Device. Run, Upload and
// Copy record command buffers that are submitted in batches; Download and
// Synchronize submit everything pending and wait for it.
type Device struct {
	cfg Config

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     wgpu.AdapterInfo

	pipelines sync.Map // module/function -> *pipeline
	loads     singleflight.Group

	pool  *bufferPool
	fence *wgpu.Buffer

	pendingMu sync.Mutex
	pending   []*wgpu.CommandBuffer
	transient []releaser // freed once pending is submitted

	active atomic.Int64 // bytes held by live buffers
	closed atomic.Bool
}

var _ tensor.Device = (*Device)(nil)

type releaser interface{ Release() }

// pipeline is a compiled kernel.
type pipeline struct {
	shader  *wgpu.ShaderModule
	compute *wgpu.ComputePipeline
	layout  *wgpu.BindGroupLayout
	src     kernelSource
}

// New opens the default high-performance adapter.
func New() (*Device, error) {
	return NewWithConfig(Config{})
}

// NewWithConfig opens the default high-performance adapter with cfg.
func NewWithConfig(cfg Config) (d *Device, err error) {
	// The bindings panic when the native library is missing.
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = errors.Wrapf(ErrUnavailable, "native library: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, errors.Wrapf(ErrUnavailable, "request adapter: %v", err)
	}
	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrapf(ErrUnavailable, "request device: %v", err)
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(ErrUnavailable, "no queue")
	}

	limit := cfg.PoolSize
	if limit == 0 {
		limit = defaultPoolSize
	}
	d = &Device{
		cfg:      cfg,
		instance: instance,
		adapter:  adapter,
		device:   device,
		queue:    queue,
		info:     adapter.GetInfo(),
		pool:     newBufferPool(device, limit),
	}
	d.fence = d.pool.create(elemBytes)
	klog.V(1).Infof("webgpu: device created (adapter=%+v batch=%d pool=%d)", d.info, cfg.MaxBatchSize, limit)
	return d, nil
}

// Open creates a device for the backend registry.
func Open(cfg Config) (tensor.Device, error) {
	d, err := NewWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// IsAvailable reports whether an adapter can be requested.
func IsAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

// Name returns "webgpu".
func (d *Device) Name() string { return Name }

// Kind returns tensor.Accelerator.
func (d *Device) Kind() tensor.DeviceKind { return tensor.Accelerator }

// AdapterInfo describes the adapter the device runs on.
func (d *Device) AdapterInfo() wgpu.AdapterInfo { return d.info }

// Allocated returns the bytes held by live buffers.
func (d *Device) Allocated() int64 { return d.active.Load() }

// PoolStats reports buffer pool activity.
func (d *Device) PoolStats() PoolStats { return d.pool.snapshot() }

// Alloc takes a buffer from the pool. Its contents are stale.
func (d *Device) Alloc(dt tensor.DataType, n int) (tensor.Memory, error) {
	size, err := d.byteSize(dt, n)
	if err != nil {
		return nil, err
	}
	buf, capacity := d.pool.acquire(size)
	return d.wrap(buf, capacity, dt, n), nil
}

// AllocZeroed creates a fresh buffer; WebGPU zero-fills new buffers.
func (d *Device) AllocZeroed(dt tensor.DataType, n int) (tensor.Memory, error) {
	size, err := d.byteSize(dt, n)
	if err != nil {
		return nil, err
	}
	return d.wrap(d.pool.create(size), size, dt, n), nil
}

func (d *Device) byteSize(dt tensor.DataType, n int) (uint64, error) {
	if d.closed.Load() {
		return 0, errors.Wrap(ErrUnavailable, "webgpu: device closed")
	}
	if n < 0 {
		return 0, errors.Wrapf(tensor.ErrAlloc, "webgpu: negative length %d", n)
	}
	if !supported(dt) {
		return 0, errors.Wrapf(tensor.ErrUnsupportedDType, "webgpu: %s", dt)
	}
	// Zero-size bindings are invalid.
	return uint64(max(n, 1)) * elemBytes, nil
}

func (d *Device) wrap(buf *wgpu.Buffer, capacity uint64, dt tensor.DataType, n int) *buffer {
	d.active.Add(int64(capacity))
	return &buffer{dev: d, buf: buf, capacity: capacity, dt: dt, n: n}
}

// Upload stages src and queues a copy into dst.
func (d *Device) Upload(dst tensor.Memory, src any) error {
	b, err := d.own(dst)
	if err != nil {
		return err
	}
	data, err := encodeHost(b.dt, b.n, src)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	staging := d.createBuffer(data, wgpu.BufferUsageCopySrc)
	encoder := d.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, b.buf, 0, uint64(len(data)))
	d.queueCommand(encoder.Finish(nil), staging)
	return nil
}

// Download submits pending work and reads src back.
func (d *Device) Download(src tensor.Memory, dst any) error {
	b, err := d.own(src)
	if err != nil {
		return err
	}
	size := uint64(b.n) * elemBytes
	var data []byte
	if size > 0 {
		d.flushCommands()
		if data, err = d.readBuffer(b.buf, size); err != nil {
			return err
		}
	}
	return decodeHost(b.dt, data, dst)
}

// Copy queues a device-side copy of src into dst.
func (d *Device) Copy(dst, src tensor.Memory) error {
	db, err := d.own(dst)
	if err != nil {
		return err
	}
	sb, err := d.own(src)
	if err != nil {
		return err
	}
	if db.dt != sb.dt || db.n != sb.n {
		return errors.Wrapf(tensor.ErrShapeMismatch, "webgpu: copy of %d %s into %d %s", sb.n, sb.dt, db.n, db.dt)
	}
	if db.n == 0 {
		return nil
	}
	encoder := d.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(sb.buf, 0, db.buf, 0, uint64(db.n)*elemBytes)
	d.queueCommand(encoder.Finish(nil))
	return nil
}

// Run records one dispatch of module/function.
func (d *Device) Run(module, function string, cfg tensor.LaunchConfig, args ...any) error {
	p, err := d.pipeline(module, function)
	if err != nil {
		return err
	}
	words, mems, err := packArgs(cfg.Threads, args)
	if err != nil {
		return errors.Wrapf(err, "webgpu: %s/%s", module, function)
	}
	if len(mems) != len(p.src.bindings) {
		return errors.Wrapf(tensor.ErrBadArgument, "webgpu: %s/%s takes %d buffers, got %d",
			module, function, len(p.src.bindings), len(mems))
	}
	if p.src.opCount > 0 {
		if op, _ := args[0].(int); op < 0 || op >= p.src.opCount {
			return errors.Wrapf(tensor.ErrBadArgument, "webgpu: %s/%s: op %d", module, function, op)
		}
	}
	if cfg.Threads == 0 {
		return nil
	}

	entries := make([]wgpu.BindGroupEntry, 0, len(mems)+1)
	for i, m := range mems {
		b, err := d.own(m)
		if err != nil {
			return errors.Wrapf(err, "webgpu: %s/%s buffer %d", module, function, i)
		}
		entries = append(entries, wgpu.BufferBindingEntry(uint32(i), b.buf, 0, b.capacity))
	}
	argData := wordBytes(words)
	argBuf := d.createBuffer(argData, wgpu.BufferUsageStorage)
	entries = append(entries, wgpu.BufferBindingEntry(uint32(len(mems)), argBuf, 0, uint64(len(argData))))
	group := d.device.CreateBindGroupSimple(p.layout, entries)

	encoder := d.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(p.compute)
	pass.SetBindGroup(0, group, nil)
	x, y := dispatchSize(cfg.Threads)
	pass.DispatchWorkgroups(x, y, 1)
	pass.End()
	d.queueCommand(encoder.Finish(nil), group, argBuf)
	return nil
}

// Synchronize submits pending work and waits for the queue to drain.
func (d *Device) Synchronize() error {
	d.flushCommands()
	_, err := d.readBuffer(d.fence, elemBytes)
	return err
}

// Close submits pending work and releases every WebGPU object.
func (d *Device) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	d.flushCommands()

	d.pipelines.Range(func(k, v any) bool {
		p := v.(*pipeline)
		p.compute.Release()
		p.shader.Release()
		d.pipelines.Delete(k)
		return true
	})
	d.pool.clear()
	d.fence.Release()
	d.queue.Release()
	d.device.Release()
	d.adapter.Release()
	d.instance.Release()
	klog.V(1).Infof("webgpu: device closed")
	return nil
}

// pipeline returns the compiled kernel, building it on first use.
// Concurrent first uses of one name share a single compilation.
func (d *Device) pipeline(module, function string) (*pipeline, error) {
	key := module + "/" + function
	if p, ok := d.pipelines.Load(key); ok {
		return p.(*pipeline), nil
	}
	v, err, _ := d.loads.Do(key, func() (any, error) {
		if p, ok := d.pipelines.Load(key); ok {
			return p, nil
		}
		src, err := lookupShader(module, function)
		if err != nil {
			return nil, err
		}
		p, err := d.compile(key, src)
		if err != nil {
			return nil, err
		}
		klog.V(2).Infof("webgpu: compiled kernel %s", key)
		d.pipelines.Store(key, p)
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pipeline), nil
}

func (d *Device) compile(key string, src kernelSource) (p *pipeline, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = errors.Wrapf(tensor.ErrKernelLoad, "webgpu: %s: %v", key, r)
		}
	}()
	shader := d.device.CreateShaderModuleWGSL(src.wgsl())
	if shader == nil {
		return nil, errors.Wrapf(tensor.ErrKernelLoad, "webgpu: %s: shader rejected", key)
	}
	compute := d.device.CreateComputePipelineSimple(nil, shader, "main")
	if compute == nil {
		shader.Release()
		return nil, errors.Wrapf(tensor.ErrKernelLoad, "webgpu: %s: pipeline rejected", key)
	}
	return &pipeline{
		shader:  shader,
		compute: compute,
		layout:  compute.GetBindGroupLayout(0),
		src:     src,
	}, nil
}

// queueCommand appends cmd to the pending batch. Objects in done are
// released after the batch is submitted.
func (d *Device) queueCommand(cmd *wgpu.CommandBuffer, done ...releaser) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	d.pending = append(d.pending, cmd)
	d.transient = append(d.transient, done...)
	if d.cfg.MaxBatchSize > 0 && len(d.pending) >= d.cfg.MaxBatchSize {
		d.flushCommandsLocked()
	}
}

func (d *Device) flushCommands() {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()
	d.flushCommandsLocked()
}

func (d *Device) flushCommandsLocked() {
	if len(d.pending) == 0 {
		return
	}
	d.queue.Submit(d.pending...)
	for _, r := range d.transient {
		r.Release()
	}
	klog.V(3).Infof("webgpu: submitted %d command buffers", len(d.pending))
	d.pending = d.pending[:0]
	d.transient = d.transient[:0]
}

// createBuffer creates a buffer initialized with data.
func (d *Device) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))
	buf := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mapped := buf.GetMappedRange(0, size)
	copy(unsafe.Slice((*byte)(mapped), size), data)
	buf.Unmap()
	return buf
}

// readBuffer copies size bytes of src through a mappable staging buffer.
// The map waits for every previously submitted command.
func (d *Device) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	staging := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer staging.Release()

	encoder := d.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	d.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(d.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, errors.Wrap(err, "webgpu: map staging buffer")
	}
	mapped := staging.GetMappedRange(0, size)
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(mapped), size))
	staging.Unmap()
	return out, nil
}

// own checks that m is a live buffer of this device.
func (d *Device) own(m tensor.Memory) (*buffer, error) {
	b, ok := m.(*buffer)
	if !ok || b.dev != d {
		return nil, errors.Wrapf(tensor.ErrDeviceMismatch, "webgpu: foreign buffer %T", m)
	}
	if b.released.Load() {
		return nil, errors.Wrap(tensor.ErrBadArgument, "webgpu: buffer used after release")
	}
	return b, nil
}

// buffer is one storage buffer. Elements are 32-bit words whatever dt is.
type buffer struct {
	dev      *Device
	buf      *wgpu.Buffer
	capacity uint64
	dt       tensor.DataType
	n        int
	released atomic.Bool
}

func (b *buffer) DType() tensor.DataType { return b.dt }
func (b *buffer) Len() int               { return b.n }

// Release returns the buffer to the pool. Work already recorded against it
// still runs before any later reuse.
func (b *buffer) Release() {
	if b.released.Swap(true) {
		return
	}
	b.dev.active.Add(-int64(b.capacity))
	if b.dev.closed.Load() {
		b.buf.Release()
		return
	}
	b.dev.pool.release(b.buf, b.capacity)
}

func (b *buffer) String() string {
	return fmt.Sprintf("webgpu.buffer(%s[%d])", b.dt, b.n)
}
