package tensor

// DeviceKind distinguishes synchronous host devices from asynchronous accelerators.
type DeviceKind int

// Device kinds.
const (
	Host DeviceKind = iota
	Accelerator
)

// String returns a human-readable kind name.
func (k DeviceKind) String() string {
	switch k {
	case Host:
		return "host"
	case Accelerator:
		return "accelerator"
	default:
		return "unknown"
	}
}

// Memory is a device-resident buffer of Len elements of DType.
type Memory interface {
	DType() DataType
	Len() int
	// Release frees the device buffer. Storages call it when their last
	// reference is dropped; it must be safe to call once.
	Release()
}

// LaunchConfig describes the work of one kernel launch. Threads is the number
// of independent logical work items; devices split them into chunks or
// workgroups as they see fit.
type LaunchConfig struct {
	Threads int
}

// LaunchFor returns a LaunchConfig covering n work items.
func LaunchFor(n int) LaunchConfig {
	return LaunchConfig{Threads: n}
}

// Device is an execution target. Kernels are addressed by (module, function)
// name and resolved lazily on first use; the resolved form is cached for the
// device's lifetime.
//
// Run arguments must be Memory, int, float64 or []int. A host device runs the
// kernel to completion before returning. An accelerator returns once the
// launch is enqueued; launches execute in program order and results are only
// visible to Download after the implied synchronization.
type Device interface {
	// Name identifies the device, e.g. "cpu" or "webgpu".
	Name() string

	// Kind reports whether the device executes synchronously.
	Kind() DeviceKind

	// Alloc allocates n elements whose initial contents are unspecified.
	// Use it for outputs that a kernel fully overwrites.
	Alloc(dt DataType, n int) (Memory, error)

	// AllocZeroed allocates n zero-initialized elements.
	AllocZeroed(dt DataType, n int) (Memory, error)

	// Upload copies a host slice ([]float32, []float64, []int32 or []bool) into dst.
	Upload(dst Memory, src any) error

	// Download copies dst's contents into a host slice of matching type.
	Download(src Memory, dst any) error

	// Copy copies the whole of src into dst, ordered with Run.
	Copy(dst, src Memory) error

	// Run launches the named kernel.
	Run(module, function string, cfg LaunchConfig, args ...any) error

	// Synchronize blocks until all launched work has completed.
	Synchronize() error

	// Close releases device resources.
	Close() error
}
