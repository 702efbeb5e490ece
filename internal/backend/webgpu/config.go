// Package webgpu implements the accelerator device on WebGPU through the
// zero-CGO go-webgpu bindings.
//
// Kernels are WGSL compute shaders, one per (module, function) pair, compiled
// into pipelines on first use and cached for the device's lifetime. Every
// shader binds its buffers in launch order followed by one read-only
// array<u32> holding the thread count and the scalar arguments.
//
// Only float32 kernels exist: WGSL has no portable f64. Bool buffers are
// stored as u32 and int32 buffers as i32.
package webgpu

import (
	"github.com/pkg/errors"
)

// Name is the registry name of the WebGPU device.
const Name = "webgpu"

// ErrUnavailable is returned when no WebGPU adapter can be opened.
var ErrUnavailable = errors.New("webgpu unavailable")

// Config configures the WebGPU device. Zero values select defaults.
type Config struct {
	// MaxBatchSize is the number of queued command buffers that triggers a
	// submit. 0 submits only on Download, Synchronize or Close.
	MaxBatchSize int

	// PoolSize caps the released buffers kept per size class.
	// 0 uses defaultPoolSize; a negative value disables pooling.
	PoolSize int
}

const (
	workgroupSize       = 256
	maxWorkgroupsPerDim = 65535
	defaultPoolSize     = 100
)
