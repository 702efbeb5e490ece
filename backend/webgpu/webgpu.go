// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the accelerator device on WebGPU.
//
// Kernels are WGSL compute shaders compiled on first use. Only float32
// kernels exist; float64 launches fail with tensor.ErrUnsupportedDType.
// The device is implemented on Windows, where go-webgpu ships its native
// library; elsewhere Open returns ErrUnavailable.
//
// Example:
//
//	import (
//	    "github.com/born-ml/tensorcore/backend/cpu"
//	    "github.com/born-ml/tensorcore/backend/webgpu"
//	    "github.com/born-ml/tensorcore/tensor"
//	)
//
//	func main() {
//	    var dev tensor.Device = cpu.New()
//	    if webgpu.IsAvailable() {
//	        gpu, err := webgpu.Open(webgpu.Config{})
//	        if err != nil {
//	            log.Fatal(err)
//	        }
//	        dev = gpu
//	    }
//	    defer dev.Close()
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/tensorcore/internal/backend/webgpu"
	"github.com/born-ml/tensorcore/tensor"
)

// Name is the registry name of the WebGPU device.
const Name = internalwebgpu.Name

// ErrUnavailable is returned when no WebGPU adapter can be opened.
var ErrUnavailable = internalwebgpu.ErrUnavailable

// Config configures the WebGPU device. Zero values select defaults.
type Config = internalwebgpu.Config

// Open creates a WebGPU device.
//
// Returns an error wrapping ErrUnavailable when no compatible GPU or driver
// is present. Close the device when done to free GPU resources.
func Open(cfg Config) (tensor.Device, error) {
	return internalwebgpu.Open(cfg)
}

// IsAvailable reports whether a WebGPU adapter can be opened.
//
// Example:
//
//	if !webgpu.IsAvailable() {
//	    dev = cpu.New()
//	}
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
