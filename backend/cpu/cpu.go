// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/tensorcore/internal/backend/cpu"
	"github.com/born-ml/tensorcore/internal/parallel"
	"github.com/born-ml/tensorcore/tensor"
)

// Name is the registry name of the host device.
const Name = internalcpu.Name

// Device is the host implementation of tensor.Device.
type Device = internalcpu.Device

// Compile-time check that Device implements tensor.Device.
var _ tensor.Device = (*Device)(nil)

// Config configures the host device. Zero values select defaults.
type Config = internalcpu.Config

// ParallelConfig controls how kernels split their loops.
type ParallelConfig = parallel.Config

// DefaultParallelConfig uses one worker per CPU.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}

// New creates a host device with parallel loops enabled.
//
// Example:
//
//	dev := cpu.New()
//	x, err := tensor.FromSlice(dev, tensor.Shape{3}, []float64{1, 2, 3})
func New() *Device {
	return internalcpu.New()
}

// NewWithConfig creates a host device from cfg.
func NewWithConfig(cfg Config) *Device {
	return internalcpu.NewWithConfig(cfg)
}
