// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package backend selects an execution device by name.
//
// Both built-in devices are registered on import. A configuration string is
// "name" or "name:options":
//
//	cpu                      parallel host device
//	cpu:sequential,limit=N   single goroutine, N byte allocation cap
//	cpu:workers=4            four workers
//	webgpu:batch=32,pool=-1  submit every 32 commands, no buffer pool
//
// Example:
//
//	dev, err := backend.New() // reads $TENSORCORE_BACKEND
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer dev.Close()
package backend

import (
	"github.com/born-ml/tensorcore/internal/backend"
	_ "github.com/born-ml/tensorcore/internal/backend/cpu"    // registers "cpu"
	_ "github.com/born-ml/tensorcore/internal/backend/webgpu" // registers "webgpu"
	"github.com/born-ml/tensorcore/tensor"
)

// EnvVar names the environment variable read by New.
const EnvVar = backend.EnvVar

// ErrUnknownBackend is returned for unregistered names.
var ErrUnknownBackend = backend.ErrUnknownBackend

// New creates the device named by $TENSORCORE_BACKEND, or the host device
// when it is unset.
func New() (tensor.Device, error) {
	return backend.New()
}

// NewWithConfig creates a device from a "name[:options]" string.
func NewWithConfig(config string) (tensor.Device, error) {
	return backend.NewWithConfig(config)
}

// List returns the registered device names.
func List() []string {
	return backend.List()
}
