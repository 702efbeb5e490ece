//go:build !windows

package webgpu

import (
	"github.com/pkg/errors"

	"github.com/born-ml/tensorcore/internal/tensor"
)

// Open fails: the WebGPU bindings are only built for windows.
func Open(Config) (tensor.Device, error) {
	return nil, errors.Wrap(ErrUnavailable, "webgpu: not supported on this platform")
}

// IsAvailable reports false on this platform.
func IsAvailable() bool { return false }
