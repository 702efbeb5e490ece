// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the host device: a pure Go implementation of every
// tensorcore kernel.
//
// # Overview
//
// Kernels are plain Go functions, looked up by module and function name on
// first use and cached for the device's lifetime. Forward kernels split
// their loops across goroutines; convolutions unfold their input and run a
// gonum GEMM.
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/tensorcore/backend/cpu"
//	    "github.com/born-ml/tensorcore/tensor"
//	)
//
//	func main() {
//	    dev := cpu.New()
//	    x, _ := tensor.Zeros[float32](dev, tensor.Shape{2, 3})
//	    defer x.Release()
//	}
//
// # Thread Safety
//
// A Device is safe for concurrent use. Run completes before it returns, so
// Synchronize is a no-op.
package cpu
