// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor is the storage layer of tensorcore.
//
// # Overview
//
// A Storage is a typed, strided view over a device buffer. Views share their
// buffer through a reference count, so BroadcastTo, Permute and Reshape are
// free, and a write through MakeUnique copies only when another view still
// holds the buffer.
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
//	    x, err := tensor.FromSlice(dev, tensor.Shape{2, 3}, []float64{1, 2, 3, 4, 5, 6})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer x.Release()
//
//	    xt, _ := x.Permute(1, 0) // shares x's buffer
//	    vals, _ := xt.Values()   // [1 4 2 5 3 6]
//	}
//
// # Supported Data Types
//
// Storages hold float32, float64, int32 or bool. Only float32 and float64
// participate in differentiation; int32 storages carry indices and bool
// storages carry comparison masks.
//
// # Devices
//
// A Device allocates buffers, moves data between host and device, and runs
// kernels by name. See the backend/cpu and backend/webgpu packages.
package tensor
