//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// sizeClass buckets pooled buffers so lookups scan short lists.
type sizeClass int

const (
	smallClass  sizeClass = iota // < 4KB
	mediumClass                  // < 1MB
	largeClass
	numClasses
)

const (
	smallThreshold  = 4 * 1024
	mediumThreshold = 1024 * 1024
)

// storageUsage is shared by every tensor buffer so any pooled buffer can
// serve any request of sufficient size.
var storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

func classOf(size uint64) sizeClass {
	switch {
	case size < smallThreshold:
		return smallClass
	case size < mediumThreshold:
		return mediumClass
	default:
		return largeClass
	}
}

type pooledBuffer struct {
	buffer   *wgpu.Buffer
	capacity uint64
}

// bufferPool recycles released storage buffers. Recycled buffers keep their
// old contents; only freshly created buffers are zero-filled.
type bufferPool struct {
	device *wgpu.Device
	limit  int

	mu      sync.Mutex
	classes [numClasses][]pooledBuffer
	stats   PoolStats
}

// PoolStats counts buffer pool activity.
type PoolStats struct {
	Created     uint64
	Recycled    uint64
	Hits        uint64
	Misses      uint64
	Pooled      int
	PooledBytes uint64
}

func newBufferPool(device *wgpu.Device, limit int) *bufferPool {
	return &bufferPool{device: device, limit: limit}
}

// acquire returns a buffer of at least size bytes and its capacity.
func (p *bufferPool) acquire(size uint64) (*wgpu.Buffer, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := classOf(size)
	list := p.classes[c]
	for i, pb := range list {
		if pb.capacity >= size {
			p.classes[c] = append(list[:i], list[i+1:]...)
			p.stats.Hits++
			p.stats.Pooled--
			p.stats.PooledBytes -= pb.capacity
			return pb.buffer, pb.capacity
		}
	}
	p.stats.Misses++
	return p.createLocked(size), size
}

// create always makes a new, zero-filled buffer.
func (p *bufferPool) create(size uint64) *wgpu.Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createLocked(size)
}

func (p *bufferPool) createLocked(size uint64) *wgpu.Buffer {
	p.stats.Created++
	return p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: storageUsage,
		Size:  size,
	})
}

// release keeps buf for reuse, or frees it when its class is full.
func (p *bufferPool) release(buf *wgpu.Buffer, capacity uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := classOf(capacity)
	if p.limit < 0 || len(p.classes[c]) >= p.limit {
		buf.Release()
		return
	}
	p.classes[c] = append(p.classes[c], pooledBuffer{buffer: buf, capacity: capacity})
	p.stats.Recycled++
	p.stats.Pooled++
	p.stats.PooledBytes += capacity
}

// clear frees every pooled buffer.
func (p *bufferPool) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for c := range p.classes {
		for _, pb := range p.classes[c] {
			pb.buffer.Release()
		}
		p.classes[c] = nil
	}
	p.stats.Pooled = 0
	p.stats.PooledBytes = 0
}

func (p *bufferPool) snapshot() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
