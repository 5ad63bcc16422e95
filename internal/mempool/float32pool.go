package mempool

import (
	"sync"
)

// Pooled []float32 buffers for tensor staging. Every inference converts an
// image to a float32 plane tensor and back; recycling those buffers keeps
// the hot path from hammering the allocator.

var float32Pools sync.Map // key: size class (int), value: *sync.Pool

const step = 4096

// sizeClass rounds n up to a bucket so buffers of nearby sizes share a pool.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	r := (n + step - 1) / step
	return r * step
}

// GetFloat32 returns a []float32 of length n from the pool. Capacity may be
// larger. Return it with PutFloat32 once the tensor no longer references it.
func GetFloat32(n int) []float32 {
	cls := sizeClass(n)
	pAny, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float32, cls) }})
	p, ok := pAny.(*sync.Pool)
	if !ok {
		return make([]float32, cls)[:n]
	}
	buf, ok := p.Get().([]float32)
	if !ok || cap(buf) < cls {
		buf = make([]float32, cls)
	}
	return buf[:cap(buf)][:n]
}

// PutFloat32 returns a buffer to the pool. Nil and undersized slices are
// dropped.
func PutFloat32(buf []float32) {
	if cap(buf) < step {
		return
	}
	cls := sizeClass(cap(buf))
	if cls > cap(buf) {
		// Capacity sits below its bucket, pool it one bucket down.
		cls -= step
	}
	pAny, _ := float32Pools.LoadOrStore(cls, &sync.Pool{New: func() any { return make([]float32, cls) }})
	if p, ok := pAny.(*sync.Pool); ok {
		//nolint:staticcheck // slice header allocation is cheaper than the buffer
		p.Put(buf[:cap(buf)])
	}
}
