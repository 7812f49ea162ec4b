// Package pool provides buffer reuse for multipart part reads, keeping
// steady-state allocations bounded by the upload concurrency rather than
// the object size.
package pool

import "sync"

// PartBuffers hands out fixed-capacity byte slices sized for one multipart
// part. Buffers returned via Put are reused by later Get calls.
type PartBuffers struct {
	size int64
	pool sync.Pool
}

// NewPartBuffers creates a pool of part-sized buffers.
func NewPartBuffers(size int64) *PartBuffers {
	return &PartBuffers{
		size: size,
		pool: sync.Pool{
			New: func() any {
				buf := make([]byte, size)
				return &buf
			},
		},
	}
}

// Get returns a buffer with length equal to the pool's part size.
func (p *PartBuffers) Get() []byte {
	bufPtr := p.pool.Get().(*[]byte)
	return (*bufPtr)[:p.size]
}

// Put returns a buffer to the pool. Buffers of a different capacity are
// dropped rather than recycled.
func (p *PartBuffers) Put(buf []byte) {
	if int64(cap(buf)) != p.size {
		return
	}
	buf = buf[:cap(buf)]
	p.pool.Put(&buf)
}
