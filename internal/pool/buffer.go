// Package pool provides memory management optimizations.
// This includes buffer pooling and resource reuse to reduce allocations.
//
// Multipart uploads read one part-sized slice of the source file at a time;
// pooling those slices keeps a long upload at a steady memory footprint
// instead of allocating tens of megabytes per part.
package pool

import (
	"sync"
)

// PartBufferPool manages reusable part-sized buffers. All buffers in one
// pool share the same capacity, fixed at construction.
type PartBufferPool struct {
	size int64
	pool *sync.Pool
}

// NewPartBufferPool creates a pool whose buffers hold exactly size bytes.
func NewPartBufferPool(size int64) *PartBufferPool {
	return &PartBufferPool{
		size: size,
		pool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				return &buf
			},
		},
	}
}

// Get returns a buffer of the pool's full part size.
// The caller is responsible for calling Put to return the buffer to the pool.
func (p *PartBufferPool) Get() []byte {
	bufPtr := p.pool.Get().(*[]byte)
	return (*bufPtr)[:p.size]
}

// Put returns a buffer to the pool.
// The buffer should not be used after calling Put.
func (p *PartBufferPool) Put(buf []byte) {
	// Reject foreign buffers so Get always returns full-capacity slices
	if int64(cap(buf)) != p.size {
		return
	}
	buf = buf[:cap(buf)]
	p.pool.Put(&buf)
}

// Size returns the capacity of buffers managed by this pool.
func (p *PartBufferPool) Size() int64 {
	return p.size
}
