package slab

import (
	"fmt"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"
)

const (
	zeroClass = -1
	// disposedSize is size sentinel, that makes any read and write of disposed buffer fail.
	disposedSize = -1
)

// Buffer is handle of one allocated chunk.
// Capacity is fixed at allocation. Size is length of last written data.
//
// Buffer has single writer discipline: Write should not be called concurrently
// with other Write or Read. It is guaranteed by the buffer owner.
type Buffer struct {
	alloc     *Allocator
	class     int
	offset    int
	data      []byte // Chunk view. len(data) == capacity.
	requested int
	size      atomic.Int64
}

func (b *Buffer) Cap() int { return len(b.data) }

// Len returns size of written data, or zero if buffer disposed.
func (b *Buffer) Len() int {
	size := b.size.Load()
	if size == disposedSize {
		return 0
	}
	return int(size)
}

// Offset returns chunk offset in allocator region.
func (b *Buffer) Offset() int { return b.offset }

func (b *Buffer) Disposed() bool { return b.size.Load() == disposedSize }

// Write copies p into chunk and sets buffer size to len(p).
// Data that doesn't fit is never truncated: ErrBufferOverflow is returned instead.
func (b *Buffer) Write(p []byte) (n int, err error) {
	if err = b.checkUsable(); err != nil {
		return
	}
	if len(p) > len(b.data) {
		return 0, errors.Wrapf(ErrBufferOverflow, "write %v bytes into %v capacity", len(p), len(b.data))
	}
	n = copy(b.data, p)
	b.size.Store(int64(n))
	return
}

// Read returns copy of written data.
func (b *Buffer) Read() ([]byte, error) {
	size := b.size.Load()
	if size == disposedSize {
		return nil, b.checkUsable()
	}
	return b.ReadN(int(size))
}

// ReadN returns copy of first n written bytes.
func (b *Buffer) ReadN(n int) ([]byte, error) {
	if err := b.checkUsable(); err != nil {
		return nil, err
	}
	if size := b.Len(); n < 0 || n > size {
		return nil, errors.Errorf("slab: read %v bytes of %v written", n, size)
	}
	p := make([]byte, n)
	copy(p, b.data)
	return p, nil
}

// ReadAt implements io.ReaderAt over written data.
func (b *Buffer) ReadAt(p []byte, off int64) (n int, err error) {
	if err = b.checkUsable(); err != nil {
		return
	}
	size := int64(b.Len())
	if off < 0 {
		return 0, errors.New("slab: negative offset")
	}
	if off >= size {
		return 0, io.EOF
	}
	n = copy(p, b.data[off:size])
	if n < len(p) {
		err = io.EOF
	}
	return
}

// Dispose makes buffer unusable. It does not return chunk to the allocator: see Free.
func (b *Buffer) Dispose() {
	b.size.Store(disposedSize)
}

// Free disposes buffer and returns its chunk to the allocator.
// Should be called exactly once.
func (b *Buffer) Free() error {
	b.Dispose()
	return b.alloc.Free(b)
}

func (b *Buffer) checkUsable() error {
	if b.size.Load() == disposedSize {
		return errors.Wrap(ErrIllegalState, "use of disposed buffer")
	}
	if b.alloc.Destroyed() {
		return errors.Wrap(ErrIllegalState, "use of buffer after allocator destroy")
	}
	return nil
}

func (b *Buffer) GoString() string {
	return fmt.Sprintf("{class:%v, offset:%v, cap:%v, size:%v}", b.class, b.offset, b.Cap(), b.size.Load())
}

var _ io.ReaderAt = (*Buffer)(nil)
