package recycle

import (
	"io"

	"github.com/pkg/errors"
)

const writeToChunkSize = 32 << 10

// Reader reads holder value, while holding holder reference.
// Close should be called, otherwise holder buffer is never recycled.
type Reader struct {
	holder *Holder
	offset int64
}

var _ interface {
	io.ReadCloser
	io.WriterTo
} = (*Reader)(nil)

func (r *Reader) Read(p []byte) (n int, err error) {
	if r.isClosed() {
		return 0, errors.Wrap(ErrIllegalState, "read of closed reader")
	}
	n, err = r.holder.buf.ReadAt(p, r.offset)
	r.offset += int64(n)
	return
}

func (r *Reader) WriteTo(w io.Writer) (nn int64, err error) {
	if r.isClosed() {
		return 0, errors.Wrap(ErrIllegalState, "write to from closed reader")
	}
	left := r.Len()
	if left == 0 {
		return
	}
	chunk := make([]byte, min(left, writeToChunkSize))
	for left > 0 {
		var n int
		n, err = r.holder.buf.ReadAt(chunk[:min(left, len(chunk))], r.offset)
		if err == io.EOF && n == 0 {
			return nn, nil
		}
		if err != nil && err != io.EOF {
			return
		}
		n, err = w.Write(chunk[:n])
		r.offset += int64(n)
		nn += int64(n)
		left -= n
		if err != nil {
			return
		}
	}
	return
}

// Len returns number of unread bytes.
func (r *Reader) Len() int {
	if r.isClosed() {
		return 0
	}
	return r.holder.Len() - int(r.offset)
}

// Close releases holder reference. Second Close is no-op.
func (r *Reader) Close() error {
	if r.isClosed() {
		return nil
	}
	h := r.holder
	r.holder = nil
	return h.Release()
}

func (r *Reader) isClosed() bool {
	return r.holder == nil
}
