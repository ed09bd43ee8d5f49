// Package region provides a fixed contiguous block of memory outside of the Go heap.
//
// On unix platforms the block is an anonymous private mapping, so GC neither
// scans nor moves it and physical pages are committed lazily on first touch.
// Other platforms fall back to a heap allocated slice with the same API.
package region

import (
	"sync/atomic"

	"github.com/pkg/errors"
)

// AccessPattern is a hint to the kernel about future access to a part of region.
type AccessPattern int

const (
	AccessDefault AccessPattern = iota
	AccessWillNeed
	// AccessDontNeed lets the kernel drop physical pages. Their content reads as zeroes after that.
	AccessDontNeed
)

var (
	ErrClosed        = errors.New("region: closed")
	ErrInvalidSize   = errors.New("region: size must be positive")
	ErrOutOfBounds   = errors.New("region: out of bounds")
	ErrAlreadyClosed = errors.New("region: already closed")
)

// Region owns one memory block for its whole lifetime.
// Bytes and Slice results are valid only until Close, so Close must not race with users.
type Region struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// New reserves size bytes.
func New(size int) (*Region, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	data, unmap, err := osMapAnon(size)
	if err != nil {
		return nil, errors.Wrapf(err, "region: map %v bytes", size)
	}
	return &Region{data: data, unmap: unmap}, nil
}

func (r *Region) Size() int { return len(r.data) }

func (r *Region) Closed() bool { return r.closed.Load() }

// Slice returns [offset, offset+n) part of region with capacity limited to n,
// so appends can't overwrite neighbour data.
func (r *Region) Slice(offset, n int) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if offset < 0 || n < 0 || offset+n > len(r.data) {
		return nil, ErrOutOfBounds
	}
	return r.data[offset : offset+n : offset+n], nil
}

// Advise passes access hint for [offset, offset+n) to the kernel.
// Unaligned ranges are silently ignored: hint is advisory.
func (r *Region) Advise(offset, n int, pattern AccessPattern) error {
	data, err := r.Slice(offset, n)
	if err != nil {
		return err
	}
	return osAdvise(data, pattern)
}

// Close releases memory. Second call returns ErrAlreadyClosed.
func (r *Region) Close() error {
	if r.closed.Swap(true) {
		return ErrAlreadyClosed
	}
	data := r.data
	r.data = nil
	if r.unmap == nil {
		return nil
	}
	return errors.WithStack(r.unmap(data))
}
