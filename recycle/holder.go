package recycle

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Buffer is off-heap memory owned by holder.
// Free is called exactly once, after the last holder reference is released.
type Buffer interface {
	Len() int
	Cap() int
	Read() ([]byte, error)
	ReadN(n int) ([]byte, error)
	ReadAt(p []byte, off int64) (int, error)
	Free() error
}

// Holder binds key to buffer with value and expiry metadata.
// Holder is created with one reference, owned by its creator.
// Every read should go through Acquire and Release pair (or NewReader and Close),
// so buffer can't be recycled under reader.
type Holder struct {
	key        string
	buf        Buffer
	expiry     time.Duration
	lastUpdate time.Time

	refs atomic.Int32
	// live transitions from true to false once. Winner of that transition recycles buffer.
	live       atomic.Bool
	hits       atomic.Int64
	lastAccess atomic.Int64 // Unix nanoseconds.
}

// NewHolder returns live holder with one reference. Zero expiry means no expiration.
func NewHolder(key string, buf Buffer, expiry time.Duration, now time.Time) *Holder {
	h := &Holder{
		key:        key,
		buf:        buf,
		expiry:     expiry,
		lastUpdate: now,
	}
	h.refs.Store(1)
	h.live.Store(true)
	h.lastAccess.Store(now.UnixNano())
	return h
}

func (h *Holder) Key() string { return h.key }

// Len returns value size.
func (h *Holder) Len() int { return h.buf.Len() }

// Cap returns capacity of buffer chunk.
func (h *Holder) Cap() int { return h.buf.Cap() }

func (h *Holder) Expiry() time.Duration { return h.expiry }

func (h *Holder) LastUpdate() time.Time { return h.lastUpdate }

// Acquire adds reference. It fails with ErrAlreadyReleased, when buffer is already recycled
// or is going to be recycled.
func (h *Holder) Acquire() error {
	for {
		refs := h.refs.Load()
		if refs <= 0 || !h.live.Load() {
			return errors.Wrapf(ErrAlreadyReleased, "acquire %q", h.key)
		}
		if h.refs.CompareAndSwap(refs, refs+1) {
			return nil
		}
	}
}

// Release drops reference. Caller that drops the last one recycles buffer,
// and returns buffer Free error, if any.
// Reference count never goes below zero: release without acquire fails with ErrIllegalState.
func (h *Holder) Release() error {
	var refs int32
	for {
		refs = h.refs.Load()
		if refs <= 0 {
			return errors.Wrapf(ErrIllegalState, "release %q without acquire: references %v", h.key, refs)
		}
		if h.refs.CompareAndSwap(refs, refs-1) {
			break
		}
	}
	if refs > 1 {
		return nil
	}
	if !h.live.CompareAndSwap(true, false) {
		return errors.Wrapf(ErrIllegalState, "second recycle of %q", h.key)
	}
	return h.buf.Free()
}

// IsLive returns true until buffer recycle.
func (h *Holder) IsLive() bool { return h.live.Load() }

func (h *Holder) References() int { return int(h.refs.Load()) }

func (h *Holder) IsExpired() bool { return h.ExpiredAt(time.Now()) }

func (h *Holder) ExpiredAt(now time.Time) bool {
	return h.expiry != 0 && now.Sub(h.lastUpdate) > h.expiry
}

// Touch records hit at now, and returns hits number including this one.
func (h *Holder) Touch(now time.Time) int64 {
	h.lastAccess.Store(now.UnixNano())
	return h.hits.Add(1)
}

func (h *Holder) Hits() int64 { return h.hits.Load() }

func (h *Holder) LastAccess() time.Time { return time.Unix(0, h.lastAccess.Load()) }

// Read returns copy of value. Holder reference should be acquired.
func (h *Holder) Read() ([]byte, error) {
	if !h.IsLive() {
		return nil, errors.Wrapf(ErrIllegalState, "read of released %q", h.key)
	}
	return h.buf.Read()
}

// ReadAcquired acquires reference, copies value and releases reference.
func (h *Holder) ReadAcquired() (data []byte, err error) {
	if err = h.Acquire(); err != nil {
		return
	}
	data, err = h.buf.Read()
	if releaseErr := h.Release(); err == nil {
		err = releaseErr
	}
	return
}

// NewReader acquires reference, that is released on reader Close.
func (h *Holder) NewReader() (*Reader, error) {
	if err := h.Acquire(); err != nil {
		return nil, err
	}
	return &Reader{holder: h}, nil
}

func (h *Holder) GoString() string {
	return fmt.Sprintf("{key:%q, refs:%v, live:%v, expiry:%v, hits:%v}",
		h.key, h.refs.Load(), h.live.Load(), h.expiry, h.hits.Load())
}
