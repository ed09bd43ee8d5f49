package slab

import "github.com/pkg/errors"

var (
	// ErrOversizedRequest is returned by Allocate when requested size exceeds max chunk size.
	ErrOversizedRequest = errors.New("slab: requested size exceeds max chunk size")
	// ErrOutOfMemory is returned by Allocate when no chunk is free and no slab fits in the region.
	// Caller can free some memory and retry.
	ErrOutOfMemory = errors.New("slab: out of memory")
	// ErrIllegalState is returned on use of disposed buffer or destroyed allocator.
	ErrIllegalState = errors.New("slab: illegal state")
	// ErrBufferOverflow is returned by Buffer.Write when data exceeds buffer capacity.
	ErrBufferOverflow = errors.New("slab: buffer overflow")
	ErrInvalidConfig  = errors.New("slab: invalid config")
	ErrNegativeSize   = errors.New("slab: negative size")
)
