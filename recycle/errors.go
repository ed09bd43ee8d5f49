package recycle

import "github.com/pkg/errors"

var (
	// ErrAlreadyReleased is returned on acquire of holder, which buffer is already recycled.
	ErrAlreadyReleased = errors.New("recycle: holder already released")
	// ErrIllegalState is returned on lifetime violation: release without matching acquire,
	// or read through closed reader.
	ErrIllegalState = errors.New("recycle: illegal state")
)
