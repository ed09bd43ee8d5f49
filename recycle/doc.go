// Package recycle contains reference counted holders of off-heap values.
// Holder buffer is recycled exactly once, when the last reference is released,
// no matter in which order concurrent owners and readers release it.
package recycle
