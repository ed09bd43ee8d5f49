package recycle

import (
	"fmt"
	"runtime"
	"time"
)

// LeakCallback is called before GC of holder, that was never recycled.
// Note: this is for test and debug purpose only.
type LeakCallback func(*Holder)

// SetLeakCallback sets callback, which is called before GC of not recycled holder.
func (h *Holder) SetLeakCallback(cb LeakCallback) {
	if cb == nil {
		runtime.SetFinalizer(h, nil)
		return
	}
	runtime.SetFinalizer(h, checkLeakFinalizer(cb))
}

func NotifyOnLeak(leak chan<- *Holder) LeakCallback {
	return func(h *Holder) {
		select {
		case leak <- h:
		case <-time.After(5 * time.Second):
			panic("Nobody is listening for leak notification")
		}
	}
}

var PanicOnLeak LeakCallback = func(h *Holder) {
	panic(fmt.Sprintf("recycle.Holder leaked: %#v.", h))
}

var WarnOnLeak LeakCallback = func(h *Holder) {
	println("WARN: recycle.Holder leaked: " + h.key)
}

func checkLeakFinalizer(cb LeakCallback) func(*Holder) {
	return func(h *Holder) {
		if h.IsLive() {
			cb(h)
		}
	}
}
