// Package host defines the scheduling facility a runtime runs its deferred
// work on, and the event-loop backed implementation used by default.
package host

import (
	"time"
)

// Host runs tasks one at a time. Post and AfterFunc must be safe to call from
// any goroutine; tasks must never run inline within Post or AfterFunc.
type Host interface {
	Post(task func()) error
	AfterFunc(delay time.Duration, task func()) (cancel func(), err error)
	Now() time.Time
}
