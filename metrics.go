package tamd

import (
	"time"
)

// DefineHook observes every record created by Define, including Invalid ones.
type DefineHook func(name string, state ModuleState)

// ResolveHook observes request completion. wait is measured on the host clock
// from Require to the moment the last name resolved.
type ResolveHook func(id string, names []string, wait time.Duration)

// ReportHook observes reports before they reach the sink.
type ReportHook func(r Report)
