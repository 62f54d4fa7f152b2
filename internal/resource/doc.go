// Package resource implements the memory budget that bounds arena growth
// and the read throttle for source files.
//
// A generation session may be given a hard ceiling for the bytes its
// workspace may reserve. Every growth step acquires the additional bytes from
// the Controller first; if the budget is exhausted the step fails immediately
// (non-blocking, fail-fast) and the caller surfaces it as allocation
// exhaustion.
//
//	rc := resource.NewController(resource.Config{MemoryLimitBytes: 64 << 20})
//	if err := rc.AcquireMemory(1 << 20); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(1 << 20)
//
// A Controller configured with IOLimitBytesPerSec throttles readers wrapped
// in a RateLimitedReader, so a large index can be parsed without saturating
// the disk it lives on.
//
// All methods handle a nil Controller gracefully - they become no-ops.
package resource
