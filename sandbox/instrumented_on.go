//go:build race || msan

package sandbox

// sanitizersEnabled reports whether this binary carries runtime
// instrumentation that must not run under the helper's syscall filter
func sanitizersEnabled() bool { return true }
