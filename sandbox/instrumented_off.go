//go:build !race && !msan

package sandbox

func sanitizersEnabled() bool { return false }
