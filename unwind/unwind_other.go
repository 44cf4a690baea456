//go:build !(linux && amd64)

package unwind

import "fmt"

// Supported reports whether the unwinding backend handles this platform
func Supported() bool {
	return false
}

// Unwind is unsupported on this platform
func Unwind(pid int, rawRegs []byte, maxFrames int) ([]string, error) {
	return nil, fmt.Errorf("unwind: not supported on this platform")
}
