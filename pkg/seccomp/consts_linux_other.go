//go:build linux && !amd64 && !arm64

package seccomp

// no audit arch value known, Builder.Build reports unsupported
const auditArch = 0
