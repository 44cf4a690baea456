package sandbox

import (
	"github.com/sandtrace/go-sandtrace/mount"
	"github.com/sandtrace/go-sandtrace/pkg/rlimit"
	"github.com/sandtrace/go-sandtrace/pkg/seccomp"
)

// confCmd is the confinement message the controller sends first. The helper
// applies it to itself before serving any request.
type confCmd struct {
	RLimits []rlimit.RLimit // posix rlimits through setrlimit
	Mounts  []mount.Mount   // mount points, applied only inside a mount namespace
	Seccomp seccomp.Filter  // seccomp filter, self loaded last

	CloneFlags uintptr // the namespaces the helper was started with
}

// confReply reports whether the helper applied its confinement
type confReply struct {
	Error string // empty if confinement applied
}
