package sandbox

import (
	"os"
	"time"

	"github.com/sandtrace/go-sandtrace/pkg/rlimit"
)

// Executor describes what the sandbox launches and under which resource
// limits. The zero limits apply nothing.
type Executor struct {
	path string
	args []string
	env  []string

	limits Limits

	// target of an attached executor; the helper is the current binary
	// re-executed in helper mode
	attachedPid int
}

// Limits holds the resource limits applied to the launched process. The
// rlimits are applied by the process itself; the wall clock limit is enforced
// by a controller side watchdog.
type Limits struct {
	rlimits  rlimit.RLimits
	wallTime time.Duration
}

// NewExecutor creates an executor that launches the given binary inside the
// sandbox. The binary must apply the confinement message it receives on the
// control socket; binaries built from this module do so through Init.
func NewExecutor(path string, args ...string) *Executor {
	return &Executor{
		path: path,
		args: append([]string{path}, args...),
	}
}

// newAttachedExecutor creates the executor used for stack trace collection:
// it re-executes the current binary in helper mode against an already stopped
// target process. Only the orchestrator in this package may create one.
func newAttachedExecutor(pid int) *Executor {
	return &Executor{
		path:        "/proc/self/exe",
		args:        []string{os.Args[0], helperArg},
		attachedPid: pid,
	}
}

// SetEnv sets the environment of the launched process
func (e *Executor) SetEnv(env []string) *Executor {
	e.env = env
	return e
}

// Limits returns the executor's limits for fluent configuration
func (e *Executor) Limits() *Limits {
	return &e.limits
}

// SetAddressSpace sets the address space rlimit in bytes;
// rlimit.Unlimited lifts it
func (l *Limits) SetAddressSpace(v uint64) *Limits {
	l.rlimits.AddressSpace = v
	return l
}

// SetCPU sets the CPU time rlimit in seconds
func (l *Limits) SetCPU(seconds uint64) *Limits {
	l.rlimits.CPU = seconds
	return l
}

// SetWallTime sets the wall clock limit enforced by the controller
func (l *Limits) SetWallTime(d time.Duration) *Limits {
	l.wallTime = d
	return l
}

// SetDisableCore disables core dumps of the launched process
func (l *Limits) SetDisableCore() *Limits {
	l.rlimits.DisableCore = true
	return l
}
