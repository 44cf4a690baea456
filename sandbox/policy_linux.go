package sandbox

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/sandtrace/go-sandtrace/mount"
	"github.com/sandtrace/go-sandtrace/pkg/seccomp"
)

// Policy is the confinement applied to the helper. It is immutable once
// built; construct one through PolicyBuilder.
type Policy struct {
	Filter     seccomp.Filter
	Mounts     []mount.Mount
	KeepCaps   []uintptr
	CloneFlags uintptr
}

// PolicyBuilder accumulates syscall allow rules and filesystem exposures and
// compiles them into a Policy.
type PolicyBuilder struct {
	mounts     []mount.Mount
	allow      []string
	allowed    map[string]bool
	argRules   []seccomp.ArgRule
	keepCaps   []uintptr
	cloneFlags uintptr
}

// NewPolicyBuilder creates an empty policy builder. The default filter action
// is kill; everything the helper needs must be allowed explicitly.
func NewPolicyBuilder() *PolicyBuilder {
	return &PolicyBuilder{
		allowed: make(map[string]bool),
	}
}

// SetMounts seeds the filesystem exposures from an existing view. The view is
// not mutated; exposures added later extend the copy.
func (b *PolicyBuilder) SetMounts(view *mount.Mounts) *PolicyBuilder {
	b.mounts = view.Mounts()
	return b
}

// AllowSyscalls allows the named syscalls unconditionally
func (b *PolicyBuilder) AllowSyscalls(names ...string) *PolicyBuilder {
	for _, n := range names {
		if b.allowed[n] {
			continue
		}
		b.allowed[n] = true
		b.allow = append(b.allow, n)
	}
	return b
}

// AddPolicyOnSyscallArg0 allows a syscall only when the low 32 bits of its
// first argument equal one of the given values
func (b *PolicyBuilder) AddPolicyOnSyscallArg0(name string, values ...uint32) *PolicyBuilder {
	b.argRules = append(b.argRules, seccomp.ArgRule{
		Name:   name,
		Arg:    0,
		Values: values,
	})
	return b
}

// AllowOpen allows opening and closing files
func (b *PolicyBuilder) AllowOpen() *PolicyBuilder {
	return b.AllowSyscalls("open", "openat", "close")
}

// AllowRead allows reading and stat-ing open files
func (b *PolicyBuilder) AllowRead() *PolicyBuilder {
	return b.AllowSyscalls("read", "readv", "pread64", "lseek", "fstat", "newfstatat")
}

// AllowWrite allows writing to open files
func (b *PolicyBuilder) AllowWrite() *PolicyBuilder {
	return b.AllowSyscalls("write", "writev", "pwrite64")
}

// AllowMmap allows memory mapping and the allocator's service calls
func (b *PolicyBuilder) AllowMmap() *PolicyBuilder {
	return b.AllowSyscalls("mmap", "munmap", "mprotect", "madvise", "mincore")
}

// AllowExit allows clean process and thread exit
func (b *PolicyBuilder) AllowExit() *PolicyBuilder {
	return b.AllowSyscalls("exit", "exit_group")
}

// AllowHandleSignals allows installing and returning from signal handlers
func (b *PolicyBuilder) AllowHandleSignals() *PolicyBuilder {
	return b.AllowSyscalls("rt_sigaction", "rt_sigprocmask", "rt_sigreturn", "sigaltstack")
}

// AddFileAt exposes a single host file read-only at the given path
func (b *PolicyBuilder) AddFileAt(host, target string) *PolicyBuilder {
	b.mounts = append(b.mounts, mount.Mount{
		Source: host,
		Target: target,
		Flags:  unix.MS_BIND | unix.MS_NOSUID | unix.MS_PRIVATE | unix.MS_RDONLY,
	})
	return b
}

// AddDirectory exposes a host directory read-only at the same path
func (b *PolicyBuilder) AddDirectory(dir string) *PolicyBuilder {
	return b.AddFileAt(dir, dir)
}

// KeepCapability keeps a capability in the helper's ambient set
func (b *PolicyBuilder) KeepCapability(c uintptr) *PolicyBuilder {
	b.keepCaps = append(b.keepCaps, c)
	return b
}

// TryBuild compiles the accumulated rules into a Policy
func (b *PolicyBuilder) TryBuild() (*Policy, error) {
	filter, err := (&seccomp.Builder{
		Allow:    b.allow,
		ArgRules: b.argRules,
		Default:  seccomp.ActionKill,
	}).Build()
	if err != nil {
		return nil, fmt.Errorf("policy: failed to build filter: %w", err)
	}
	mounts := make([]mount.Mount, len(b.mounts))
	copy(mounts, b.mounts)
	return &Policy{
		Filter:     filter,
		Mounts:     mounts,
		KeepCaps:   b.keepCaps,
		CloneFlags: b.cloneFlags,
	}, nil
}

// libraryDirs are probed when the unwind policy is built; a missing directory
// is skipped, not an error
var libraryDirs = []string{"/usr/lib", "/lib", "/lib64"}

// buildUnwindPolicy builds the confinement for the unwind helper: the fixed
// unwinder / symbolizer syscall set, process_vm_readv restricted to the
// target, the staged maps file exposed where the helper expects to read it,
// and the target executable exposed at its original path. The helper joins
// the caller's namespaces, so the clone flags stay zero.
func buildUnwindPolicy(logger *slog.Logger, pid int, mapsFile, appPath, exePath string, view *mount.Mounts) (*Policy, error) {
	b := NewPolicyBuilder().
		SetMounts(view).
		AllowOpen().
		AllowRead().
		AllowWrite().
		AllowMmap().
		AllowExit().
		AllowHandleSignals().
		AllowSyscalls("pipe2", "brk", "clock_gettime", "dup", "fcntl", "getpid", "gettid").
		AddPolicyOnSyscallArg0("process_vm_readv", uint32(pid), 1)

	// the Go runtime serves goroutines with its own calls: threads, timers,
	// the netpoller behind the control socket
	b.AllowSyscalls(
		"clone", "futex", "nanosleep", "clock_nanosleep", "sched_yield",
		"sched_getaffinity", "getrandom", "tgkill", "restart_syscall",
		"epoll_create1", "epoll_ctl", "epoll_pwait", "epoll_wait",
		"sendmsg", "recvmsg",
	)

	b.AddFileAt(mapsFile, fmt.Sprintf("/proc/%d/maps", pid))
	b.AddFileAt(mapsFile, fmt.Sprintf("/proc/%d/task/%d/maps", pid, pid))
	b.AddFileAt(exePath, appPath)

	for _, dir := range libraryDirs {
		if _, err := os.Stat(dir); err != nil {
			logger.Info("library directory not present, skipping", "dir", dir)
			continue
		}
		b.AddDirectory(dir)
	}

	// reading another process' memory needs ptrace permission
	b.KeepCapability(unix.CAP_SYS_PTRACE)

	return b.TryBuild()
}
