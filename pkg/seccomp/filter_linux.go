package seccomp

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	seccompSetModeFilter   = 1
	seccompFilterFlagTSync = 1
)

// Filter is the assembled seccomp BPF program
type Filter []syscall.SockFilter

// SockFprog converts Filter to SockFprog for the seccomp syscall
func (f Filter) SockFprog() *syscall.SockFprog {
	b := []syscall.SockFilter(f)
	return &syscall.SockFprog{
		Len:    uint16(len(b)),
		Filter: &b[0],
	}
}

// Load installs the filter onto all threads of the calling process.
// It sets no_new_privs first so an unprivileged process may load it.
func (f Filter) Load() error {
	if len(f) == 0 {
		return fmt.Errorf("seccomp: load empty filter")
	}
	if _, _, errno := syscall.RawSyscall6(syscall.SYS_PRCTL, unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0, 0); errno != 0 {
		return fmt.Errorf("seccomp: prctl(PR_SET_NO_NEW_PRIVS): %w", errno)
	}
	prog := f.SockFprog()
	if _, _, errno := syscall.RawSyscall(unix.SYS_SECCOMP, seccompSetModeFilter,
		seccompFilterFlagTSync, uintptr(unsafe.Pointer(prog))); errno != 0 {
		return fmt.Errorf("seccomp: seccomp(SET_MODE_FILTER): %w", errno)
	}
	return nil
}
