package unwind

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// vmRead reads target process memory without ptrace attachment. The seccomp
// policy of the helper restricts the readable pid on the syscall argument.
func vmRead(pid int, addr uint64, buff []byte) (int, error) {
	localIov := []unix.Iovec{{
		Base: &buff[0],
		Len:  uint64(len(buff)),
	}}
	remoteIov := []unix.RemoteIovec{{
		Base: uintptr(addr),
		Len:  len(buff),
	}}
	n, err := unix.ProcessVMReadv(pid, localIov, remoteIov, 0)
	if err != nil {
		return 0, fmt.Errorf("unwind: process_vm_readv(%d, 0x%x): %w", pid, addr, err)
	}
	return n, nil
}
