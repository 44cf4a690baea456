//go:build !(linux && amd64)

package regs

import "fmt"

// Capture is unsupported on this architecture
func Capture(pid int) (*Regs, error) {
	return nil, fmt.Errorf("regs: register capture not supported on this platform")
}

// PC returns the instruction pointer of the snapshot
func (r *Regs) PC() uint64 { return 0 }

// SP returns the stack pointer of the snapshot
func (r *Regs) SP() uint64 { return 0 }

// FP returns the frame pointer of the snapshot
func (r *Regs) FP() uint64 { return 0 }
