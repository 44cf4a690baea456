package regs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// byte offsets into the amd64 user_regs_struct
const (
	offRbp = 4 * 8
	offRip = 16 * 8
	offRsp = 19 * 8

	regsSize = 27 * 8
)

// Capture reads the register state of a stopped, ptrace-attached process
func Capture(pid int) (*Regs, error) {
	var pt unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &pt); err != nil {
		return nil, fmt.Errorf("regs: failed to read registers of %d: %w", pid, err)
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, &pt); err != nil {
		return nil, fmt.Errorf("regs: failed to encode registers: %w", err)
	}
	return &Regs{pid: pid, data: buf.Bytes()}, nil
}

// PC returns the instruction pointer of the snapshot
func (r *Regs) PC() uint64 {
	return r.reg(offRip)
}

// SP returns the stack pointer of the snapshot
func (r *Regs) SP() uint64 {
	return r.reg(offRsp)
}

// FP returns the frame pointer of the snapshot
func (r *Regs) FP() uint64 {
	return r.reg(offRbp)
}

func (r *Regs) reg(off int) uint64 {
	if len(r.data) < off+8 {
		return 0
	}
	return binary.LittleEndian.Uint64(r.data[off:])
}
