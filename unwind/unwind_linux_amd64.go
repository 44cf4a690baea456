package unwind

import (
	"encoding/binary"
	"fmt"

	"github.com/sandtrace/go-sandtrace/regs"
)

// Supported reports whether the unwinding backend handles this platform
func Supported() bool {
	return true
}

// Unwind walks the stack of the target from a raw register snapshot and
// returns symbolized frames, innermost first. The maps listing is read from
// /proc/<pid>/maps, which inside the helper sandbox is backed by the staged
// copy taken when the target was stopped.
func Unwind(pid int, rawRegs []byte, maxFrames int) ([]string, error) {
	if maxFrames <= 0 {
		maxFrames = DefaultMaxFrames
	}
	r := regs.New(pid, rawRegs)
	if r.PC() == 0 {
		return nil, fmt.Errorf("unwind: register snapshot has no program counter")
	}

	maps, err := LoadMaps(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		return nil, err
	}

	pcs := walkFrames(pid, r.PC(), r.FP(), maxFrames)
	sym := NewSymbolizer(maps)
	frames := make([]string, 0, len(pcs))
	for _, pc := range pcs {
		frames = append(frames, sym.Frame(pc))
	}
	return frames, nil
}

// walkFrames follows the frame pointer chain: at each frame, [fp] holds the
// caller's frame pointer and [fp+8] the return address. The walk stops at a
// broken chain rather than failing frames already collected.
func walkFrames(pid int, pc, fp uint64, maxFrames int) []uint64 {
	pcs := []uint64{pc}
	var frame [16]byte
	for len(pcs) < maxFrames && fp != 0 {
		if n, err := vmRead(pid, fp, frame[:]); err != nil || n < len(frame) {
			break
		}
		next := binary.LittleEndian.Uint64(frame[0:8])
		ret := binary.LittleEndian.Uint64(frame[8:16])
		if ret == 0 {
			break
		}
		pcs = append(pcs, ret)
		if next <= fp {
			// frame pointers must strictly grow toward the stack base
			break
		}
		fp = next
	}
	return pcs
}
