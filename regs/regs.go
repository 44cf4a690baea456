// Package regs captures an architecture specific register snapshot of a
// traced process. The snapshot is immutable once captured and is shipped to
// the unwind helper as raw bytes.
package regs

// Regs is the register snapshot of a stopped process together with its pid.
// The raw layout matches the kernel user_regs_struct of the architecture.
type Regs struct {
	pid  int
	data []byte
}

// New wraps a raw register snapshot captured elsewhere
func New(pid int, data []byte) *Regs {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &Regs{pid: pid, data: cp}
}

// Pid returns the pid of the process the snapshot was taken from
func (r *Regs) Pid() int {
	return r.pid
}

// Marshal returns the raw register bytes for the unwind request
func (r *Regs) Marshal() []byte {
	cp := make([]byte, len(r.data))
	copy(cp, r.data)
	return cp
}
