package seccomp

import (
	"fmt"
	"syscall"

	libseccomp "github.com/elastic/go-seccomp-bpf"
	"github.com/elastic/go-seccomp-bpf/arch"
	"golang.org/x/net/bpf"
)

// seccomp_data offsets (struct seccomp_data, all loads are 32 bit)
const (
	dataOffsetNR   = 0
	dataOffsetArch = 4
	dataOffsetArgs = 16
	argWidth       = 8
)

const retAllow = uint32(libseccomp.ActionAllow)

var archInfo, errArchInfo = arch.GetInfo("")

// ArgRule allows a single syscall only when the low 32 bits of one of its
// arguments equal one of the listed values. A syscall that matches the name
// but none of the values falls through to the default action.
type ArgRule struct {
	Name   string
	Arg    int
	Values []uint32
}

// Builder builds the seccomp filter from the allowed syscall names and the
// argument-conditioned rules
type Builder struct {
	Allow    []string
	ArgRules []ArgRule
	Default  Action
}

// Build assembles the conditional rule preludes followed by the compiled
// allow-list policy and returns the kernel loadable filter
func (b *Builder) Build() (Filter, error) {
	insts, err := b.assemble()
	if err != nil {
		return nil, err
	}
	raw, err := bpf.Assemble(insts)
	if err != nil {
		return nil, fmt.Errorf("seccomp: failed to assemble filter: %w", err)
	}
	filter := make(Filter, 0, len(raw))
	for _, in := range raw {
		filter = append(filter, syscall.SockFilter{
			Code: in.Op,
			Jt:   in.Jt,
			Jf:   in.Jf,
			K:    in.K,
		})
	}
	return filter, nil
}

func (b *Builder) assemble() ([]bpf.Instruction, error) {
	if errArchInfo != nil {
		return nil, fmt.Errorf("seccomp: no syscall table for architecture: %w", errArchInfo)
	}
	if auditArch == 0 {
		return nil, fmt.Errorf("seccomp: unsupported architecture")
	}

	policy := libseccomp.Policy{
		DefaultAction: toLibAction(b.Default),
		Syscalls: []libseccomp.SyscallGroup{
			{
				Action: libseccomp.ActionAllow,
				Names:  b.Allow,
			},
		},
	}
	policyInsts, err := policy.Assemble()
	if err != nil {
		return nil, fmt.Errorf("seccomp: failed to compile syscall policy: %w", err)
	}

	var insts []bpf.Instruction
	for _, r := range b.ArgRules {
		block, err := r.assemble()
		if err != nil {
			return nil, err
		}
		insts = append(insts, block...)
	}
	return append(insts, policyInsts...), nil
}

// assemble emits a self-contained block:
//
//	if arch == auditArch && nr == sysno && arg[i] in values: return ALLOW
//
// anything else falls through to the next block or the compiled policy.
func (r ArgRule) assemble() ([]bpf.Instruction, error) {
	sysno, found := archInfo.SyscallNames[r.Name]
	if !found {
		return nil, fmt.Errorf("seccomp: unknown syscall %q", r.Name)
	}
	if r.Arg < 0 || r.Arg > 5 {
		return nil, fmt.Errorf("seccomp: invalid syscall argument index %d", r.Arg)
	}
	if len(r.Values) == 0 {
		return nil, fmt.Errorf("seccomp: conditional rule for %q has no values", r.Name)
	}
	n := len(r.Values)
	if n > 200 {
		return nil, fmt.Errorf("seccomp: conditional rule for %q has too many values", r.Name)
	}

	insts := make([]bpf.Instruction, 0, n+6)
	// skip targets are relative to the instruction after the jump
	insts = append(insts,
		bpf.LoadAbsolute{Off: dataOffsetArch, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: auditArch, SkipTrue: uint8(n + 5)},
		bpf.LoadAbsolute{Off: dataOffsetNR, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: uint32(sysno), SkipTrue: uint8(n + 3)},
		// low dword of the argument; pids fit in 32 bits
		bpf.LoadAbsolute{Off: uint32(dataOffsetArgs + argWidth*r.Arg), Size: 4},
	)
	for i, v := range r.Values {
		insts = append(insts, bpf.JumpIf{Cond: bpf.JumpEqual, Val: v, SkipTrue: uint8(n - i)})
	}
	insts = append(insts,
		bpf.Jump{Skip: 1}, // no value matched, fall through to the policy
		bpf.RetConstant{Val: retAllow},
	)
	return insts, nil
}

// toLibAction converts action to the BPF policy compiler action. The policy
// compiler validates bare action values and supplies EPERM as the errno
// return data itself, so the Action's packed return code is not carried over.
func toLibAction(a Action) libseccomp.Action {
	switch a.Action() {
	case ActionAllow:
		return libseccomp.ActionAllow
	case ActionErrno:
		return libseccomp.ActionErrno
	case ActionTrace:
		return libseccomp.ActionTrace
	default:
		return libseccomp.ActionKillProcess
	}
}

// ToSyscallName converts a syscall number on the current architecture back to
// its name, for logging filter decisions
func ToSyscallName(sysno uint) (string, error) {
	if errArchInfo != nil {
		return "", errArchInfo
	}
	n, ok := archInfo.SyscallNumbers[int(sysno)]
	if !ok {
		return "", fmt.Errorf("seccomp: syscall no %d does not exist", sysno)
	}
	return n, nil
}
