// Package seccomp provides the seccomp filter representation used to confine
// the unwind helper process, together with a builder that compiles a named
// syscall allow-list and argument-conditioned rules into a kernel loadable
// BPF program.
package seccomp

// Action is the seccomp action applied when a filter rule matches
type Action uint32

// Action defines seccomp action to the syscall
// default value 0 is invalid
const (
	ActionAllow Action = iota + 1
	ActionErrno
	ActionTrace
	ActionKill
)

// WithReturnCode set the return code when action is trace or errno
func (a Action) WithReturnCode(code int16) Action {
	return a.Action() | Action(code)<<16
}

// ReturnCode get the return code
func (a Action) ReturnCode() int16 {
	return int16(a >> 16)
}

// Action get the basic action
func (a Action) Action() Action {
	return Action(a & 0xffff)
}
