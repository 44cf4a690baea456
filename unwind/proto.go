// Package unwind implements the helper side of stack trace collection: it
// receives a request over the control channel, walks the target's stack via
// process_vm_readv and symbolizes the frames from the mapped ELF modules.
package unwind

// DefaultMaxFrames bounds the number of frames collected per request
const DefaultMaxFrames = 200

// Request asks the helper to unwind the target's stack. It is sent at most
// once per helper launch and never mutated after send.
type Request struct {
	Pid       int    // target process
	Regs      []byte // raw register snapshot
	MaxFrames int    // frame count bound, DefaultMaxFrames when zero
}

// Result carries the collected stack frames back to the controller. It is
// received at most once per helper launch.
type Result struct {
	Frames []string
}
