// Package sandbox collects symbolized stack traces from a stopped process by
// running the unwinder inside a second, tightly confined helper process.
//
// # Overview
//
// The controller stages a copy of the target's memory map, builds a seccomp
// confinement policy for the helper, re-executes the current binary in helper
// mode and talks to it over a unix socket pair with commands encoded by gob.
// The helper applies the confinement to itself, walks the target's stack via
// process_vm_readv, symbolizes the frames and sends them back.
//
// # Protocol
//
// Controller to helper communication is single threaded and always initiated
// by the controller:
//
// ## conf (apply confinement)
//
//   - send: rlimits, mounts, seccomp filter
//   - reply: "ok" / "error"
//
// ## unwind (collect the stack trace)
//
//   - send: pid, register snapshot, frame bound
//   - reply: frames
//
// Any socket related error causes the controller to kill the helper; the
// helper's final disposition is always collected and logged.
package sandbox
