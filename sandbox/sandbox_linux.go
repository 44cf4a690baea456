package sandbox

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sandtrace/go-sandtrace/pkg/unixsocket"
	"github.com/sandtrace/go-sandtrace/runner"
	"github.com/sandtrace/go-sandtrace/unwind"
)

// Sandbox runs a single confined process and owns its control channel. The
// lifecycle is RunAsync, message exchange over Comms, then AwaitResult; Kill
// may interrupt at any point and is idempotent.
type Sandbox struct {
	exec   *Executor
	policy *Policy
	logger *slog.Logger

	process *os.Process
	socket  *socket

	startTime    time.Time
	waitCh       chan waitResult
	killOnce     sync.Once
	wallExceeded atomic.Bool
	watchdog     *time.Timer
}

type waitResult struct {
	ws  syscall.WaitStatus
	ok  bool
	err error
}

// New creates a sandbox for the given executor under the given policy
func New(e *Executor, p *Policy, logger *slog.Logger) *Sandbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sandbox{
		exec:   e,
		policy: p,
		logger: logger,
		waitCh: make(chan waitResult, 1),
	}
}

// RunAsync starts the confined process, sends it the confinement message and
// waits for the acknowledgement that the confinement is applied. After it
// returns the process is running under the policy and ready on Comms.
func (s *Sandbox) RunAsync() error {
	ins, outs, err := unixsocket.NewSocketPair()
	if err != nil {
		return fmt.Errorf("sandbox: failed to create socket: %w", err)
	}

	outf, err := outs.File()
	if err != nil {
		ins.Close()
		outs.Close()
		return fmt.Errorf("sandbox: failed to dup helper socket fd: %w", err)
	}

	r := exec.Cmd{
		Path:       s.exec.path,
		Args:       s.exec.args,
		Env:        s.exec.env,
		ExtraFiles: []*os.File{outf},
		SysProcAttr: &syscall.SysProcAttr{
			Cloneflags:  s.policy.CloneFlags,
			AmbientCaps: s.policy.KeepCaps,
		},
	}
	err = r.Start()
	// the helper owns its endpoint now; a copy kept here would suppress the
	// EOF that signals helper death and leave the ack Recv blocked forever
	outs.Close()
	outf.Close()
	if err != nil {
		ins.Close()
		return fmt.Errorf("sandbox: failed to start process: %w", err)
	}
	s.process = r.Process
	s.socket = newSocket(ins)
	s.startTime = time.Now()

	go func() {
		err := r.Wait()
		var w waitResult
		w.err = err
		if r.ProcessState != nil {
			w.ws, w.ok = r.ProcessState.Sys().(syscall.WaitStatus)
		}
		s.waitCh <- w
	}()

	if d := s.exec.limits.wallTime; d > 0 {
		s.watchdog = time.AfterFunc(d, func() {
			s.logger.Warn("wall clock limit exceeded, killing process", "limit", d)
			s.wallExceeded.Store(true)
			s.Kill()
		})
	}

	conf := confCmd{
		RLimits:    s.exec.limits.rlimits.PrepareRLimit(),
		Mounts:     s.policy.Mounts,
		Seccomp:    s.policy.Filter,
		CloneFlags: s.policy.CloneFlags,
	}
	if err := s.socket.Send(&conf); err != nil {
		s.Kill()
		return fmt.Errorf("sandbox: failed to send confinement: %w", err)
	}
	var reply confReply
	if err := s.socket.Recv(&reply); err != nil {
		s.Kill()
		return fmt.Errorf("sandbox: no confinement ack: %w", err)
	}
	if reply.Error != "" {
		s.Kill()
		return fmt.Errorf("sandbox: confinement rejected: %s", reply.Error)
	}
	return nil
}

// Comms returns the control channel to the confined process. Valid after
// RunAsync succeeded.
func (s *Sandbox) Comms() unwind.Transport {
	return s.socket
}

// Kill terminates the confined process. Safe to call multiple times and
// before AwaitResult; the final status still arrives there.
func (s *Sandbox) Kill() {
	s.killOnce.Do(func() {
		if s.process != nil {
			s.process.Kill()
		}
	})
}

// AwaitResult waits for the confined process to exit and maps its final
// disposition. A clean exit maps to StatusNormal; a watchdog kill to
// StatusTimeLimitExceeded.
func (s *Sandbox) AwaitResult() runner.Result {
	if s.process == nil {
		// nothing was started, so nothing will ever arrive on waitCh
		return runner.Result{
			Status: runner.StatusRunnerError,
			Error:  "await: process never started",
		}
	}
	w := <-s.waitCh
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	if s.socket != nil {
		s.socket.Close()
	}
	return s.convertResult(w)
}

func (s *Sandbox) convertResult(w waitResult) runner.Result {
	result := runner.Result{
		RunningTime: time.Since(s.startTime),
	}
	if !w.ok {
		result.Status = runner.StatusRunnerError
		result.Error = fmt.Sprintf("wait: %v", w.err)
		return result
	}
	ws := w.ws
	switch {
	case ws.Exited() && ws.ExitStatus() == 0:
		result.Status = runner.StatusNormal

	case ws.Exited():
		result.Status = runner.StatusNonzeroExitStatus
		result.ExitStatus = ws.ExitStatus()

	case ws.Signaled():
		result.ExitStatus = int(ws.Signal())
		switch {
		case s.wallExceeded.Load():
			result.Status = runner.StatusTimeLimitExceeded
		case ws.Signal() == syscall.SIGXCPU:
			result.Status = runner.StatusTimeLimitExceeded
		default:
			result.Status = runner.StatusSignalled
		}

	default:
		result.Status = runner.StatusRunnerError
		result.Error = fmt.Sprintf("wait: unexpected status %v", ws)
	}
	return result
}
