package sandbox

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sandtrace/go-sandtrace/mount"
	"github.com/sandtrace/go-sandtrace/pkg/rlimit"
	"github.com/sandtrace/go-sandtrace/regs"
	"github.com/sandtrace/go-sandtrace/runner"
	"github.com/sandtrace/go-sandtrace/unwind"
)

// Sentinel traces returned instead of frames when collection cannot or must
// not run. Callers can print them in place of a real trace.
const (
	traceUnavailable = "[Stack traces unavailable]"
	traceDisabled    = "[Stacktraces disabled]"
	traceNoRegs      = "[ERROR (noregs)]"
)

// Config controls stack trace collection. The zero value collects traces and
// confines the unwinder.
type Config struct {
	// DisableAll turns collection off entirely
	DisableAll bool

	// DisableSandboxing runs the unwinder in-process instead of inside the
	// confined helper. Every collection logs a warning.
	DisableSandboxing bool

	// MaxFrames bounds the trace length, unwind.DefaultMaxFrames when zero
	MaxFrames int

	// Logger receives warnings and helper dispositions, slog.Default when nil
	Logger *slog.Logger
}

// helperSandbox is the sandbox surface the launch path drives
type helperSandbox interface {
	RunAsync() error
	Comms() unwind.Transport
	Kill()
	AwaitResult() runner.Result
}

// Tracer collects stack traces from stopped processes
type Tracer struct {
	cfg    Config
	logger *slog.Logger

	// seams for tests
	launch       func(pid int, rawRegs []byte, view *mount.Mounts, maxFrames int) ([]string, error)
	unsafeUnwind func(pid int, rawRegs []byte, maxFrames int) ([]string, error)
	newSandbox   func(e *Executor, p *Policy, logger *slog.Logger) helperSandbox
	supported    bool
	instrumented bool
}

// NewTracer creates a tracer from the config
func NewTracer(cfg Config) *Tracer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = unwind.DefaultMaxFrames
	}
	t := &Tracer{
		cfg:          cfg,
		logger:       logger,
		unsafeUnwind: unwind.Unwind,
		supported:    unwind.Supported(),
		instrumented: sanitizersEnabled() || os.Getenv("COVERAGE") != "",
	}
	t.launch = t.launchSandboxedUnwind
	t.newSandbox = func(e *Executor, p *Policy, logger *slog.Logger) helperSandbox {
		return New(e, p, logger)
	}
	return t
}

// GetStackTrace collects the symbolized stack trace of the stopped process
// described by the register snapshot. The view tells it which host files back
// the target's filesystem. It never fails: degraded modes return a sentinel
// trace or no frames, with the reason logged.
func (t *Tracer) GetStackTrace(r *regs.Regs, view *mount.Mounts) []string {
	if !t.supported {
		return []string{traceUnavailable}
	}
	if t.cfg.DisableAll {
		return []string{traceDisabled}
	}
	if r == nil {
		t.logger.Warn("no register snapshot, stack trace not collected")
		return []string{traceNoRegs}
	}
	if t.cfg.DisableSandboxing || t.instrumented {
		if !t.cfg.DisableSandboxing {
			t.logger.Warn("instrumented build, collecting stack trace without confinement")
		}
		frames, err := t.UnsafeGetStackTrace(r)
		if err != nil {
			t.logger.Error("failed to collect stack trace", "err", err)
			return nil
		}
		return frames
	}

	frames, err := t.launch(r.Pid(), r.Marshal(), view, t.cfg.MaxFrames)
	if err != nil {
		t.logger.Error("failed to collect stack trace", "err", err)
		return nil
	}
	return frames
}

// UnsafeGetStackTrace runs the unwinder in this process against the target.
// The unwinder parses untrusted target state unconfined, hence unsafe; it
// logs a warning on every use.
func (t *Tracer) UnsafeGetStackTrace(r *regs.Regs) ([]string, error) {
	t.logger.Warn("collecting stack trace without confinement", "pid", r.Pid())
	return t.unsafeUnwind(r.Pid(), r.Marshal(), t.cfg.MaxFrames)
}

// launchSandboxedUnwind stages the target's /proc state, builds the helper
// confinement and runs one request/result exchange with the helper. Frames
// are trusted only when the exchange and the helper's exit are both clean.
func (t *Tracer) launchSandboxedUnwind(pid int, rawRegs []byte, view *mount.Mounts, maxFrames int) ([]string, error) {
	st, err := stage(pid, view)
	if err != nil {
		return nil, err
	}
	defer st.remove()

	policy, err := buildUnwindPolicy(t.logger, pid, st.mapsFile, st.appPath, st.exePath, view)
	if err != nil {
		return nil, err
	}

	e := newAttachedExecutor(pid)
	e.Limits().
		SetAddressSpace(rlimit.Unlimited).
		SetCPU(helperCPULimit).
		SetWallTime(helperWallLimit)

	s := t.newSandbox(e, policy, t.logger)
	if err := s.RunAsync(); err != nil {
		// the handshake killed the helper already; resolve its disposition
		// before the staging area goes away
		final := s.AwaitResult()
		t.logger.Info("unwind helper finished", "result", final.String())
		return nil, err
	}

	var (
		exchangeErr error
		result      unwind.Result
	)
	comms := s.Comms()
	req := unwind.Request{Pid: e.attachedPid, Regs: rawRegs, MaxFrames: maxFrames}
	if err := comms.Send(&req); err != nil {
		exchangeErr = fmt.Errorf("failed to send unwind request: %w", err)
		s.Kill()
	} else if err := comms.Recv(&result); err != nil {
		exchangeErr = fmt.Errorf("failed to receive unwind result: %w", err)
		s.Kill()
	}

	final := s.AwaitResult()
	t.logger.Info("unwind helper finished", "result", final.String())

	if exchangeErr != nil {
		return nil, exchangeErr
	}
	if final.Status != runner.StatusNormal {
		return nil, fmt.Errorf("unwind helper failed: %s", final.String())
	}
	return result.Frames, nil
}

// CompactStackTrace collapses repeated frames into a
// "(previous frame repeated N times)" line
func CompactStackTrace(frames []string) []string {
	compact := make([]string, 0, len(frames)/2)
	var (
		prev string
		seen int
	)
	addRepeats := func() {
		if seen > 0 {
			compact = append(compact, fmt.Sprintf("(previous frame repeated %d times)", seen))
		}
	}
	for i, frame := range frames {
		if i > 0 && frame == prev {
			seen++
			continue
		}
		addRepeats()
		seen = 0
		prev = frame
		compact = append(compact, frame)
	}
	addRepeats()
	return compact
}
