//go:build linux && amd64

package sandbox

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/sandtrace/go-sandtrace/mount"
	"github.com/sandtrace/go-sandtrace/runner"
	"github.com/sandtrace/go-sandtrace/unwind"
)

type fakeComms struct {
	sendErr error
	recvErr error
	result  unwind.Result
	gotReq  unwind.Request
}

func (c *fakeComms) Send(v any) error {
	if r, ok := v.(*unwind.Request); ok {
		c.gotReq = *r
	}
	return c.sendErr
}

func (c *fakeComms) Recv(v any) error {
	if c.recvErr != nil {
		return c.recvErr
	}
	if r, ok := v.(*unwind.Result); ok {
		*r = c.result
	}
	return nil
}

type fakeSandbox struct {
	comms   *fakeComms
	runErr  error
	final   runner.Result
	killed  bool
	awaited bool
}

func (s *fakeSandbox) RunAsync() error            { return s.runErr }
func (s *fakeSandbox) Comms() unwind.Transport    { return s.comms }
func (s *fakeSandbox) Kill()                      { s.killed = true }
func (s *fakeSandbox) AwaitResult() runner.Result { s.awaited = true; return s.final }

// launchTracer drives the launch path against a fake helper; staging and
// policy construction still run for real against this process.
func launchTracer(fake *fakeSandbox) *Tracer {
	tr := NewTracer(Config{Logger: quietLogger()})
	tr.newSandbox = func(*Executor, *Policy, *slog.Logger) helperSandbox { return fake }
	return tr
}

func TestLaunchExchange(t *testing.T) {
	want := []string{"app!main+0x10 [0x401010]", "libc.so!start+0x2a [0x7f00002a]"}
	fake := &fakeSandbox{
		comms: &fakeComms{result: unwind.Result{Frames: want}},
		final: runner.Result{Status: runner.StatusNormal},
	}
	tr := launchTracer(fake)
	frames, err := tr.launchSandboxedUnwind(os.Getpid(), []byte{1, 2}, mount.NewMounts(nil), 9)
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	if len(frames) != len(want) || frames[0] != want[0] {
		t.Errorf("frames = %v, want %v", frames, want)
	}
	if fake.killed {
		t.Error("helper killed after a clean exchange")
	}
	if !fake.awaited {
		t.Error("helper disposition never awaited")
	}
	// the request pid sources from the attached executor
	if fake.comms.gotReq.Pid != os.Getpid() {
		t.Errorf("request pid = %d, want %d", fake.comms.gotReq.Pid, os.Getpid())
	}
	if fake.comms.gotReq.MaxFrames != 9 {
		t.Errorf("request max frames = %d, want 9", fake.comms.gotReq.MaxFrames)
	}
}

func TestLaunchSendFailureKillsHelper(t *testing.T) {
	fake := &fakeSandbox{
		comms: &fakeComms{sendErr: errors.New("broken pipe")},
		final: runner.Result{Status: runner.StatusSignalled},
	}
	tr := launchTracer(fake)
	frames, err := tr.launchSandboxedUnwind(os.Getpid(), []byte{1}, mount.NewMounts(nil), 0)
	if err == nil {
		t.Fatal("expected error when the request cannot be sent")
	}
	if frames != nil {
		t.Errorf("frames = %v, want none", frames)
	}
	if !fake.killed {
		t.Error("helper not killed after the failed send")
	}
	if !fake.awaited {
		t.Error("helper disposition never awaited")
	}
}

func TestLaunchRecvFailureKillsHelper(t *testing.T) {
	fake := &fakeSandbox{
		comms: &fakeComms{recvErr: errors.New("connection reset")},
		final: runner.Result{Status: runner.StatusSignalled},
	}
	tr := launchTracer(fake)
	frames, err := tr.launchSandboxedUnwind(os.Getpid(), []byte{1}, mount.NewMounts(nil), 0)
	if err == nil {
		t.Fatal("expected error when the result never arrives")
	}
	if frames != nil {
		t.Errorf("frames = %v, want none", frames)
	}
	if !fake.killed {
		t.Error("helper not killed after the failed receive")
	}
	if !fake.awaited {
		t.Error("helper disposition never awaited")
	}
}

func TestLaunchDirtyHelperExit(t *testing.T) {
	// the exchange succeeded but the helper died badly afterwards: the
	// frames came from a process that tripped its confinement, drop them
	fake := &fakeSandbox{
		comms: &fakeComms{result: unwind.Result{Frames: []string{"app!main+0x10 [0x401010]"}}},
		final: runner.Result{Status: runner.StatusSignalled},
	}
	tr := launchTracer(fake)
	frames, err := tr.launchSandboxedUnwind(os.Getpid(), []byte{1}, mount.NewMounts(nil), 0)
	if err == nil {
		t.Fatal("expected error for a non-clean helper exit")
	}
	if frames != nil {
		t.Errorf("frames = %v, want none", frames)
	}
	if fake.killed {
		t.Error("helper killed although the exchange was clean")
	}
}

func TestLaunchRunAsyncFailureStillAwaited(t *testing.T) {
	fake := &fakeSandbox{
		runErr: errors.New("no confinement ack"),
		final:  runner.Result{Status: runner.StatusRunnerError},
	}
	tr := launchTracer(fake)
	if _, err := tr.launchSandboxedUnwind(os.Getpid(), []byte{1}, mount.NewMounts(nil), 0); err == nil {
		t.Fatal("expected the startup error to propagate")
	}
	if !fake.awaited {
		t.Error("helper disposition never awaited after failed startup")
	}
}
