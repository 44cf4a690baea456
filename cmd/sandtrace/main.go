// Command sandtrace attaches to a running process and prints its symbolized
// stack trace, collected by a seccomp confined unwind helper.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/sandtrace/go-sandtrace/mount"
	"github.com/sandtrace/go-sandtrace/regs"
	"github.com/sandtrace/go-sandtrace/sandbox"
)

var (
	pid       int
	maxFrames int
	noSandbox bool
	verbose   bool
)

// helper re-exec entry
func init() {
	sandbox.Init()
}

func printUsage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s -p <pid> [options]\n", os.Args[0])
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.Usage = printUsage
	flag.IntVar(&pid, "p", 0, "Pid of the process to trace")
	flag.IntVar(&maxFrames, "max", 0, "Maximum number of stack frames (0 for default)")
	flag.BoolVar(&noSandbox, "no-sandbox", false, "Run the unwinder without confinement")
	flag.BoolVar(&verbose, "v", false, "Show info level logs")
	flag.Parse()

	if pid <= 0 {
		printUsage()
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	frames, err := collect(logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sandtrace: %v\n", err)
		os.Exit(1)
	}
	for _, f := range sandbox.CompactStackTrace(frames) {
		fmt.Println(f)
	}
}

// collect attaches to the target, captures its registers, collects the trace
// while the target is stopped and detaches before returning.
func collect(logger *slog.Logger) ([]string, error) {
	// ptrace requests must come from the attaching thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := unix.PtraceAttach(pid); err != nil {
		return nil, fmt.Errorf("failed to attach to %d: %w", pid, err)
	}
	defer unix.PtraceDetach(pid)

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return nil, fmt.Errorf("failed to wait for %d to stop: %w", pid, err)
	}

	r, err := regs.Capture(pid)
	if err != nil {
		return nil, fmt.Errorf("failed to capture registers: %w", err)
	}

	tracer := sandbox.NewTracer(sandbox.Config{
		DisableSandboxing: noSandbox,
		MaxFrames:         maxFrames,
		Logger:            logger,
	})
	view := mount.NewDefaultBuilder().FilterNotExist().Build()
	return tracer.GetStackTrace(r, view), nil
}
