package sandbox

import (
	"fmt"
	"os"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/sandtrace/go-sandtrace/mount"
	"github.com/sandtrace/go-sandtrace/pkg/unixsocket"
	"github.com/sandtrace/go-sandtrace/unwind"
)

// Init is called at the top of the host binary's main. It is a no-op unless
// the process was re-executed in helper mode; in helper mode it applies the
// confinement received on the control socket, serves exactly one unwind
// request and exits, never returning to the caller.
func Init() (err error) {
	// noop unless re-executed with the helper argument
	if len(os.Args) < 2 || os.Args[1] != helperArg {
		return nil
	}

	// exit the process upon leaving this function, whatever the path:
	// socket broken (controller exited), confinement failure, panic
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "helper_exit: panic: %v\n", r)
			os.Exit(1)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "helper_exit: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}()

	// limit the threads the runtime creates before the filter is loaded
	runtime.GOMAXPROCS(helperMaxProc)

	// the controller shares the socket at fd 3 (marked close_exec)
	const defaultFd = 3
	soc, err := unixsocket.NewSocket(defaultFd)
	if err != nil {
		return fmt.Errorf("helper_init: failed to new socket: %w", err)
	}
	s := newSocket(soc)

	var conf confCmd
	if err := s.Recv(&conf); err != nil {
		return fmt.Errorf("helper_init: failed to receive confinement: %w", err)
	}
	if err := applyConf(&conf); err != nil {
		s.Send(&confReply{Error: err.Error()})
		return fmt.Errorf("helper_init: %w", err)
	}
	if err := s.Send(&confReply{}); err != nil {
		return fmt.Errorf("helper_init: failed to ack confinement: %w", err)
	}

	return unwind.Serve(s)
}

// applyConf confines the helper: rlimits, mount points when a mount namespace
// was unshared, and finally the seccomp filter.
func applyConf(conf *confCmd) error {
	for _, rl := range conf.RLimits {
		if err := rl.Apply(); err != nil {
			return fmt.Errorf("setrlimit %s: %w", rl.String(), err)
		}
	}
	if conf.CloneFlags&syscall.CLONE_NEWNS != 0 {
		if err := applyMounts(conf.Mounts); err != nil {
			return err
		}
	}
	if len(conf.Seccomp) > 0 {
		if err := conf.Seccomp.Load(); err != nil {
			return err
		}
	}
	return nil
}

func applyMounts(ms []mount.Mount) error {
	for _, m := range ms {
		if err := mountOne(m); err != nil {
			return fmt.Errorf("mount %v: %w", m, err)
		}
	}
	return nil
}

// mountOne performs a single mount; bind mounts remount to pick up the
// read-only flag, which the first bind call ignores.
func mountOne(m mount.Mount) error {
	if err := unix.Mount(m.Source, m.Target, m.FsType, m.Flags, m.Data); err != nil {
		return err
	}
	const bindRo = unix.MS_BIND | unix.MS_RDONLY
	if m.Flags&bindRo == bindRo {
		return unix.Mount("", m.Target, "", m.Flags|unix.MS_REMOUNT, m.Data)
	}
	return nil
}
