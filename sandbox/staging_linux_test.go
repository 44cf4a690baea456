package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sandtrace/go-sandtrace/mount"
)

func TestStageCopiesMaps(t *testing.T) {
	s, err := stage(os.Getpid(), mount.NewMounts(nil))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	defer s.remove()

	fi, err := os.Stat(s.mapsFile)
	if err != nil {
		t.Fatalf("staged maps missing: %v", err)
	}
	if fi.Mode().Perm() != 0400 {
		t.Errorf("maps mode = %o, want 0400", fi.Mode().Perm())
	}
	if fi.Size() == 0 {
		t.Error("staged maps is empty")
	}
	if !strings.HasPrefix(filepath.Base(s.dir), stagingPrefix) {
		t.Errorf("staging dir %q missing prefix %q", s.dir, stagingPrefix)
	}
}

func TestStageCopiesUnresolvableExecutable(t *testing.T) {
	// the empty view resolves nothing, so the executable must be copied
	s, err := stage(os.Getpid(), mount.NewMounts(nil))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	defer s.remove()

	if s.exePath != filepath.Join(s.dir, "exe") {
		t.Fatalf("exePath = %q, want staged copy", s.exePath)
	}
	fi, err := os.Stat(s.exePath)
	if err != nil {
		t.Fatalf("staged executable missing: %v", err)
	}
	if fi.Mode().Perm() != 0700 {
		t.Errorf("executable mode = %o, want 0700", fi.Mode().Perm())
	}
	if s.appPath == "" || !filepath.IsAbs(s.appPath) {
		t.Errorf("appPath = %q, want absolute executable path", s.appPath)
	}
}

func TestStageResolvesExecutableThroughView(t *testing.T) {
	view := mount.NewBuilder().WithBind("/", "/", true).Build()
	s, err := stage(os.Getpid(), view)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	defer s.remove()

	if s.exePath != s.appPath {
		t.Errorf("exePath = %q, want resolved %q", s.exePath, s.appPath)
	}
	if _, err := os.Stat(filepath.Join(s.dir, "exe")); !os.IsNotExist(err) {
		t.Error("executable copied although the view resolves it")
	}
}

func TestStageRemove(t *testing.T) {
	s, err := stage(os.Getpid(), mount.NewMounts(nil))
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	s.remove()
	if _, err := os.Stat(s.dir); !os.IsNotExist(err) {
		t.Errorf("staging dir still present after remove: %v", err)
	}
	// second remove is a no-op
	s.remove()
}

func TestStageBadPid(t *testing.T) {
	s, err := stage(1<<22+12345, mount.NewMounts(nil))
	if err == nil {
		s.remove()
		t.Fatal("expected error for nonexistent pid")
	}
}
